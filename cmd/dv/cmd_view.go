package main

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/config"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/debug"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/loader"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/ui"
)

type ViewCmd struct {
	flags *Flags

	// flags
	tree    string
	title   string
	regions string
	codes   []string
	noWatch bool
}

// NewViewCmd creates a new view command
func NewViewCmd(flags *Flags) *ViewCmd {
	return &ViewCmd{flags: flags}
}

// Flags returns the view flags. Each call returns fresh flag values bound to
// the same destinations, so the flags can be registered on more than one
// command. They are local so subcommands keep their own --tree and --select.
func (cmd *ViewCmd) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "tree",
			Aliases:     []string{"t"},
			Usage:       "tree to show first",
			Destination: &cmd.tree,
			Local:       true,
		},
		&cli.StringFlag{
			Name:        "title",
			Usage:       "title shown in the header",
			Destination: &cmd.title,
			Local:       true,
		},
		&cli.StringFlag{
			Name:        "regions",
			Usage:       "JSON file of initially selected regions",
			Destination: &cmd.regions,
			Local:       true,
		},
		&cli.StringSliceFlag{
			Name:        "select",
			Aliases:     []string{"s"},
			Usage:       "region codes to select initially",
			Destination: &cmd.codes,
			Local:       true,
		},
		&cli.BoolFlag{
			Name:        "no-watch",
			Usage:       "do not reload when the payload file changes",
			Destination: &cmd.noWatch,
			Local:       true,
		},
	}
}

// Register adds the view command to the application
func (cmd *ViewCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "view",
		Usage:     "Browse trees, the map and a report in the terminal",
		UsageText: "dv view [--tree NAME] [--select CODES] [payload.json]",
		Description: `Opens the interactive viewer with three tabs: the language tree, the region
map and a markdown report. The payload is reloaded when its file changes.

Regions selected on the map are printed as JSON when the viewer exits.`,
		Flags:  cmd.Flags(),
		Action: cmd.Run,
	})

	return app
}

// Run opens the viewer.
func (cmd *ViewCmd) Run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	payload, err := cmd.flags.loadPayload(c.Args().First())
	if err != nil {
		return err
	}
	atlas, err := cmd.flags.atlas()
	if err != nil {
		return err
	}
	selected, err := selection(atlas, cmd.regions, cmd.codes)
	if err != nil {
		return err
	}

	layout := cmd.flags.treeOptions().Layout
	opts := ui.Options{
		Snapshot: ui.NewPayloadSnapshot(payload, layout),
		Atlas:    atlas,
		Selected: selected,
		Tree:     cmd.tree,
		Title:    cmd.title,
	}
	if cfg != nil && cfg.Root != "" {
		opts.StateDir = filepath.Join(cfg.Root, config.Dir)
	}
	m := ui.NewModel(opts)

	programOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if payload.Path == loader.Stdin {
		// stdin carried the payload; read keys from the terminal instead
		programOpts = append(programOpts, tea.WithInputTTY())
	}
	p := tea.NewProgram(m, programOpts...)

	if !cmd.noWatch && payload.Path != loader.Stdin && (cfg == nil || cfg.WatchEnabled()) {
		wc := ui.WorkerConfig{PayloadPath: payload.Path, TreeOptions: layout}
		if cfg != nil {
			wc.DebounceDelay = cfg.Watch.Debounce
			wc.PollInterval = cfg.Watch.PollInterval
			wc.ForcePoll = cfg.Watch.ForcePoll
		}
		worker, err := ui.NewBackgroundWorker(wc)
		if err != nil {
			lg := debug.Component("cli")
			lg.Warn().Err(err).Msg("payload watching disabled")
		} else {
			worker.SetSender(p)
			if err := worker.Start(); err != nil {
				lg := debug.Component("cli")
				lg.Warn().Err(err).Msg("payload watching disabled")
			}
			defer worker.Stop()
		}
	}

	final, err := p.Run()
	m.Close()
	if err != nil {
		return fmt.Errorf("running viewer: %w", err)
	}

	fm, ok := final.(ui.Model)
	if !ok {
		return nil
	}
	if regions := fm.SelectedRegions(); len(regions) > 0 {
		data, err := json.MarshalIndent(regions, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.flags.Out, string(data))
	}
	return nil
}
