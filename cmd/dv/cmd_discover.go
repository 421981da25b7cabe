package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/config"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/loader"
)

type DiscoverCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
	all        bool
}

// NewDiscoverCmd creates a new discover command
func NewDiscoverCmd(flags *Flags) *DiscoverCmd {
	return &DiscoverCmd{flags: flags}
}

// Register adds the discover command to the application
func (cmd *DiscoverCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "discover",
		Usage:     "Find results payloads under a directory",
		UsageText: "dv discover [--json] [--all] [dir]",
		Description: `Searches the directory (default: the project root) with the discovery
patterns from the config, skipping excluded paths and anything listed in
.dvignore. Only files that look like results payloads are listed unless
--all is given.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
			&cli.BoolFlag{
				Name:        "all",
				Usage:       "list every matching file, payload or not",
				Destination: &cmd.all,
			},
		},
		Action: cmd.run,
	})

	return app
}

type discoveredPayload struct {
	Path    string `json:"path"`
	Rel     string `json:"rel"`
	Size    int64  `json:"size"`
	ModTime string `json:"mod_time"`
	Payload bool   `json:"payload"`
}

func (cmd *DiscoverCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	if cfg == nil {
		d := config.DefaultConfig()
		cfg = &d
	}
	root := c.Args().First()
	if root == "" {
		root = cfg.Root
	}
	if root == "" {
		root = "."
	}

	found, err := config.DiscoverPayloads(root, cfg.Discovery)
	if err != nil {
		return err
	}

	var rows []discoveredPayload
	for _, p := range found {
		ok, err := loader.Sniff(p.Path)
		if err != nil {
			return err
		}
		if !ok && !cmd.all {
			continue
		}
		rows = append(rows, discoveredPayload{
			Path:    p.Path,
			Rel:     p.Rel,
			Size:    p.Size,
			ModTime: p.ModTime.Format("2006-01-02 15:04"),
			Payload: ok,
		})
	}

	out := cmd.flags.Out
	if cmd.jsonOutput {
		if rows == nil {
			rows = []discoveredPayload{}
		}
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(rows) == 0 {
		fmt.Fprintf(out, "No payloads found under %s\n", root)
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tSIZE\tMODIFIED\tPAYLOAD")
	for _, r := range rows {
		payload := "yes"
		if !r.Payload {
			payload = "no"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Rel, r.Size, r.ModTime, payload)
	}
	return w.Flush()
}
