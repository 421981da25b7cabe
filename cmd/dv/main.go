package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/urfave/cli/v3"

	dvdebug "github.com/Dicklesworthstone/dplace_viewer/pkg/debug"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/config"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// go install leaves ldflags unset; fall back to the embedded build info.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}
	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Command output goes to out.
func newApp(out io.Writer) *cli.Command {
	flags := &Flags{Out: out}
	var logCloser func()

	app := &cli.Command{
		Name:      "dv",
		Usage:     "View D-PLACE results as language trees and region maps",
		UsageText: "dv [global options] command [command options] [payload.json]",
		Description: `dv renders the language trees and society locations of a D-PLACE results
payload. Trees are drawn as right-angle dendrograms with one colored dot per
coded value; the map shows one marker per society and a selectable set of
regions.

Run 'dv payload.json' to open the interactive viewer, or 'dv init' to create
a .dv/config.yaml for the current project.`,
		Version: build(),
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("DV_LOG_LEVEL"),
				Value:       "warn",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "write logs to this file instead of stderr",
				Sources:     cli.EnvVars("DV_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file (default: nearest .dv/config.yaml)",
				Sources:     cli.EnvVars("DV_CONFIG"),
				Destination: &flags.ConfigPath,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := dvdebug.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			dvdebug.SetLogger(logger)
			logCloser = closer

			cfg, err := config.Discover(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	viewCmd := NewViewCmd(flags)

	app = NewTreeCmd(flags).Register(app)
	app = NewMapCmd(flags).Register(app)
	app = viewCmd.Register(app)
	app = NewServeCmd(flags).Register(app)
	app = NewReportCmd(flags).Register(app)
	app = NewPageCmd(flags).Register(app)
	app = NewDiscoverCmd(flags).Register(app)
	app = NewInitCmd(flags).Register(app)

	// Without a subcommand dv opens the viewer on the given or configured payload.
	app.Flags = append(app.Flags, viewCmd.Flags()...)
	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 1 {
			return fmt.Errorf("unexpected arguments %v. Run 'dv --help' for usage", c.Args().Tail())
		}
		return viewCmd.Run(ctx, c)
	}
	return app
}
