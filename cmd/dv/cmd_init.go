package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/config"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/debug"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/loader"
)

type InitCmd struct {
	flags *Flags

	// flags
	payload string
}

// NewInitCmd creates a new init command
func NewInitCmd(flags *Flags) *InitCmd {
	return &InitCmd{flags: flags}
}

// Register adds the init command to the application
func (cmd *InitCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "init",
		Usage:     "Create .dv/config.yaml for a project",
		UsageText: "dv init [--payload FILE] [dir]",
		Description: `Writes an example .dv/config.yaml in the directory (default: the current
directory) and adds .dv/ to .gitignore. The default payload is taken from
--payload or from the first results payload found in the directory. An
existing config is never overwritten.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "payload",
				Usage:       "default payload, relative to the project directory",
				Destination: &cmd.payload,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *InitCmd) run(ctx context.Context, c *cli.Command) error {
	root := c.Args().First()
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	cfg := config.ExampleConfig()
	cfg.Payload = cmd.payload
	if cfg.Payload == "" {
		cfg.Payload = firstPayload(root, cfg.Discovery)
	}

	path, err := config.Write(root, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.flags.Out, "Created %s\n", path)
	if cfg.Payload != "" {
		fmt.Fprintf(cmd.flags.Out, "Default payload: %s\n", cfg.Payload)
	}
	return nil
}

// firstPayload returns the first discovered results payload under root, or
// "" when there is none.
func firstPayload(root string, d config.DiscoveryConfig) string {
	found, err := config.DiscoverPayloads(root, d)
	if err != nil {
		lg := debug.Component("cli")
		lg.Warn().Err(err).Msg("payload discovery failed")
		return ""
	}
	for _, p := range found {
		if ok, _ := loader.Sniff(p.Path); ok {
			return p.Rel
		}
	}
	return ""
}
