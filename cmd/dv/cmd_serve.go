package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/export"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/loader"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
)

type ServeCmd struct {
	flags *Flags

	// flags
	addr         string
	title        string
	noLiveReload bool
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Serve trees and the map over HTTP with live reload",
		UsageText: "dv serve [--addr HOST:PORT] [payload.json]",
		Description: `Starts a local preview server. The index page shows every tree and the map;
/tree.svg, /map.svg, /regions and /report.md serve the pieces. Open pages
reload when the payload file changes.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (default from config, 127.0.0.1:8765)",
				Destination: &cmd.addr,
			},
			&cli.StringFlag{
				Name:        "title",
				Usage:       "page title",
				Destination: &cmd.title,
			},
			&cli.BoolFlag{
				Name:        "no-live-reload",
				Usage:       "do not watch the payload file",
				Destination: &cmd.noLiveReload,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	path, err := cmd.flags.payloadPath(c.Args().First())
	if err != nil {
		return err
	}
	atlas, err := cmd.flags.atlas()
	if err != nil {
		return err
	}

	addr := cmd.addr
	if addr == "" && cfg != nil {
		addr = cfg.Serve.Addr
	}

	load := func() (*model.Results, error) {
		p, err := loader.Load(path)
		if err != nil {
			return nil, err
		}
		return p.Results, nil
	}
	watchPath := path
	if path == loader.Stdin {
		// stdin can be read once; serve that payload for the whole session
		results, err := load()
		if err != nil {
			return err
		}
		load = func() (*model.Results, error) { return results, nil }
		watchPath = ""
	}
	if cmd.noLiveReload || (cfg != nil && !cfg.LiveReloadEnabled()) {
		watchPath = ""
	}

	srv, err := export.NewPreviewServer(export.PreviewOptions{
		Addr:        addr,
		PayloadPath: watchPath,
		Load:        load,
		Atlas:       atlas,
		Title:       cmd.title,
		Tree:        cmd.flags.treeOptions(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.flags.Out, "Serving %s at http://%s (Ctrl+C to stop)\n", path, addr)
	return srv.ListenAndServe(ctx)
}
