package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/export"
)

type PageCmd struct {
	flags *Flags

	// flags
	output  string
	title   string
	regions string
	codes   []string
}

// NewPageCmd creates a new page command
func NewPageCmd(flags *Flags) *PageCmd {
	return &PageCmd{flags: flags}
}

// Register adds the page command to the application
func (cmd *PageCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "page",
		Usage:     "Save a self-contained HTML page with every tree and the map",
		UsageText: "dv page [-o FILE.html] [--select CODES] [payload.json]",
		Description: `Writes one HTML file holding every tree of the payload and the map. Without
-o the file is named after the project, the date and the git revision.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output file",
				Destination: &cmd.output,
			},
			&cli.StringFlag{
				Name:        "title",
				Usage:       "page title",
				Destination: &cmd.title,
			},
			&cli.StringFlag{
				Name:        "regions",
				Usage:       "JSON file of selected regions",
				Destination: &cmd.regions,
			},
			&cli.StringSliceFlag{
				Name:        "select",
				Aliases:     []string{"s"},
				Usage:       "region codes to select",
				Destination: &cmd.codes,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *PageCmd) run(ctx context.Context, c *cli.Command) error {
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

	project := "dplace"
	if cfg := cmd.flags.Config; cfg != nil && cfg.Root != "" {
		project = filepath.Base(cfg.Root)
	}
	width, height := cmd.flags.mapSize()
	path, err := export.SavePage(export.PageOptions{
		Results:     payload.Results,
		Selected:    selected,
		Atlas:       atlas,
		Title:       cmd.title,
		Path:        cmd.output,
		ProjectName: project,
		Tree:        cmd.flags.treeOptions(),
		MapWidth:    width,
		MapHeight:   height,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.flags.Out, "Page written to %s\n", path)
	return nil
}
