package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/debug"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/export"
)

type MapCmd struct {
	flags *Flags

	// flags
	output  string
	format  string
	title   string
	regions string
	codes   []string
	width   float64
	height  float64
}

// NewMapCmd creates a new map command
func NewMapCmd(flags *Flags) *MapCmd {
	return &MapCmd{flags: flags}
}

// Register adds the map command to the application
func (cmd *MapCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "map",
		Usage:     "Render the society map as SVG or PNG",
		UsageText: "dv map [--select CODES] [--regions FILE] [-o FILE] [payload.json]",
		Description: `Draws every society of the payload as a marker on the region map. Regions
given with --select or --regions are drawn as selected.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output file (default: stdout)",
				Destination: &cmd.output,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "svg, png or both (default: from the output extension)",
				Destination: &cmd.format,
			},
			&cli.StringFlag{
				Name:        "title",
				Usage:       "caption above the map",
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
				Usage:       "region codes to select (repeatable or comma separated)",
				Destination: &cmd.codes,
			},
			&cli.FloatFlag{
				Name:        "width",
				Usage:       "map width in pixels",
				Destination: &cmd.width,
			},
			&cli.FloatFlag{
				Name:        "height",
				Usage:       "map height in pixels",
				Destination: &cmd.height,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *MapCmd) run(ctx context.Context, c *cli.Command) error {
	format, err := outputFormat(cmd.output, cmd.format)
	if err != nil {
		return err
	}
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

	width, height := cmd.flags.mapSize()
	if cmd.width > 0 {
		width = cmd.width
	}
	if cmd.height > 0 {
		height = cmd.height
	}
	view, err := export.NewMapView(payload.Results, selected, atlas, width, height)
	if err != nil {
		return err
	}
	defer view.Close()

	opts := export.MapOptions{Title: cmd.title}
	renderers := map[string]func(io.Writer) error{
		formatSVG: func(w io.Writer) error { return export.RenderMap(w, view.Surface(), opts) },
		formatPNG: func(w io.Writer) error { return export.RenderMapPNG(w, view.Surface(), opts) },
	}

	paths := outputPaths(cmd.output, format)
	if format != formatBoth {
		return cmd.flags.writeOutput(paths[0], renderers[format])
	}
	if err := cmd.flags.writeBoth(ctx, paths, renderers); err != nil {
		return err
	}
	lg := debug.Component("cli")
	lg.Info().Strs("files", paths).Msg("map written")
	fmt.Fprintf(os.Stderr, "Wrote %s and %s\n", paths[0], paths[1])
	return nil
}
