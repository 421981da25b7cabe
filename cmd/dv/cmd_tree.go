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

type TreeCmd struct {
	flags *Flags

	// flags
	tree      string
	output    string
	format    string
	hideTitle bool
	width     float64
}

// NewTreeCmd creates a new tree command
func NewTreeCmd(flags *Flags) *TreeCmd {
	return &TreeCmd{flags: flags}
}

// Register adds the tree command to the application
func (cmd *TreeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "tree",
		Usage:     "Render a language tree as SVG or PNG",
		UsageText: "dv tree [--tree NAME] [-o FILE] [--format svg|png|both] [payload.json]",
		Description: `Draws one language tree of the payload as a right-angle dendrogram. Leaves
that match a society carry one dot per coded value, colored by value.

Without --tree, a payload with several trees prompts for one on a terminal
and uses the first tree otherwise. Output goes to stdout unless -o is given;
--format both writes FILE.svg and FILE.png side by side.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "tree",
				Aliases:     []string{"t"},
				Usage:       "tree name",
				Destination: &cmd.tree,
			},
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
			&cli.BoolFlag{
				Name:        "no-title",
				Usage:       "omit the tree name above the diagram",
				Destination: &cmd.hideTitle,
			},
			&cli.FloatFlag{
				Name:        "width",
				Usage:       "horizontal extent of the deepest leaf in pixels",
				Destination: &cmd.width,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *TreeCmd) run(ctx context.Context, c *cli.Command) error {
	format, err := outputFormat(cmd.output, cmd.format)
	if err != nil {
		return err
	}
	payload, err := cmd.flags.loadPayload(c.Args().First())
	if err != nil {
		return err
	}
	tree, err := cmd.flags.chooseTree(payload.Results, cmd.tree)
	if err != nil {
		return err
	}

	opts := cmd.flags.treeOptions()
	if cmd.hideTitle {
		opts.HideTitle = true
	}
	if cmd.width > 0 {
		opts.Layout.Width = cmd.width
	}

	paths := outputPaths(cmd.output, format)
	renderers := map[string]func(io.Writer) error{
		formatSVG: func(w io.Writer) error { return export.RenderTree(w, tree, payload.Results, opts) },
		formatPNG: func(w io.Writer) error { return export.RenderTreePNG(w, tree, payload.Results, opts) },
	}

	if format != formatBoth {
		return cmd.flags.writeOutput(paths[0], renderers[format])
	}

	if err := cmd.flags.writeBoth(ctx, paths, renderers); err != nil {
		return err
	}
	lg := debug.Component("cli")
	lg.Info().Str("tree", tree.Name).Strs("files", paths).Msg("tree written")
	fmt.Fprintf(os.Stderr, "Wrote %s and %s\n", paths[0], paths[1])
	return nil
}
