package main

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/export"
)

type ReportCmd struct {
	flags *Flags

	// flags
	output  string
	title   string
	regions string
	codes   []string
}

// NewReportCmd creates a new report command
func NewReportCmd(flags *Flags) *ReportCmd {
	return &ReportCmd{flags: flags}
}

// Register adds the report command to the application
func (cmd *ReportCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "report",
		Usage:     "Write a markdown summary of the payload",
		UsageText: "dv report [-o FILE] [--select CODES] [payload.json]",
		Description: `Summarizes the variables, trees and societies of the payload as markdown,
followed by the selected regions.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output file (default: stdout)",
				Destination: &cmd.output,
			},
			&cli.StringFlag{
				Name:        "title",
				Usage:       "report title",
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
				Usage:       "region codes to list as selected",
				Destination: &cmd.codes,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ReportCmd) run(ctx context.Context, c *cli.Command) error {
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

	opts := export.ReportOptions{Title: cmd.title, Selected: selected}
	if cmd.output != "" && cmd.output != "-" {
		if err := export.SaveReportToFile(payload.Results, opts, cmd.output); err != nil {
			return err
		}
		fmt.Fprintf(cmd.flags.Out, "Report written to %s\n", cmd.output)
		return nil
	}
	return cmd.flags.writeOutput("", func(w io.Writer) error {
		md, err := export.GenerateReport(payload.Results, opts)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, md)
		return err
	})
}
