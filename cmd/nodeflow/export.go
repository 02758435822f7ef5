package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	cli "github.com/urfave/cli/v3"

	"github.com/ahrav/go-nodeflow/internal/application"
)

func newExportCommand(fsys afero.Fs, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Convert a project between YAML and JSON, optionally evaluating it first",
		ArgsUsage: "INPUT OUTPUT",
		Description: "OUTPUT may be a .yaml, .yml or .json path, or - for standard output. " +
			"With --evaluate, collector text reflects the evaluated graph.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "evaluate",
				Usage: "Evaluate the graph before exporting it",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Encoding used when writing to standard output (yaml or json)",
				Value: string(application.FormatYAML),
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Project name written to the output",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			if command.Args().Len() != 2 {
				return cli.Exit("export: INPUT and OUTPUT are required", 2)
			}
			input, output := command.Args().Get(0), command.Args().Get(1)

			e, err := newEngine(ctx, command, fsys)
			if err != nil {
				return err
			}

			source, err := e.store.Open(ctx, input)
			if err != nil {
				return err
			}
			g, err := source.Build(e.kinds)
			if err != nil {
				return fmt.Errorf("failed to build %s: %w", input, err)
			}

			if command.Bool("evaluate") {
				report := e.newRuntime(g).Evaluate(ctx)
				e.logger.Info("evaluated before export", "outcome", report.Outcome, "iterations", report.Iterations)
			}

			file := application.Export(g)
			file.Name = source.Name
			if name := command.String("name"); name != "" {
				file.Name = name
			}

			if output == "-" {
				format := application.Format(strings.ToLower(command.String("format")))
				if format != application.FormatJSON && format != application.FormatYAML {
					return cli.Exit(fmt.Sprintf("export: unsupported format %q", format), 2)
				}
				return application.EncodeProject(out, file, format)
			}

			if err := e.store.Save(output, file); err != nil {
				return err
			}
			e.logger.Info("project exported", "input", input, "output", output)
			return nil
		},
	}
}
