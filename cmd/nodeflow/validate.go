package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"
	cli "github.com/urfave/cli/v3"
)

func newValidateCommand(fsys afero.Fs, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate project files without evaluating them",
		ArgsUsage: "PROJECT [PROJECT...]",
		Action: func(ctx context.Context, command *cli.Command) error {
			paths := command.Args().Slice()
			if len(paths) == 0 {
				return cli.Exit("validate: at least one project file is required", 2)
			}

			e, err := newEngine(ctx, command, fsys)
			if err != nil {
				return err
			}

			invalid := 0
			for _, path := range paths {
				file, err := e.store.Open(ctx, path)
				if err != nil {
					invalid++
					fmt.Fprintf(out, "invalid %s: %v\n", path, err)
					continue
				}

				g, err := file.Build(e.kinds)
				if err != nil {
					invalid++
					fmt.Fprintf(out, "invalid %s: %v\n", path, err)
					continue
				}

				fmt.Fprintf(out, "ok %s (%d nodes, %d edges)\n", path, len(file.Nodes), len(file.Edges))
				if g.HasCycle() {
					fmt.Fprintf(out, "  note: %s contains a feedback loop and may not converge\n", path)
				}
			}

			if invalid > 0 {
				return cli.Exit(fmt.Sprintf("validate: %d of %d projects are invalid", invalid, len(paths)), 1)
			}
			return nil
		},
	}
}
