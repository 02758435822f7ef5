package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"
	cli "github.com/urfave/cli/v3"

	"github.com/ahrav/go-nodeflow/internal/application"
)

func newDemoCommand(fsys afero.Fs, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Build and evaluate the starter graph",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "input",
				Usage: "Text held by the source node",
				Value: "Hola",
			},
			&cli.StringFlag{
				Name:  "save",
				Usage: "Write the evaluated graph to this project file",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			e, err := newEngine(ctx, command, fsys)
			if err != nil {
				return err
			}

			g, err := application.NewDemoGraph(e.kinds)
			if err != nil {
				return err
			}
			if source, ok := g.Node(application.DemoSourceID); ok {
				source.SetContent(command.String("input"))
			}

			report := e.newRuntime(g).Evaluate(ctx)
			writeResult(out, "demo", g, report)

			if path := command.String("save"); path != "" {
				if err := e.store.SaveGraph(path, g); err != nil {
					return err
				}
				fmt.Fprintf(out, "saved %s\n", path)
			}
			return nil
		},
	}
}
