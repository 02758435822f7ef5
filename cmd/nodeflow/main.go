// Command nodeflow evaluates, validates and converts dataflow node graphs.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	cli "github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(afero.NewOsFs(), os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp builds the command tree. All file access goes through fsys and
// all command output goes to out.
func newApp(fsys afero.Fs, out io.Writer) *cli.Command {
	out = newSyncWriter(out)

	return &cli.Command{
		Name:                  "nodeflow",
		Usage:                 "Evaluate dataflow node graphs",
		EnableShellCompletion: true,
		Writer:                out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an engine configuration file (YAML)",
				Sources: cli.EnvVars("NODEFLOW_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("NODEFLOW_LOG_LEVEL"),
			},
			&cli.IntFlag{
				Name:    "max-iterations",
				Usage:   "Propagation rounds per evaluation (overrides the configuration file)",
				Sources: cli.EnvVars("NODEFLOW_MAX_ITERATIONS"),
			},
		},
		Commands: []*cli.Command{
			newEvalCommand(fsys, out),
			newValidateCommand(fsys, out),
			newExportCommand(fsys, out),
			newDemoCommand(fsys, out),
			newWatchCommand(fsys, out),
		},
	}
}
