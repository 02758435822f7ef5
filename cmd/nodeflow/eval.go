package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	cli "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-nodeflow/infrastructure/middleware"
	"github.com/ahrav/go-nodeflow/internal/application"
	"github.com/ahrav/go-nodeflow/internal/domain"
)

// evalResult is the JSON form of one evaluated project.
type evalResult struct {
	Path    string            `json:"path"`
	Report  domain.Report     `json:"report"`
	Outputs map[string]string `json:"outputs"`

	graph *application.Graph
}

func newEvalCommand(fsys afero.Fs, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "eval",
		Aliases:   []string{"e"},
		Usage:     "Evaluate one or more project files",
		ArgsUsage: "PROJECT [PROJECT...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "jobs",
				Usage: "Number of projects evaluated concurrently",
				Value: 4,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print results as JSON",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Print evaluation metrics after the results",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "Print one trace line per evaluation",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			paths := command.Args().Slice()
			if len(paths) == 0 {
				return cli.Exit("eval: at least one project file is required", 2)
			}

			e, err := newEngine(ctx, command, fsys)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			metrics := middleware.NewPrometheusMetrics(reg)

			var observer *middleware.OTelEvaluationObserver
			if command.Bool("trace") {
				provider := newSpanPrinterProvider(out)
				defer func() { _ = provider.Shutdown(context.Background()) }()
				observer = middleware.NewOTelEvaluationObserver(provider)
			}

			e.logger.Info("evaluating projects", "count", len(paths))

			results := make([]evalResult, len(paths))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(max(command.Int("jobs"), 1))
			for i, path := range paths {
				g.Go(func() error {
					graph, err := e.store.OpenGraph(gctx, path, e.kinds)
					if err != nil {
						return err
					}
					rt := e.newRuntime(graph)
					rt.SetMetrics(metrics)
					if observer != nil {
						rt.SetObserver(observer)
					}
					results[i] = evalResult{
						Path:    path,
						Report:  rt.Evaluate(gctx),
						Outputs: collectorOutputs(graph),
						graph:   graph,
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if command.Bool("json") {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(results); err != nil {
					return fmt.Errorf("failed to encode results: %w", err)
				}
			} else {
				for _, r := range results {
					writeResult(out, r.Path, r.graph, r.Report)
				}
			}

			if command.Bool("metrics") {
				return writeMetrics(out, reg)
			}
			return nil
		},
	}
}

// collectorOutputs maps collector node ids to their text.
func collectorOutputs(g *application.Graph) map[string]string {
	out := make(map[string]string)
	for _, n := range g.Nodes() {
		if domain.IsCollector(n.Kind()) {
			out[n.ID()] = n.PlainText()
		}
	}
	return out
}
