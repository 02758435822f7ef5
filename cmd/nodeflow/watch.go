package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/afero"
	cli "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-nodeflow/infrastructure/events"
	"github.com/ahrav/go-nodeflow/infrastructure/middleware"
	"github.com/ahrav/go-nodeflow/internal/application"
	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

func newWatchCommand(fsys afero.Fs, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Aliases:   []string{"w"},
		Usage:     "Re-evaluate a project whenever its file changes",
		ArgsUsage: "PROJECT",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "How often the project file is checked for changes",
				Value: 500 * time.Millisecond,
			},
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "Stop after this long (0 runs until interrupted)",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			if command.Args().Len() != 1 {
				return cli.Exit("watch: exactly one project file is required", 2)
			}

			e, err := newEngine(ctx, command, fsys)
			if err != nil {
				return err
			}

			if d := command.Duration("duration"); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			s := &watchSession{
				engine: e,
				fsys:   fsys,
				path:   command.Args().First(),
				out:    out,
			}
			err = s.run(ctx, command.String("config"), command.Duration("interval"))
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		},
	}
}

// watchSession owns the graph currently loaded from the watched file. It
// implements middleware.GraphEvaluator so a LiveEvaluator can drive it
// across reloads.
type watchSession struct {
	engine *engine
	fsys   afero.Fs
	path   string
	out    io.Writer

	mu        sync.Mutex
	graph     *application.Graph
	runtime   *application.Runtime
	listeners []ports.CompletionListener
	modTime   time.Time
	size      int64
}

var _ middleware.GraphEvaluator = (*watchSession)(nil)

// Evaluate runs one pass over the current graph.
func (s *watchSession) Evaluate(ctx context.Context) domain.Report {
	s.mu.Lock()
	rt := s.runtime
	s.mu.Unlock()
	return rt.Evaluate(ctx)
}

func (s *watchSession) run(ctx context.Context, configPath string, interval time.Duration) error {
	pubSub := events.NewInMemoryPubSub(s.engine.logger)
	// The subscription outlives ctx so events of the final pass are still
	// printed; closing the pub/sub ends it.
	messages, err := pubSub.Subscribe(context.Background(), events.Topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to evaluation events: %w", err)
	}

	var printer sync.WaitGroup
	printer.Add(1)
	go func() {
		defer printer.Done()
		for msg := range messages {
			event, err := events.Decode(msg)
			msg.Ack()
			if err != nil {
				s.engine.logger.Warn("undecodable evaluation event", "error", err)
				continue
			}
			writeSummary(s.out, "event "+event.Report.ID[:min(8, len(event.Report.ID))], event.Report)
		}
	}()
	defer func() {
		_ = pubSub.Close()
		printer.Wait()
	}()

	s.listeners = []ports.CompletionListener{
		events.NewPublisher(pubSub, events.WithGraphName(s.path), events.WithLogger(s.engine.logger)),
		ports.CompletionFunc(s.printCollectors),
	}
	if err := s.reload(ctx); err != nil {
		return err
	}

	live := middleware.NewLiveEvaluator(s, s.engine.cfg.Live, s.engine.logger)

	if configPath != "" {
		loader := application.NewFileConfigLoader(s.fsys, configPath)
		loader.SetWatchInterval(interval)
		stop, err := loader.Watch(ctx, &application.EngineConfig{}, func(v any) {
			s.applyConfig(*v.(*application.EngineConfig))
			live.Request()
		})
		if err != nil {
			return fmt.Errorf("failed to watch configuration: %w", err)
		}
		defer stop()
	}

	s.engine.logger.Info("watching project", "path", s.path, "interval", interval)
	live.Request()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return live.Run(gctx) })
	g.Go(func() error { return s.poll(gctx, interval, live) })
	return g.Wait()
}

// reload rebuilds the graph from the file. On failure the previous graph
// stays in place.
func (s *watchSession) reload(ctx context.Context) error {
	info, err := s.fsys.Stat(s.path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", s.path, err)
	}

	g, err := s.engine.store.OpenGraph(ctx, s.path, s.engine.kinds)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rt := s.engine.newRuntime(g)
	for _, l := range s.listeners {
		rt.Subscribe(l)
	}
	s.graph, s.runtime = g, rt
	s.modTime, s.size = info.ModTime(), info.Size()
	return nil
}

// changed reports whether the file differs from the loaded version.
func (s *watchSession) changed() bool {
	info, err := s.fsys.Stat(s.path)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !info.ModTime().Equal(s.modTime) || info.Size() != s.size
}

func (s *watchSession) poll(ctx context.Context, interval time.Duration, live *middleware.LiveEvaluator) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if !s.changed() {
			continue
		}
		if err := s.reload(ctx); err != nil {
			s.engine.logger.Warn("keeping previous graph", "path", s.path, "error", err)
			continue
		}
		s.engine.logger.Info("project reloaded", "path", s.path)
		live.Request()
	}
}

// applyConfig adopts a changed engine configuration for the current and
// future graphs.
func (s *watchSession) applyConfig(cfg application.EngineConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine.cfg.MaxIterations = cfg.MaxIterations
	s.engine.cfg.Script.MaxDiagnosticsBytes = cfg.Script.MaxDiagnosticsBytes
	s.engine.cfg.Apply(s.graph, s.runtime)
	s.engine.logger.Info("configuration reloaded", "max_iterations", cfg.MaxIterations)
}

func (s *watchSession) printCollectors(_ context.Context, _ domain.Report) {
	s.mu.Lock()
	g := s.graph
	s.mu.Unlock()

	for _, n := range g.Nodes() {
		if domain.IsCollector(n.Kind()) {
			fmt.Fprintf(s.out, "  %s: %s\n", nodeLabel(n), indent(n.PlainText()))
		}
	}
}
