package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	cli "github.com/urfave/cli/v3"

	"github.com/ahrav/go-nodeflow/internal/application"
	"github.com/ahrav/go-nodeflow/internal/logging"
)

// engine bundles the registries and store shared by every command.
type engine struct {
	cfg    application.EngineConfig
	logger *slog.Logger
	kinds  *application.KindRegistry
	logic  *application.LogicRegistry
	store  *application.ProjectStore
}

// newEngine resolves the configuration (defaults, then the file named by
// --config, then explicit flags) and wires the registries.
func newEngine(ctx context.Context, command *cli.Command, fsys afero.Fs) (*engine, error) {
	cfg := application.DefaultEngineConfig()
	if path := command.String("config"); path != "" {
		if err := application.NewFileConfigLoader(fsys, path).Load(ctx, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}
	if command.IsSet("log-level") {
		cfg.LogLevel = command.String("log-level")
	}
	if command.IsSet("max-iterations") {
		cfg.MaxIterations = command.Int("max-iterations")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Setup(cfg.LogLevel)

	kinds := cfg.NewKindRegistry()
	logic := application.NewLogicRegistry(kinds.Evaluator(), logging.WithModule("logic"))
	loader, err := application.NewProjectLoader(logic)
	if err != nil {
		return nil, fmt.Errorf("failed to create project loader: %w", err)
	}

	return &engine{
		cfg:    cfg,
		logger: logging.WithModule("nodeflow"),
		kinds:  kinds,
		logic:  logic,
		store:  application.NewProjectStore(fsys, loader),
	}, nil
}

// newRuntime creates a runtime for g configured with the engine's limits.
func (e *engine) newRuntime(g *application.Graph) *application.Runtime {
	rt := application.NewRuntime(g, e.logic)
	rt.SetLogger(logging.WithModule("runtime"))
	e.cfg.Apply(g, rt)
	return rt
}
