package application

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-nodeflow/infrastructure/logic"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

// maxSuggestionDistance bounds how far an unknown strategy name may be from
// a registered one for the registry to suggest it.
const maxSuggestionDistance = 3

// LogicRegistry maps case-insensitive strategy names to connection-logic
// strategies. Unknown names resolve to passthrough.
type LogicRegistry struct {
	// strategies maps folded names to strategies.
	strategies map[string]ports.Strategy
	// warned records unknown names that were already logged.
	warned map[string]struct{}
	// mu protects concurrent access to the maps.
	mu sync.RWMutex
	// logger receives fallback warnings.
	logger *slog.Logger
}

// NewLogicRegistry creates a registry with the built-in strategies. The
// scripted strategies evaluate through evaluator. A nil logger selects
// slog.Default().
func NewLogicRegistry(evaluator ports.Evaluator, logger *slog.Logger) *LogicRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &LogicRegistry{
		strategies: make(map[string]ports.Strategy),
		warned:     make(map[string]struct{}),
		logger:     logger,
	}
	for _, s := range logic.Builtins(evaluator) {
		r.strategies[foldName(s.Name())] = s
	}
	return r
}

// foldName normalizes a strategy name for lookup. A Caser is stateful, so
// a fresh one is used per call.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Register adds or replaces a strategy under its own name.
func (r *LogicRegistry) Register(s ports.Strategy) error {
	if s == nil {
		return fmt.Errorf("strategy cannot be nil")
	}
	name := foldName(s.Name())
	if name == "" {
		return fmt.Errorf("strategy name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.strategies[name] = s
	delete(r.warned, name)
	return nil
}

// Lookup returns the strategy registered under name, ignoring case.
func (r *LogicRegistry) Lookup(name string) (ports.Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[foldName(name)]
	return s, ok
}

// Resolve returns the strategy registered under name, falling back to
// passthrough. The first fallback for each unknown name is logged with the
// closest registered name.
func (r *LogicRegistry) Resolve(name string) ports.Strategy {
	if s, ok := r.Lookup(name); ok {
		return s
	}

	key := foldName(name)
	r.mu.Lock()
	_, warned := r.warned[key]
	r.warned[key] = struct{}{}
	fallback := r.strategies[logic.NamePassthrough]
	r.mu.Unlock()

	if !warned {
		attrs := []any{"logic", name, "fallback", logic.NamePassthrough}
		if suggestion := r.Suggest(name); suggestion != "" {
			attrs = append(attrs, "did_you_mean", suggestion)
		}
		r.logger.Warn("unknown connection logic", attrs...)
	}

	if fallback == nil {
		return logic.Passthrough{}
	}
	return fallback
}

// Suggest returns the registered name closest to name by edit distance, or
// "" when nothing is close enough.
func (r *LogicRegistry) Suggest(name string) string {
	key := foldName(name)
	best, bestDist := "", maxSuggestionDistance+1
	for _, candidate := range r.Names() {
		d := levenshtein.ComputeDistance(key, candidate)
		if d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

// Names returns the registered names in sorted order.
func (r *LogicRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Schema returns the JSON schema for a strategy's configuration. It
// reports false for unknown strategies and strategies without options.
func (r *LogicRegistry) Schema(name string) (map[string]any, bool) {
	s, ok := r.Lookup(name)
	if !ok {
		return nil, false
	}
	provider, ok := s.(ports.SchemaProvider)
	if !ok {
		return nil, false
	}
	return provider.ConfigSchema(), true
}
