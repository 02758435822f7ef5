package application

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ahrav/go-nodeflow/infrastructure/kinds"
	"github.com/ahrav/go-nodeflow/infrastructure/script"
	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

// KindRegistry maps node type tags to compute functions. Tags without a
// registered function compute like generic nodes.
type KindRegistry struct {
	// computes maps normalized type tags to compute functions.
	computes map[string]ports.ComputeFunc
	// evaluator backs the scripted kinds.
	evaluator ports.Evaluator
	// mu protects concurrent access to computes.
	mu sync.RWMutex
}

// NewKindRegistry creates a registry with every built-in kind. Transform
// and sink nodes evaluate their content through evaluator.
func NewKindRegistry(evaluator ports.Evaluator) *KindRegistry {
	return &KindRegistry{
		computes:  kinds.Builtins(evaluator),
		evaluator: evaluator,
	}
}

var (
	defaultKinds     *KindRegistry
	defaultKindsOnce sync.Once
)

// DefaultKindRegistry returns a shared registry backed by a sandbox with
// default limits. Nodes that were never added to a graph use it.
func DefaultKindRegistry() *KindRegistry {
	defaultKindsOnce.Do(func() {
		defaultKinds = NewKindRegistry(script.NewEvaluator(script.DefaultConfig()))
	})
	return defaultKinds
}

// Evaluator returns the evaluator backing the scripted kinds.
func (r *KindRegistry) Evaluator() ports.Evaluator { return r.evaluator }

// Register adds or replaces the compute function for a type tag.
func (r *KindRegistry) Register(kind string, fn ports.ComputeFunc) error {
	if fn == nil {
		return fmt.Errorf("compute function cannot be nil")
	}
	kind = domain.NormalizeKind(kind)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.computes[kind] = fn
	return nil
}

// Lookup returns the compute function for a type tag, falling back to the
// generic one.
func (r *KindRegistry) Lookup(kind string) ports.ComputeFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if fn, ok := r.computes[domain.NormalizeKind(kind)]; ok {
		return fn
	}
	if fn, ok := r.computes[domain.KindGeneric]; ok {
		return fn
	}
	return kinds.Source
}

// Kinds returns the registered type tags in sorted order.
func (r *KindRegistry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.computes))
	for k := range r.computes {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
