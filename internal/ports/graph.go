// Package ports declares the interfaces that connect the dataflow engine's
// application layer to its pluggable infrastructure: connection logic,
// node-kind computation, script evaluation, and observability.
package ports

import (
	"context"

	"github.com/ahrav/go-nodeflow/internal/domain"
)

// Strategy combines an edge's previously accumulated value with a newly
// arriving value. Implementations must be stateless and must not touch
// graph state; they may only read config.
type Strategy interface {
	// Name returns the canonical lowercase name the strategy is registered
	// under.
	Name() string

	// Combine returns the new accumulated value. An error means the edge
	// transfer should be skipped for this round; strategies that define a
	// silent fallback return it with a nil error instead.
	Combine(ctx context.Context, prev, incoming domain.Value, config map[string]any) (domain.Value, error)
}

// Accumulator is implemented by strategies that build a value out of every
// edge feeding a port (list, unique, concat). The runtime rebuilds such
// ports from empty at the start of each propagation round.
type Accumulator interface {
	Strategy

	// Accumulates reports whether the strategy appends to prev.
	Accumulates() bool
}

// SchemaProvider is implemented by strategies that accept configuration.
// The returned JSON schema describes the edge's logic_config mapping and is
// used to validate imported projects.
type SchemaProvider interface {
	ConfigSchema() map[string]any
}

// Variable is an upstream variable node bound into a sink's script by name.
type Variable struct {
	// Name is the declared variable name.
	Name string
	// Value is the variable's current value. String values are coerced
	// through literal parsing by the consumer.
	Value domain.Value
}

// NodeView is the read-only surface a kind computation sees. It is
// implemented by the application's Node.
type NodeView interface {
	ID() string
	Kind() string
	Title() string
	Content() string
	// PlainText is the rendered text, falling back to content.
	PlainText() string
	Language() string
	ForwardOutput() bool
	IncludeContent() bool
	VariableName() string
	VariableValue() (domain.Value, bool)
	InputPorts() []domain.Port
	OutputPorts() []domain.Port
	// InputValue returns the current value of an input port, nil if unset.
	InputValue(port string) domain.Value
	// UpstreamVariables lists variable nodes feeding this node, in edge order.
	UpstreamVariables() []Variable
	// Diagnostics is the node's debug text buffer.
	Diagnostics() *domain.Diagnostics
}

// ComputeFunc computes a node's output values for one node kind. base holds
// a copy of the node's current outputs; implementations update and return
// it. A returned error leaves the node's outputs untouched for the round.
type ComputeFunc func(ctx context.Context, node NodeView, base map[string]domain.Value) (map[string]domain.Value, error)
