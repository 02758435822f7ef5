package logic

import (
	"context"

	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

var (
	_ ports.Strategy = Passthrough{}
	_ ports.Strategy = Latest{}
	_ ports.Strategy = Coalesce{}
	_ ports.Strategy = Switch{}
)

// Passthrough returns the incoming value unconditionally.
type Passthrough struct{}

// Name implements ports.Strategy.
func (Passthrough) Name() string { return NamePassthrough }

// Combine implements ports.Strategy.
func (Passthrough) Combine(_ context.Context, _, incoming domain.Value, _ map[string]any) (domain.Value, error) {
	return incoming, nil
}

// Latest returns the incoming value unless it is nil.
type Latest struct{}

// Name implements ports.Strategy.
func (Latest) Name() string { return NameLatest }

// Combine implements ports.Strategy.
func (Latest) Combine(_ context.Context, prev, incoming domain.Value, _ map[string]any) (domain.Value, error) {
	if incoming != nil {
		return incoming, nil
	}
	return prev, nil
}

// Coalesce keeps the first non-nil value it sees.
type Coalesce struct{}

// Name implements ports.Strategy.
func (Coalesce) Name() string { return NameCoalesce }

// Combine implements ports.Strategy.
func (Coalesce) Combine(_ context.Context, prev, incoming domain.Value, _ map[string]any) (domain.Value, error) {
	if prev != nil {
		return prev, nil
	}
	return incoming, nil
}

// Switch gates an edge: when the "enabled" option (default true) is false
// the destination keeps its previous value.
type Switch struct{}

// Name implements ports.Strategy.
func (Switch) Name() string { return NameSwitch }

// Combine implements ports.Strategy.
func (Switch) Combine(_ context.Context, prev, incoming domain.Value, config map[string]any) (domain.Value, error) {
	if boolOption(config, "enabled", true) {
		return incoming, nil
	}
	return prev, nil
}

// ConfigSchema implements ports.SchemaProvider.
func (Switch) ConfigSchema() map[string]any {
	return objectSchema(map[string]any{
		"enabled": map[string]any{"type": "boolean"},
	})
}
