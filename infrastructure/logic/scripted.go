package logic

import (
	"context"

	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

var (
	_ ports.Strategy = (*PyEval)(nil)
	_ ports.Strategy = (*PyMap)(nil)
	_ ports.Strategy = (*PyFilter)(nil)
)

// PyEval evaluates the "expr" option (default "value") with value bound to
// the incoming value and prev to the previous one. Any evaluation failure
// yields the incoming value unchanged.
type PyEval struct {
	evaluator ports.Evaluator
}

// NewPyEval creates a PyEval strategy.
func NewPyEval(evaluator ports.Evaluator) *PyEval { return &PyEval{evaluator: evaluator} }

// Name implements ports.Strategy.
func (*PyEval) Name() string { return NamePyEval }

// Combine implements ports.Strategy.
func (s *PyEval) Combine(ctx context.Context, prev, incoming domain.Value, config map[string]any) (domain.Value, error) {
	expr := stringOption(config, "expr", "value")
	out, err := s.evaluator.Run(ctx, ports.Script{
		Name:     NamePyEval,
		Source:   expr,
		Mode:     ports.ModeExpression,
		Bindings: map[string]domain.Value{"value": incoming, "prev": prev},
		Minimal:  true,
	})
	if err != nil {
		return incoming, nil
	}
	return out, nil
}

// ConfigSchema implements ports.SchemaProvider.
func (*PyEval) ConfigSchema() map[string]any {
	return objectSchema(map[string]any{
		"expr": map[string]any{"type": "string"},
	})
}

// PyMap applies the "func" expression over x to the incoming value, or to
// each element when it is a list. A failure on any element leaves the whole
// incoming value unchanged.
type PyMap struct {
	evaluator ports.Evaluator
}

// NewPyMap creates a PyMap strategy.
func NewPyMap(evaluator ports.Evaluator) *PyMap { return &PyMap{evaluator: evaluator} }

// Name implements ports.Strategy.
func (*PyMap) Name() string { return NamePyMap }

// Combine implements ports.Strategy.
func (s *PyMap) Combine(ctx context.Context, _, incoming domain.Value, config map[string]any) (domain.Value, error) {
	fn, ok := config["func"].(string)
	if !ok || fn == "" {
		return incoming, nil
	}

	list, isList := incoming.([]domain.Value)
	if !isList {
		out, err := applyX(ctx, s.evaluator, NamePyMap, fn, incoming)
		if err != nil {
			return incoming, nil
		}
		return out, nil
	}

	mapped := make([]domain.Value, len(list))
	for i, el := range list {
		out, err := applyX(ctx, s.evaluator, NamePyMap, fn, el)
		if err != nil {
			return incoming, nil
		}
		mapped[i] = out
	}
	return mapped, nil
}

// ConfigSchema implements ports.SchemaProvider.
func (*PyMap) ConfigSchema() map[string]any {
	return objectSchema(map[string]any{
		"func": map[string]any{"type": "string"},
	})
}

// PyFilter keeps list elements for which the "pred" expression over x is
// truthy. A scalar incoming value passes when the predicate holds; otherwise
// the previous value is kept. Failures leave the incoming value unchanged.
type PyFilter struct {
	evaluator ports.Evaluator
}

// NewPyFilter creates a PyFilter strategy.
func NewPyFilter(evaluator ports.Evaluator) *PyFilter { return &PyFilter{evaluator: evaluator} }

// Name implements ports.Strategy.
func (*PyFilter) Name() string { return NamePyFilter }

// Combine implements ports.Strategy.
func (s *PyFilter) Combine(ctx context.Context, prev, incoming domain.Value, config map[string]any) (domain.Value, error) {
	pred, ok := config["pred"].(string)
	if !ok || pred == "" {
		return incoming, nil
	}

	list, isList := incoming.([]domain.Value)
	if !isList {
		keep, err := applyX(ctx, s.evaluator, NamePyFilter, pred, incoming)
		if err != nil {
			return incoming, nil
		}
		if domain.Truthy(keep) {
			return incoming, nil
		}
		return prev, nil
	}

	kept := make([]domain.Value, 0, len(list))
	for _, el := range list {
		keep, err := applyX(ctx, s.evaluator, NamePyFilter, pred, el)
		if err != nil {
			return incoming, nil
		}
		if domain.Truthy(keep) {
			kept = append(kept, el)
		}
	}
	return kept, nil
}

// ConfigSchema implements ports.SchemaProvider.
func (*PyFilter) ConfigSchema() map[string]any {
	return objectSchema(map[string]any{
		"pred": map[string]any{"type": "string"},
	})
}

func applyX(ctx context.Context, evaluator ports.Evaluator, name, expr string, x domain.Value) (domain.Value, error) {
	return evaluator.Run(ctx, ports.Script{
		Name:     name,
		Source:   expr,
		Mode:     ports.ModeExpression,
		Bindings: map[string]domain.Value{"x": x},
		Minimal:  true,
	})
}
