package logic

import (
	"context"
	"strings"

	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

var (
	_ ports.Accumulator = List{}
	_ ports.Accumulator = Unique{}
	_ ports.Accumulator = Concat{}
)

// List appends incoming values to the accumulated list. A scalar prev is
// promoted to a one-element list; list incoming values are spliced in.
type List struct{}

// Name implements ports.Strategy.
func (List) Name() string { return NameList }

// Accumulates implements ports.Accumulator.
func (List) Accumulates() bool { return true }

// Combine implements ports.Strategy.
func (List) Combine(_ context.Context, prev, incoming domain.Value, _ map[string]any) (domain.Value, error) {
	items := wrap(incoming)
	switch p := prev.(type) {
	case nil:
		if list, ok := incoming.([]domain.Value); ok {
			return list, nil
		}
		return items, nil
	case []domain.Value:
		out := make([]domain.Value, 0, len(p)+len(items))
		out = append(out, p...)
		return append(out, items...), nil
	default:
		return append([]domain.Value{prev}, items...), nil
	}
}

// Unique appends incoming values that are not already present.
type Unique struct{}

// Name implements ports.Strategy.
func (Unique) Name() string { return NameUnique }

// Accumulates implements ports.Accumulator.
func (Unique) Accumulates() bool { return true }

// Combine implements ports.Strategy.
func (Unique) Combine(_ context.Context, prev, incoming domain.Value, _ map[string]any) (domain.Value, error) {
	var out []domain.Value
	switch p := prev.(type) {
	case nil:
		out = []domain.Value{}
	case []domain.Value:
		out = append(make([]domain.Value, 0, len(p)), p...)
	default:
		out = []domain.Value{prev}
	}

	for _, item := range wrap(incoming) {
		if !contains(out, item) {
			out = append(out, item)
		}
	}
	return out, nil
}

// Concat joins values into text. The "delimiter" option (default newline)
// separates elements; it is not doubled when the accumulated text already
// ends with it, and it is omitted when either side is empty.
type Concat struct{}

// Name implements ports.Strategy.
func (Concat) Name() string { return NameConcat }

// Accumulates implements ports.Accumulator.
func (Concat) Accumulates() bool { return true }

// Combine implements ports.Strategy.
func (Concat) Combine(_ context.Context, prev, incoming domain.Value, config map[string]any) (domain.Value, error) {
	delim := stringOption(config, "delimiter", "\n")

	var prevStr string
	switch p := prev.(type) {
	case nil:
	case []domain.Value:
		prevStr = joinNonNil(p, delim)
	default:
		prevStr = domain.Stringify(p)
	}
	inStr := joinNonNil(wrap(incoming), delim)

	switch {
	case prevStr == "":
		return inStr, nil
	case inStr == "":
		return prevStr, nil
	case strings.HasSuffix(prevStr, delim):
		return prevStr + inStr, nil
	default:
		return prevStr + delim + inStr, nil
	}
}

// ConfigSchema implements ports.SchemaProvider.
func (Concat) ConfigSchema() map[string]any {
	return objectSchema(map[string]any{
		"delimiter": map[string]any{"type": "string"},
	})
}

// wrap returns list values as-is and wraps anything else, including nil,
// in a one-element list.
func wrap(v domain.Value) []domain.Value {
	if list, ok := v.([]domain.Value); ok {
		return list
	}
	return []domain.Value{v}
}

func contains(list []domain.Value, v domain.Value) bool {
	for _, el := range list {
		if domain.Equal(el, v) {
			return true
		}
	}
	return false
}

func joinNonNil(list []domain.Value, delim string) string {
	parts := make([]string, 0, len(list))
	for _, el := range list {
		if el != nil {
			parts = append(parts, domain.Stringify(el))
		}
	}
	return strings.Join(parts, delim)
}
