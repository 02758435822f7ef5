package kinds

import (
	"context"
	"strings"

	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

// Transform evaluates the node's content against its first input, bound as
// input, and publishes the result on the first output port.
//
// When evaluation fails the node falls back to the input with the snippet
// text appended on a new line so nothing the user typed is lost. A failing
// transform with no input produces nil.
func Transform(evaluator ports.Evaluator) ports.ComputeFunc {
	return func(ctx context.Context, node ports.NodeView, base map[string]domain.Value) (map[string]domain.Value, error) {
		in := primaryInput(node)
		out := primaryOutput(node)

		src := node.Content()
		if strings.TrimSpace(src) == "" {
			base[out] = domain.CloneValue(in)
			return base, nil
		}

		diag := node.Diagnostics()
		val, err := evaluator.Run(ctx, ports.Script{
			Name:     node.ID(),
			Source:   src,
			Bindings: map[string]domain.Value{"input": in},
			Primary:  in,
			Output:   diag,
		})
		if err != nil {
			diag.Line(err.Error())
			base[out] = transformFallback(in, src)
			return base, nil
		}
		base[out] = val
		return base, nil
	}
}

func transformFallback(in domain.Value, src string) domain.Value {
	if in == nil {
		return nil
	}
	text := domain.Stringify(in)
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text + src
}
