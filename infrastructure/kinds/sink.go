package kinds

import (
	"context"

	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

// Sink computes terminal nodes. A node whose language marks it as scripted
// runs its content as a block with these bindings:
//
//   - input: the first input port's value, collapsed to a scalar
//   - inputs: every input port's collapsed value, keyed by port name
//   - one binding per input port name
//   - one binding per upstream variable node, keyed by its declared name
//
// Printed text goes to the node's diagnostics. Unscripted sinks publish
// their own text only when ForwardOutput is set and otherwise leave their
// outputs as they are.
func Sink(evaluator ports.Evaluator) ports.ComputeFunc {
	return func(ctx context.Context, node ports.NodeView, base map[string]domain.Value) (map[string]domain.Value, error) {
		if !domain.IsScriptLanguage(node.Language()) {
			if node.ForwardOutput() {
				base[primaryOutput(node)] = node.PlainText()
			}
			return base, nil
		}

		bindings := sinkBindings(evaluator, node)
		diag := node.Diagnostics()
		val, err := evaluator.Run(ctx, ports.Script{
			Name:     node.ID(),
			Source:   node.Content(),
			Mode:     ports.ModeBlock,
			Bindings: bindings,
			Primary:  bindings["input"],
			Output:   diag,
		})
		if err != nil {
			diag.Line(err.Error())
			base[primaryOutput(node)] = nil
			return base, nil
		}
		base[primaryOutput(node)] = val
		return base, nil
	}
}

func sinkBindings(evaluator ports.Evaluator, node ports.NodeView) map[string]domain.Value {
	ins := node.InputPorts()
	inputs := make(map[string]domain.Value, len(ins))
	bindings := make(map[string]domain.Value, len(ins)+4)

	// Variables first so port names win on collision.
	for _, v := range node.UpstreamVariables() {
		if v.Name == "" {
			continue
		}
		bindings[v.Name] = coerce(evaluator, v.Value)
	}
	for _, p := range ins {
		v := domain.Collapse(node.InputValue(p.Name))
		inputs[p.Name] = v
		bindings[p.Name] = v
	}
	bindings["inputs"] = inputs
	bindings["input"] = primaryInput(node)
	return bindings
}

// coerce turns literal text such as "42" or "[1, 2]" into a typed value.
// Other values pass through.
func coerce(evaluator ports.Evaluator, v domain.Value) domain.Value {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if lit, ok := evaluator.ParseLiteral(s); ok {
		return lit
	}
	return s
}
