// Package kinds implements the per-kind output computations. Each function
// follows ports.ComputeFunc: it receives a copy of the node's current
// outputs and returns it updated. Evaluation failures inside snippets are
// written to the node's diagnostics and degrade to a fallback value; they
// are never returned to the runtime.
package kinds

import (
	"context"
	"strings"

	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

// Builtins returns the compute function for every built-in node type tag.
// Unknown tags are resolved by the caller to the generic entry.
func Builtins(evaluator ports.Evaluator) map[string]ports.ComputeFunc {
	transform := Transform(evaluator)
	sink := Sink(evaluator)

	return map[string]ports.ComputeFunc{
		domain.KindGeneric:     Source,
		domain.KindSource:      Source,
		domain.KindInput:       Source,
		domain.KindGroupInput:  Source,
		domain.KindVariable:    Variable,
		domain.KindTransform:   transform,
		domain.KindProcess:     transform,
		domain.KindAggregator:  Aggregator,
		domain.KindCombine:     Aggregator,
		domain.KindSink:        sink,
		domain.KindOutput:      sink,
		domain.KindGroupOutput: sink,
	}
}

// Source publishes the node's content, or its rendered text when the
// content is empty.
func Source(_ context.Context, node ports.NodeView, base map[string]domain.Value) (map[string]domain.Value, error) {
	val := node.Content()
	if val == "" {
		val = node.PlainText()
	}
	base[primaryOutput(node)] = val
	return base, nil
}

// Variable publishes the node's variable value, falling back to its
// rendered text when no value is set.
func Variable(_ context.Context, node ports.NodeView, base map[string]domain.Value) (map[string]domain.Value, error) {
	if v, ok := node.VariableValue(); ok {
		base[primaryOutput(node)] = domain.CloneValue(v)
		return base, nil
	}
	base[primaryOutput(node)] = node.PlainText()
	return base, nil
}

// Aggregator joins the string form of every non-nil input, in port order
// and one list level deep, with newlines. The node's own text is appended
// when IncludeContent is set.
func Aggregator(_ context.Context, node ports.NodeView, base map[string]domain.Value) (map[string]domain.Value, error) {
	var parts []string
	for _, p := range node.InputPorts() {
		for _, v := range domain.Flatten(nil, node.InputValue(p.Name)) {
			parts = append(parts, domain.Stringify(v))
		}
	}
	if node.IncludeContent() {
		if own := node.PlainText(); own != "" {
			parts = append(parts, own)
		}
	}
	base[primaryOutput(node)] = strings.Join(parts, "\n")
	return base, nil
}

// primaryOutput is the name of the first output port, or the default
// output name for nodes without output ports.
func primaryOutput(node ports.NodeView) string {
	if outs := node.OutputPorts(); len(outs) > 0 {
		return outs[0].Name
	}
	return domain.DefaultOutputPort
}

// primaryInput resolves the first input port's value to a scalar.
func primaryInput(node ports.NodeView) domain.Value {
	ins := node.InputPorts()
	if len(ins) == 0 {
		return nil
	}
	return domain.Collapse(node.InputValue(ins[0].Name))
}
