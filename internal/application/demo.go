package application

import (
	"fmt"

	"github.com/ahrav/go-nodeflow/internal/domain"
)

// Node IDs used by NewDemoGraph.
const (
	DemoSourceID     = "input"
	DemoTransformID  = "process"
	DemoAggregatorID = "terminal"
)

// NewDemoGraph builds the starter graph: a source holding "Hola" feeding a
// transform that upper-cases its input, feeding an aggregator. After one
// evaluation the aggregator's content is "HOLA".
func NewDemoGraph(kinds *KindRegistry) (*Graph, error) {
	g := NewGraph(kinds)

	source := NewNode(DemoSourceID, domain.KindSource)
	source.SetTitle("Input")
	source.SetContent("Hola")
	source.SetPosition(0, 0)

	transform := NewNode(DemoTransformID, domain.KindTransform)
	transform.SetTitle("Process")
	transform.SetContent("input.upper()")
	transform.SetLanguage("python")
	transform.SetPosition(240, 0)

	aggregator := NewNode(DemoAggregatorID, domain.KindAggregator)
	aggregator.SetTitle("Terminal")
	aggregator.SetPosition(480, 0)

	for _, n := range []*Node{source, transform, aggregator} {
		if err := g.AddNode(n); err != nil {
			return nil, fmt.Errorf("failed to add demo node: %w", err)
		}
	}

	if _, err := g.Connect(DemoSourceID, domain.DefaultOutputPort, DemoTransformID, domain.DefaultInputPort); err != nil {
		return nil, fmt.Errorf("failed to connect demo graph: %w", err)
	}
	if _, err := g.Connect(DemoTransformID, domain.DefaultOutputPort, DemoAggregatorID, domain.DefaultInputPort); err != nil {
		return nil, fmt.Errorf("failed to connect demo graph: %w", err)
	}
	return g, nil
}
