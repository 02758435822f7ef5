package application

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nodeflow/infrastructure/script"
	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/testutils"
)

// newCountingKinds returns a kind registry whose evaluator counts runs.
func newCountingKinds() (*KindRegistry, *testutils.CountingEvaluator) {
	counter := testutils.NewCountingEvaluator(script.NewEvaluator(script.DefaultConfig()))
	return NewKindRegistry(counter), counter
}

// addNode creates a node, applies setup, and adds it to g.
func addNode(t *testing.T, g *Graph, id, kind, content string) *Node {
	t.Helper()
	n := NewNode(id, kind)
	n.SetContent(content)
	require.NoError(t, g.AddNode(n))
	return n
}

// connect wires start's default output to end's port.
func connect(t *testing.T, g *Graph, startID, endID, endPort string) *Edge {
	t.Helper()
	e, err := g.Connect(startID, domain.DefaultOutputPort, endID, endPort)
	require.NoError(t, err)
	return e
}

// newFanIn builds one source per value, in order, all feeding the multi
// port "items" of an aggregator named "agg".
func newFanIn(t *testing.T, values ...string) (*Graph, *Node) {
	t.Helper()
	g := NewGraph(nil)

	agg := NewNode("agg", domain.KindAggregator)
	agg.SetPorts([]domain.Port{{Name: "items", Multi: true}}, nil)
	for _, v := range values {
		addNode(t, g, "src-"+v, domain.KindSource, v)
	}
	require.NoError(t, g.AddNode(agg))
	for _, v := range values {
		connect(t, g, "src-"+v, "agg", "items")
	}
	return g, agg
}

// newCycle builds three transforms wired a -> b -> c -> a, each appending
// "x" to its input so the loop never settles.
func newCycle(t *testing.T) (*Graph, []*Node) {
	t.Helper()
	g := NewGraph(nil)

	var nodes []*Node
	for _, id := range []string{"a", "b", "c"} {
		nodes = append(nodes, addNode(t, g, id, domain.KindTransform, "(input or '') + 'x'"))
	}
	connect(t, g, "a", "b", domain.DefaultInputPort)
	connect(t, g, "b", "c", domain.DefaultInputPort)
	connect(t, g, "c", "a", domain.DefaultInputPort)
	return g, nodes
}
