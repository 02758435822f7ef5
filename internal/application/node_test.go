package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

// TestNewNode verifies the defaults of a freshly created node.
func TestNewNode(t *testing.T) {
	n := NewNode("n1", "  Transform ")

	assert.Equal(t, "n1", n.ID())
	assert.Equal(t, domain.KindTransform, n.Kind())
	assert.Equal(t, "n1", n.Title())
	assert.True(t, n.IsDirty())
	assert.Equal(t, domain.Impure, n.Purity())

	require.Len(t, n.InputPorts(), 1)
	require.Len(t, n.OutputPorts(), 1)
	assert.Equal(t, domain.DefaultInputPort, n.InputPorts()[0].Name)
	assert.Equal(t, domain.DirectionOutput, n.OutputPorts()[0].Direction)
	assert.Equal(t, map[string]domain.Value{"input": nil}, n.InputValues())
	assert.Equal(t, map[string]domain.Value{"output": nil}, n.OutputValues())
}

// TestNode_AddPort verifies port creation and its structural errors.
func TestNode_AddPort(t *testing.T) {
	n := NewNode("n1", domain.KindSink)

	p, err := n.AddInputPort("extra", domain.PortExec)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionInput, p.Direction)
	assert.True(t, p.IsExec())
	assert.Contains(t, n.InputValues(), "extra")

	p, err = n.AddOutputPort("result", "")
	require.NoError(t, err)
	assert.Equal(t, domain.PortData, p.Kind)

	_, err = n.AddInputPort("extra", domain.PortData)
	assert.ErrorIs(t, err, domain.ErrPortExists)

	_, err = n.AddOutputPort("   ", domain.PortData)
	assert.ErrorIs(t, err, domain.ErrInvalidPortName)

	var portErr *domain.PortError
	require.True(t, errors.As(err, &portErr))
	assert.Equal(t, "n1", portErr.NodeID)
	assert.Equal(t, domain.DirectionOutput, portErr.Direction)
}

// TestNode_SetPorts verifies bulk port redefinition.
func TestNode_SetPorts(t *testing.T) {
	tests := []struct {
		name        string
		inputs      []domain.Port
		outputs     []domain.Port
		wantInputs  []string
		wantOutputs []string
	}{
		{
			name:        "nil preserves existing ports",
			inputs:      nil,
			outputs:     nil,
			wantInputs:  []string{"input"},
			wantOutputs: []string{"output"},
		},
		{
			name:        "replace inputs only",
			inputs:      PortsFromNames("a", "b"),
			outputs:     nil,
			wantInputs:  []string{"a", "b"},
			wantOutputs: []string{"output"},
		},
		{
			name:        "empty slice removes ports",
			inputs:      []domain.Port{},
			outputs:     PortsFromNames("x"),
			wantInputs:  []string{},
			wantOutputs: []string{"x"},
		},
		{
			name:        "duplicates and blanks are skipped",
			inputs:      PortsFromNames("a", "", "a", "b"),
			outputs:     nil,
			wantInputs:  []string{"a", "b"},
			wantOutputs: []string{"output"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNode("n", domain.KindGeneric)
			n.SetPorts(tt.inputs, tt.outputs)

			assert.Equal(t, tt.wantInputs, portNamesOf(n.InputPorts()))
			assert.Equal(t, tt.wantOutputs, portNamesOf(n.OutputPorts()))
		})
	}
}

func portNamesOf(ports []domain.Port) []string {
	out := make([]string, 0, len(ports))
	for _, p := range ports {
		out = append(out, p.Name)
	}
	return out
}

// TestNode_SetPortsKeepsValues verifies that ports keeping their name keep
// their value and that a nil argument on an empty direction restores the
// default port.
func TestNode_SetPortsKeepsValues(t *testing.T) {
	n := NewNode("n", domain.KindGeneric)
	n.SetPorts(PortsFromNames("a", "b"), []domain.Port{})
	n.ReceiveInputValue("a", "kept")

	n.SetPorts([]domain.Port{{Name: "a"}, {Name: "c", Multi: true}}, nil)

	assert.Equal(t, "kept", n.InputValue("a"))
	assert.NotContains(t, n.InputValues(), "b")
	p, ok := n.Port("c", domain.DirectionInput)
	require.True(t, ok)
	assert.True(t, p.Multi)
	assert.Equal(t, []string{"output"}, portNamesOf(n.OutputPorts()))
}

// TestNode_ReceiveInputValue verifies that only value changes dirty a node.
func TestNode_ReceiveInputValue(t *testing.T) {
	ctx := context.Background()
	n := NewNode("n", domain.KindSource)
	_, err := n.ComputeOutputValues(ctx)
	require.NoError(t, err)
	require.False(t, n.IsDirty())

	assert.True(t, n.ReceiveInputValue("input", []domain.Value{"a", int64(1)}))
	assert.True(t, n.IsDirty())

	_, err = n.ComputeOutputValues(ctx)
	require.NoError(t, err)
	require.False(t, n.IsDirty())

	// Equal by value, not identity.
	assert.False(t, n.ReceiveInputValue("input", []domain.Value{"a", 1}))
	assert.False(t, n.IsDirty())

	assert.True(t, n.ReceiveInputValue("input", nil))
	assert.True(t, n.IsDirty())
}

// TestNode_ReceiveInputValueCopies verifies that stored values are isolated
// from the caller's slice.
func TestNode_ReceiveInputValueCopies(t *testing.T) {
	n := NewNode("n", domain.KindSource)
	list := []domain.Value{"a"}
	n.ReceiveInputValue("input", list)
	list[0] = "mutated"

	assert.Equal(t, []domain.Value{"a"}, n.InputValue("input"))
}

// TestNode_ComputePerKind verifies the kind dispatch for the simple kinds.
func TestNode_ComputePerKind(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		setup  func() *Node
		output domain.Value
	}{
		{
			name: "source publishes content",
			setup: func() *Node {
				n := NewNode("s", domain.KindSource)
				n.SetContent("hello")
				return n
			},
			output: "hello",
		},
		{
			name: "unknown kind computes like a source",
			setup: func() *Node {
				n := NewNode("s", "widget")
				n.SetContent("hello")
				return n
			},
			output: "hello",
		},
		{
			name: "source falls back to rendered text",
			setup: func() *Node {
				n := NewNode("s", domain.KindInput)
				n.SetRenderedText("shown")
				return n
			},
			output: "shown",
		},
		{
			name: "variable publishes its value",
			setup: func() *Node {
				n := NewNode("v", domain.KindVariable)
				n.SetContent("ignored")
				n.SetVariable("k", []domain.Value{int64(1), int64(2)})
				return n
			},
			output: []domain.Value{int64(1), int64(2)},
		},
		{
			name: "transform evaluates its expression",
			setup: func() *Node {
				n := NewNode("t", domain.KindProcess)
				n.SetContent("input * 2")
				n.ReceiveInputValue("input", []domain.Value{int64(4), int64(5), nil})
				return n
			},
			output: int64(10),
		},
		{
			name: "transform with no input and failing expression yields nil",
			setup: func() *Node {
				n := NewNode("t", domain.KindTransform)
				n.SetContent("input.upper()")
				return n
			},
			output: nil,
		},
		{
			name: "aggregator joins inputs",
			setup: func() *Node {
				n := NewNode("a", domain.KindCombine)
				n.SetPorts(PortsFromNames("x", "y"), nil)
				n.ReceiveInputValue("x", []domain.Value{"one", nil, "two"})
				n.ReceiveInputValue("y", true)
				return n
			},
			output: "one\ntwo\nTrue",
		},
		{
			name: "unscripted sink without forwarding publishes nothing",
			setup: func() *Node {
				n := NewNode("k", domain.KindSink)
				n.SetContent("text")
				return n
			},
			output: nil,
		},
		{
			name: "unscripted sink with forwarding publishes its text",
			setup: func() *Node {
				n := NewNode("k", domain.KindOutput)
				n.SetContent("text")
				n.SetForwardOutput(true)
				return n
			},
			output: "text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := tt.setup()
			out, err := n.ComputeOutputValues(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.output, out["output"])
			assert.Equal(t, tt.output, n.OutputValue("output"))
			assert.False(t, n.IsDirty())
		})
	}
}

// TestNode_MutePassthrough verifies that a muted node forwards its first
// non-nil input to every output regardless of its content.
func TestNode_MutePassthrough(t *testing.T) {
	n := NewNode("t", domain.KindTransform)
	n.SetPorts(PortsFromNames("in1", "in2"), PortsFromNames("out1", "out2"))
	n.SetContent("input.upper()")
	n.SetMuted(true)
	n.ReceiveInputValue("in1", nil)
	n.ReceiveInputValue("in2", "v")

	out, err := n.ComputeOutputValues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Value{"out1": "v", "out2": "v"}, out)

	n.ReceiveInputValue("in1", []domain.Value{"first", nil})
	out, err = n.ComputeOutputValues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", out["out1"])
}

// TestNode_PureCache verifies that a pure node with unchanged inputs and
// content returns its cached outputs without running its kind logic.
func TestNode_PureCache(t *testing.T) {
	ctx := context.Background()
	kinds, counter := newCountingKinds()

	n := NewNode("t", domain.KindTransform)
	n.SetKindRegistry(kinds)
	n.SetPurity(domain.Pure)
	n.SetContent("input + '!'")
	n.ReceiveInputValue("input", "a")

	first, err := n.ComputeOutputValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a!", first["output"])
	assert.Equal(t, 1, counter.Runs())

	second, err := n.ComputeOutputValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, counter.Runs(), "pure node must not re-run with an unchanged signature")

	n.ReceiveInputValue("input", "b")
	third, err := n.ComputeOutputValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b!", third["output"])
	assert.Equal(t, 2, counter.Runs())

	n.SetContent("input + '?'")
	fourth, err := n.ComputeOutputValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b?", fourth["output"])
	assert.Equal(t, 3, counter.Runs())
}

// TestNode_ImpureAlwaysRuns verifies that impure nodes skip the cache.
func TestNode_ImpureAlwaysRuns(t *testing.T) {
	ctx := context.Background()
	kinds, counter := newCountingKinds()

	n := NewNode("t", domain.KindTransform)
	n.SetKindRegistry(kinds)
	n.SetContent("input + '!'")
	n.ReceiveInputValue("input", "a")

	for range 3 {
		_, err := n.ComputeOutputValues(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, counter.Runs())
}

// TestNode_ComputeFailureKeepsOutputs verifies that a failing or panicking
// compute function leaves the stored outputs untouched.
func TestNode_ComputeFailureKeepsOutputs(t *testing.T) {
	ctx := context.Background()
	kinds, _ := newCountingKinds()

	calls := 0
	require.NoError(t, kinds.Register("flaky", func(_ context.Context, _ ports.NodeView, base map[string]domain.Value) (map[string]domain.Value, error) {
		calls++
		switch calls {
		case 1:
			base["output"] = "good"
			return base, nil
		case 2:
			return nil, errors.New("boom")
		default:
			panic("worse")
		}
	}))

	n := NewNode("f", "flaky")
	n.SetKindRegistry(kinds)

	_, err := n.ComputeOutputValues(ctx)
	require.NoError(t, err)

	_, err = n.ComputeOutputValues(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, "good", n.OutputValue("output"))

	_, err = n.ComputeOutputValues(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, "good", n.OutputValue("output"))
}

// TestNode_NeedsRecompute verifies both staleness checks.
func TestNode_NeedsRecompute(t *testing.T) {
	n := NewNode("s", domain.KindSource)
	assert.True(t, n.needsRecompute(), "no cache yet")

	_, err := n.ComputeOutputValues(context.Background())
	require.NoError(t, err)
	assert.False(t, n.needsRecompute())

	n.MarkDirty()
	assert.True(t, n.needsRecompute(), "dirty flag")

	_, err = n.ComputeOutputValues(context.Background())
	require.NoError(t, err)

	// Bypass the dirty flag to exercise the signature check alone.
	n.mu.Lock()
	n.inputValues["input"] = "sneaky"
	n.mu.Unlock()
	assert.True(t, n.needsRecompute(), "signature changed")
}

// TestNode_Flags verifies that flag setters invalidate the cache.
func TestNode_Flags(t *testing.T) {
	ctx := context.Background()

	setters := map[string]func(n *Node){
		"kind":            func(n *Node) { n.SetKind(domain.KindSink) },
		"language":        func(n *Node) { n.SetLanguage("python") },
		"rendered text":   func(n *Node) { n.SetRenderedText("r") },
		"variable":        func(n *Node) { n.SetVariable("v", int64(1)) },
		"muted":           func(n *Node) { n.SetMuted(true) },
		"forward output":  func(n *Node) { n.SetForwardOutput(true) },
		"include content": func(n *Node) { n.SetIncludeContent(true) },
		"ports":           func(n *Node) { n.SetPorts(PortsFromNames("z"), nil) },
		"content":         func(n *Node) { n.SetContent("changed") },
	}

	for name, set := range setters {
		t.Run(name, func(t *testing.T) {
			n := NewNode("n", domain.KindSource)
			_, err := n.ComputeOutputValues(ctx)
			require.NoError(t, err)
			require.False(t, n.IsDirty())

			set(n)
			assert.True(t, n.IsDirty())
		})
	}

	t.Run("unchanged content stays clean", func(t *testing.T) {
		n := NewNode("n", domain.KindSource)
		n.SetContent("same")
		_, err := n.ComputeOutputValues(ctx)
		require.NoError(t, err)

		n.SetContent("same")
		assert.False(t, n.IsDirty())
	})
}

// TestNode_UpdateFromText verifies the post-processing content path.
func TestNode_UpdateFromText(t *testing.T) {
	n := NewNode("agg", domain.KindAggregator)
	n.SetRenderedText("old")

	n.UpdateFromText("  new text \n")
	assert.Equal(t, "new text", n.Content())
	assert.Equal(t, "", n.RenderedText())
	assert.Equal(t, "new text", n.PlainText())
}

// TestNode_VariableName verifies the title fallback for variable names.
func TestNode_VariableName(t *testing.T) {
	n := NewNode("var-1", domain.KindVariable)
	assert.Equal(t, "var-1", n.VariableName())

	n.SetTitle("threshold")
	assert.Equal(t, "threshold", n.VariableName())

	n.SetVariable("limit", nil)
	assert.Equal(t, "limit", n.VariableName())
	_, ok := n.VariableValue()
	assert.False(t, ok)
}

// TestNode_RenamePort verifies that renaming keeps routing intact.
func TestNode_RenamePort(t *testing.T) {
	g := NewGraph(nil)
	addNode(t, g, "src", domain.KindSource, "v")
	sink := addNode(t, g, "sink", domain.KindSink, "")
	e := connect(t, g, "src", "sink", "input")

	require.True(t, sink.RenamePort("input", "data", domain.DirectionInput))

	assert.Equal(t, "data", e.EndPort())
	assert.Equal(t, 1, sink.PortConnectionCount("data", domain.DirectionInput))
	assert.Equal(t, 0, sink.PortConnectionCount("input", domain.DirectionInput))
	assert.True(t, sink.IsPortConnected("data", domain.DirectionInput))

	rt := NewRuntime(g, nil)
	rt.Evaluate(context.Background())
	assert.Equal(t, "v", sink.InputValue("data"))
}

// TestNode_RenamePortFailures verifies that invalid renames are rejected
// without side effects.
func TestNode_RenamePortFailures(t *testing.T) {
	n := NewNode("n", domain.KindGeneric)
	n.SetPorts(PortsFromNames("a", "b"), nil)

	assert.False(t, n.RenamePort("missing", "x", domain.DirectionInput))
	assert.False(t, n.RenamePort("a", "b", domain.DirectionInput))
	assert.False(t, n.RenamePort("a", "  ", domain.DirectionInput))
	assert.True(t, n.RenamePort("a", "a", domain.DirectionInput))
	assert.Equal(t, []string{"a", "b"}, portNamesOf(n.InputPorts()))
}

// TestNode_RemovePort verifies that removing a port detaches its edges.
func TestNode_RemovePort(t *testing.T) {
	g := NewGraph(nil)
	src := addNode(t, g, "src", domain.KindSource, "v")
	sink := addNode(t, g, "sink", domain.KindSink, "")
	e := connect(t, g, "src", "sink", "input")

	assert.False(t, sink.RemovePort("missing", domain.DirectionInput))
	require.True(t, sink.RemovePort("input", domain.DirectionInput))

	assert.True(t, e.IsDetached())
	assert.Empty(t, src.Edges())
	assert.Empty(t, sink.Edges())
	assert.Empty(t, g.Edges())
	assert.NotContains(t, sink.InputValues(), "input")
}

// TestNode_UpstreamVariables verifies variable discovery through edges.
func TestNode_UpstreamVariables(t *testing.T) {
	g := NewGraph(nil)
	v1 := addNode(t, g, "v1", domain.KindVariable, "")
	v1.SetVariable("limit", int64(3))
	v2 := addNode(t, g, "v2", domain.KindVariable, "text value")
	v2.SetTitle("label")
	addNode(t, g, "src", domain.KindSource, "not a variable")
	sink := addNode(t, g, "sink", domain.KindSink, "")
	sink.SetPorts(PortsFromNames("a", "b", "c", "d"), nil)

	connect(t, g, "v1", "sink", "a")
	connect(t, g, "src", "sink", "b")
	connect(t, g, "v2", "sink", "c")
	connect(t, g, "v1", "sink", "d")

	assert.Equal(t, []ports.Variable{
		{Name: "limit", Value: int64(3)},
		{Name: "label", Value: "text value"},
	}, sink.UpstreamVariables())
}
