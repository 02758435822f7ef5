package application

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nodeflow/infrastructure/logic"
	"github.com/ahrav/go-nodeflow/infrastructure/script"
	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

func newTestLogicRegistry(buf *bytes.Buffer) *LogicRegistry {
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewLogicRegistry(script.NewEvaluator(script.DefaultConfig()), logger)
}

// TestLogicRegistry_Builtins verifies the registered strategy names.
func TestLogicRegistry_Builtins(t *testing.T) {
	r := newTestLogicRegistry(&bytes.Buffer{})

	assert.Equal(t, []string{
		"coalesce", "concat", "latest", "list", "passthrough",
		"py_eval", "py_filter", "py_map", "switch", "unique",
	}, r.Names())
}

// TestLogicRegistry_Lookup verifies case-insensitive lookup.
func TestLogicRegistry_Lookup(t *testing.T) {
	r := newTestLogicRegistry(&bytes.Buffer{})

	tests := []struct {
		name   string
		lookup string
		want   string
		found  bool
	}{
		{name: "exact", lookup: "list", want: logic.NameList, found: true},
		{name: "upper case", lookup: "CONCAT", want: logic.NameConcat, found: true},
		{name: "mixed case with spaces", lookup: "  Py_Map ", want: logic.NamePyMap, found: true},
		{name: "unknown", lookup: "zip", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := r.Lookup(tt.lookup)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, s.Name())
			}
		})
	}
}

// TestLogicRegistry_ResolveFallback verifies that unknown names resolve to
// passthrough and are logged once with a suggestion.
func TestLogicRegistry_ResolveFallback(t *testing.T) {
	var buf bytes.Buffer
	r := newTestLogicRegistry(&buf)

	s := r.Resolve("lst")
	assert.Equal(t, logic.NamePassthrough, s.Name())
	_ = r.Resolve("LST")

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "unknown connection logic"))
	assert.Contains(t, out, "did_you_mean=list")
	assert.Contains(t, out, "level=WARN")

	assert.Equal(t, logic.NameList, r.Resolve("List").Name())
	assert.Equal(t, 1, strings.Count(buf.String(), "unknown connection logic"))
}

// TestLogicRegistry_Suggest verifies edit-distance suggestions.
func TestLogicRegistry_Suggest(t *testing.T) {
	r := newTestLogicRegistry(&bytes.Buffer{})

	assert.Equal(t, "list", r.Suggest("lst"))
	assert.Equal(t, "concat", r.Suggest("Concatt"))
	assert.Equal(t, "py_map", r.Suggest("py-map"))
	assert.Equal(t, "", r.Suggest("completely-unrelated"))
}

// TestLogicRegistry_Schema verifies schema lookup.
func TestLogicRegistry_Schema(t *testing.T) {
	r := newTestLogicRegistry(&bytes.Buffer{})

	schema, ok := r.Schema("concat")
	require.True(t, ok)
	assert.Equal(t, "object", schema["type"])

	_, ok = r.Schema("list")
	assert.False(t, ok, "list takes no options")

	_, ok = r.Schema("missing")
	assert.False(t, ok)
}

type upperStrategy struct{}

func (upperStrategy) Name() string { return "Upper" }

func (upperStrategy) Combine(_ context.Context, _, incoming domain.Value, _ map[string]any) (domain.Value, error) {
	return strings.ToUpper(domain.Stringify(incoming)), nil
}

// TestLogicRegistry_Register verifies custom strategies and their use on
// an edge.
func TestLogicRegistry_Register(t *testing.T) {
	r := newTestLogicRegistry(&bytes.Buffer{})

	assert.Error(t, r.Register(nil))
	require.NoError(t, r.Register(upperStrategy{}))

	s, ok := r.Lookup("upper")
	require.True(t, ok)
	assert.Equal(t, "Upper", s.Name())

	g := NewGraph(nil)
	addNode(t, g, "src", domain.KindSource, "shout")
	sink := addNode(t, g, "sink", domain.KindSink, "")
	e := connect(t, g, "src", "sink", "input")
	e.SetLogic("upper", nil)

	report := NewRuntime(g, r).Evaluate(context.Background())
	assert.Empty(t, report.EdgeFailures)
	assert.Equal(t, "SHOUT", sink.InputValue("input"))
}

// TestKindRegistry verifies built-in kinds and the generic fallback.
func TestKindRegistry(t *testing.T) {
	r := NewKindRegistry(script.NewEvaluator(script.DefaultConfig()))

	assert.Len(t, r.Kinds(), 12)
	assert.Contains(t, r.Kinds(), domain.KindGroupOutput)
	assert.NotNil(t, r.Evaluator())

	n := NewNode("w", "widget")
	n.SetContent("text")
	out, err := r.Lookup("widget")(context.Background(), n, map[string]domain.Value{})
	require.NoError(t, err)
	assert.Equal(t, "text", out["output"])

	assert.Error(t, r.Register("custom", nil))

	var custom ports.ComputeFunc = func(_ context.Context, _ ports.NodeView, base map[string]domain.Value) (map[string]domain.Value, error) {
		base["output"] = "custom"
		return base, nil
	}
	require.NoError(t, r.Register("  Custom ", custom))
	out, err = r.Lookup("CUSTOM")(context.Background(), n, map[string]domain.Value{})
	require.NoError(t, err)
	assert.Equal(t, "custom", out["output"])
	assert.Len(t, r.Kinds(), 13)
}
