package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ahrav/go-nodeflow/infrastructure/script"
	"github.com/ahrav/go-nodeflow/internal/application"
	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

func newTracedObserver(t *testing.T) (*OTelEvaluationObserver, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return NewOTelEvaluationObserver(provider), recorder
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		out[kv.Key] = kv.Value
	}
	return out
}

func countEvents(span sdktrace.ReadOnlySpan, name string) int {
	n := 0
	for _, ev := range span.Events() {
		if ev.Name == name {
			n++
		}
	}
	return n
}

// TestOTelEvaluationObserver_Pass verifies the span produced for a clean
// evaluation of the demo graph.
func TestOTelEvaluationObserver_Pass(t *testing.T) {
	observer, recorder := newTracedObserver(t)

	g, err := application.NewDemoGraph(nil)
	require.NoError(t, err)
	rt := application.NewRuntime(g, nil)
	rt.SetObserver(observer)

	report := rt.Evaluate(context.Background())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, SpanEvaluate, span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)

	attrs := attrMap(span.Attributes())
	assert.Equal(t, report.ID, attrs["evaluation.id"].AsString())
	assert.Equal(t, int64(3), attrs["graph.nodes"].AsInt64())
	assert.Equal(t, int64(2), attrs["graph.edges"].AsInt64())
	assert.Equal(t, string(domain.OutcomeConverged), attrs["evaluation.outcome"].AsString())
	assert.Equal(t, int64(report.Iterations), attrs["evaluation.iterations"].AsInt64())
	assert.Equal(t, int64(report.CacheHits), attrs["evaluation.cache_hits"].AsInt64())

	assert.Equal(t, report.Recomputed, countEvents(span, EventNodeComputed))
	assert.Zero(t, countEvents(span, EventNodeFailed))
	assert.Zero(t, countEvents(span, EventEdgeFailed))
}

// TestOTelEvaluationObserver_Failures verifies that node and edge failures
// appear as events and mark the span as failed.
func TestOTelEvaluationObserver_Failures(t *testing.T) {
	observer, recorder := newTracedObserver(t)

	kinds := application.NewKindRegistry(script.NewEvaluator(script.DefaultConfig()))
	require.NoError(t, kinds.Register("boom", func(context.Context, ports.NodeView, map[string]domain.Value) (map[string]domain.Value, error) {
		return nil, errors.New("boom")
	}))

	g := application.NewGraph(kinds)
	require.NoError(t, g.AddNode(application.NewNode("bad", "boom")))

	ctx := context.Background()
	observer.EdgePropagated(ctx, "list", false, errors.New("ignored without a span"))

	rt := application.NewRuntime(g, nil)
	rt.SetObserver(observer)
	report := rt.Evaluate(ctx)
	require.NotEmpty(t, report.NodeFailures)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, len(report.NodeFailures), countEvents(span, EventNodeFailed))

	var failed sdktrace.Event
	for _, ev := range span.Events() {
		if ev.Name == EventNodeFailed {
			failed = ev
			break
		}
	}
	evAttrs := attrMap(failed.Attributes)
	assert.Equal(t, "bad", evAttrs["node.id"].AsString())
	assert.Equal(t, "boom", evAttrs["node.kind"].AsString())
	assert.Contains(t, evAttrs["error"].AsString(), "boom")
}

// TestOTelEvaluationObserver_EdgeFailure verifies edge failure events on a
// manually driven span.
func TestOTelEvaluationObserver_EdgeFailure(t *testing.T) {
	observer, recorder := newTracedObserver(t)

	ctx := observer.Start(context.Background(), "eval-1", 2, 1)
	observer.NodeComputed(ctx, "a", domain.KindSource, true, nil)
	observer.EdgePropagated(ctx, "py_map", false, errors.New("strategy error"))
	observer.EdgePropagated(ctx, "list", true, nil)
	observer.Finish(ctx, domain.Report{
		ID:           "eval-1",
		Outcome:      domain.OutcomeExhausted,
		EdgeFailures: []domain.EdgeFailure{{From: "a.output", To: "b.input", Logic: "py_map"}},
	})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, 1, countEvents(span, EventEdgeFailed))
	assert.Zero(t, countEvents(span, EventNodeComputed), "cache hits are not recorded")
	assert.Equal(t, "exhausted", attrMap(span.Attributes())["evaluation.outcome"].AsString())
}
