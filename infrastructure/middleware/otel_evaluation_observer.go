package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

// TracerName is the instrumentation name used for evaluation spans.
const TracerName = "github.com/ahrav/go-nodeflow/runtime"

// Span and event names emitted by OTelEvaluationObserver.
const (
	SpanEvaluate      = "Runtime.Evaluate"
	EventNodeComputed = "node.computed"
	EventNodeFailed   = "node.failed"
	EventEdgeFailed   = "edge.failed"
)

var _ ports.EvaluationObserver = (*OTelEvaluationObserver)(nil)

// OTelEvaluationObserver traces evaluation passes with OpenTelemetry. Each
// pass becomes one span; recomputed nodes and failures are recorded as span
// events and the final report as span attributes. The observer keeps no
// per-pass state, so one instance can serve several runtimes.
type OTelEvaluationObserver struct {
	tracer trace.Tracer
}

// NewOTelEvaluationObserver creates an observer using provider. A nil
// provider selects the global tracer provider.
func NewOTelEvaluationObserver(provider trace.TracerProvider) *OTelEvaluationObserver {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &OTelEvaluationObserver{tracer: provider.Tracer(TracerName)}
}

// Start implements the EvaluationObserver interface by opening the pass span.
func (o *OTelEvaluationObserver) Start(ctx context.Context, evaluationID string, nodes, edges int) context.Context {
	ctx, _ = o.tracer.Start(ctx, SpanEvaluate, trace.WithAttributes(
		attribute.String("evaluation.id", evaluationID),
		attribute.Int("graph.nodes", nodes),
		attribute.Int("graph.edges", edges),
	))
	return ctx
}

// NodeComputed implements the EvaluationObserver interface. Cache hits are
// left out of the span to keep it small; they appear in the final counts.
func (o *OTelEvaluationObserver) NodeComputed(ctx context.Context, nodeID, kind string, cached bool, err error) {
	if cached {
		return
	}
	span := trace.SpanFromContext(ctx)
	attrs := trace.WithAttributes(
		attribute.String("node.id", nodeID),
		attribute.String("node.kind", kind),
	)
	if err != nil {
		span.AddEvent(EventNodeFailed, attrs, trace.WithAttributes(attribute.String("error", err.Error())))
		return
	}
	span.AddEvent(EventNodeComputed, attrs)
}

// EdgePropagated implements the EvaluationObserver interface. Only failed
// transfers are recorded.
func (o *OTelEvaluationObserver) EdgePropagated(ctx context.Context, logic string, _ bool, err error) {
	if err == nil {
		return
	}
	trace.SpanFromContext(ctx).AddEvent(EventEdgeFailed, trace.WithAttributes(
		attribute.String("edge.logic", logic),
		attribute.String("error", err.Error()),
	))
}

// Finish implements the EvaluationObserver interface by recording the
// report and ending the span.
func (o *OTelEvaluationObserver) Finish(ctx context.Context, report domain.Report) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.SetAttributes(
		attribute.String("evaluation.outcome", string(report.Outcome)),
		attribute.Int("evaluation.iterations", report.Iterations),
		attribute.Int("evaluation.recomputed", report.Recomputed),
		attribute.Int("evaluation.cache_hits", report.CacheHits),
		attribute.Int("evaluation.changes", report.Changes),
		attribute.Int("evaluation.post_processed", report.PostProcessed),
		attribute.Int("evaluation.node_failures", len(report.NodeFailures)),
		attribute.Int("evaluation.edge_failures", len(report.EdgeFailures)),
	)

	if report.Failed() {
		span.SetStatus(codes.Error, "evaluation recorded failures")
		return
	}
	span.SetStatus(codes.Ok, "")
}
