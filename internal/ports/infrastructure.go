package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-nodeflow/internal/domain"
)

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus,
// OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like cache hits/misses, errors, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like graph size.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like iteration counts.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// EvaluationObserver receives fine-grained events from an evaluation pass.
// Start returns the context the remaining callbacks for the pass receive,
// allowing tracing implementations to carry a span.
type EvaluationObserver interface {
	// Start is called once before the first round.
	Start(ctx context.Context, evaluationID string, nodes, edges int) context.Context

	// NodeComputed is called after each compute attempt. cached is true when
	// the node was skipped because its signature was unchanged.
	NodeComputed(ctx context.Context, nodeID, kind string, cached bool, err error)

	// EdgePropagated is called after each edge transfer.
	EdgePropagated(ctx context.Context, logic string, changed bool, err error)

	// Finish is called once with the final report.
	Finish(ctx context.Context, report domain.Report)
}

// CompletionListener is notified when an evaluation pass completes. UI
// collaborators use it as the refresh boundary.
type CompletionListener interface {
	EvaluationCompleted(ctx context.Context, report domain.Report)
}

// CompletionFunc adapts a function to CompletionListener.
type CompletionFunc func(ctx context.Context, report domain.Report)

// EvaluationCompleted calls f.
func (f CompletionFunc) EvaluationCompleted(ctx context.Context, report domain.Report) {
	f(ctx, report)
}

// ConfigLoader defines the interface for loading configuration.
// Implementations could read from files, environment variables,
// remote configuration services, or a combination of sources.
type ConfigLoader interface {
	// Load reads configuration from the underlying source.
	// It should populate the provided configuration struct.
	// The config parameter should be a pointer to a struct.
	//
	// Example:
	//
	//	var config EngineConfig
	//	err := loader.Load(ctx, &config)
	Load(ctx context.Context, config any) error

	// Watch monitors configuration changes and calls the callback when
	// changes occur.
	// This enables hot-reloading of configuration without restart.
	// The callback receives the updated configuration.
	// Returns a function to stop watching when called.
	Watch(ctx context.Context, config any, callback func(any)) (stop func(), err error)
}
