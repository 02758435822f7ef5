// Package middleware provides cross-cutting concerns for the evaluation
// engine: metrics, tracing, and throttled live evaluation.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-nodeflow/internal/application"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

const metricsNamespace = "nodeflow"

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It exposes evaluation counts, node and edge activity, convergence depth,
// and graph size for the runtime.
type PrometheusMetrics struct {
	evaluations    *prometheus.CounterVec
	nodeEvents     *prometheus.CounterVec
	edgeEvents     *prometheus.CounterVec
	operationCount *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	iterations     *prometheus.HistogramVec
	values         *prometheus.HistogramVec
	graphSize      *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers
// its collectors with reg. A nil reg selects the global default registry.
// Registering twice with the same registry panics.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "evaluations_total",
				Help:      "Total number of evaluation passes by outcome.",
			},
			[]string{"outcome"},
		),
		nodeEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "node_events_total",
				Help:      "Node computations, cache hits, failures and post-processed collectors.",
			},
			[]string{"event", "outcome"},
		),
		edgeEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "edge_events_total",
				Help:      "Edge transfers that changed a port and edge failures.",
			},
			[]string{"event", "outcome"},
		),
		operationCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "operations_total",
				Help:      "Counters recorded under names the collector does not know.",
			},
			[]string{"operation", "outcome"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of runtime operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "outcome"},
		),
		iterations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "evaluation_iterations",
				Help:      "Propagation rounds needed per evaluation pass.",
				Buckets:   []float64{1, 2, 3, 4, 6, 8, 16, 32, 64, 128},
			},
			[]string{"outcome"},
		),
		values: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "observed_values",
				Help:      "Histograms recorded under names the collector does not know.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"metric"},
		),
		graphSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "graph_size",
				Help:      "Current number of nodes and edges in the evaluated graph.",
			},
			[]string{"metric"},
		),
	}
}

// outcomeLabel returns the outcome label, "unknown" when absent.
func outcomeLabel(labels map[string]string) string {
	if outcome := labels["outcome"]; outcome != "" {
		return outcome
	}
	return "unknown"
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.latency.WithLabelValues(operation, outcomeLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters. Runtime metric names map to dedicated vectors;
// anything else is counted as a generic operation.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	outcome := outcomeLabel(labels)

	switch metric {
	case application.MetricEvaluations:
		pm.evaluations.WithLabelValues(outcome).Add(value)
	case application.MetricRecomputed:
		pm.nodeEvents.WithLabelValues("recomputed", outcome).Add(value)
	case application.MetricCacheHits:
		pm.nodeEvents.WithLabelValues("cache_hit", outcome).Add(value)
	case application.MetricNodeFailures:
		pm.nodeEvents.WithLabelValues("failure", outcome).Add(value)
	case application.MetricPostProcessed:
		pm.nodeEvents.WithLabelValues("post_processed", outcome).Add(value)
	case application.MetricPropagatedValues:
		pm.edgeEvents.WithLabelValues("changed", outcome).Add(value)
	case application.MetricEdgeFailures:
		pm.edgeEvents.WithLabelValues("failure", outcome).Add(value)
	default:
		pm.operationCount.WithLabelValues(metric, outcome).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, _ map[string]string,
) {
	switch metric {
	case application.MetricGraphNodes:
		pm.graphSize.WithLabelValues("nodes").Set(value)
	case application.MetricGraphEdges:
		pm.graphSize.WithLabelValues("edges").Set(value)
	default:
		pm.graphSize.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	if metric == application.MetricIterations {
		pm.iterations.WithLabelValues(outcomeLabel(labels)).Observe(value)
		return
	}
	pm.values.WithLabelValues(metric).Observe(value)
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
