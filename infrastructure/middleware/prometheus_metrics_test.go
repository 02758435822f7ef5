package middleware

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nodeflow/internal/application"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

// newTestMetrics registers a fresh collector set on a private registry so
// tests never collide on metric registration.
func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusMetrics(reg), reg
}

// TestNewPrometheusMetrics verifies that all vectors are initialized and
// that double registration is rejected.
func TestNewPrometheusMetrics(t *testing.T) {
	pm, reg := newTestMetrics(t)

	assert.NotNil(t, pm.evaluations)
	assert.NotNil(t, pm.nodeEvents)
	assert.NotNil(t, pm.edgeEvents)
	assert.NotNil(t, pm.operationCount)
	assert.NotNil(t, pm.latency)
	assert.NotNil(t, pm.iterations)
	assert.NotNil(t, pm.values)
	assert.NotNil(t, pm.graphSize)

	var _ ports.MetricsCollector = pm

	assert.Panics(t, func() { NewPrometheusMetrics(reg) }, "duplicate registration should panic")
}

// TestPrometheusMetrics_RecordCounter verifies that runtime counter names
// land in their dedicated series.
func TestPrometheusMetrics_RecordCounter(t *testing.T) {
	pm, _ := newTestMetrics(t)
	labels := map[string]string{"outcome": "converged"}

	tests := []struct {
		name   string
		metric string
		value  float64
		series prometheus.Collector
	}{
		{name: "evaluations", metric: application.MetricEvaluations, value: 1, series: pm.evaluations.WithLabelValues("converged")},
		{name: "recomputed", metric: application.MetricRecomputed, value: 5, series: pm.nodeEvents.WithLabelValues("recomputed", "converged")},
		{name: "cache hits", metric: application.MetricCacheHits, value: 4, series: pm.nodeEvents.WithLabelValues("cache_hit", "converged")},
		{name: "node failures", metric: application.MetricNodeFailures, value: 2, series: pm.nodeEvents.WithLabelValues("failure", "converged")},
		{name: "post processed", metric: application.MetricPostProcessed, value: 1, series: pm.nodeEvents.WithLabelValues("post_processed", "converged")},
		{name: "changes", metric: application.MetricPropagatedValues, value: 3, series: pm.edgeEvents.WithLabelValues("changed", "converged")},
		{name: "edge failures", metric: application.MetricEdgeFailures, value: 6, series: pm.edgeEvents.WithLabelValues("failure", "converged")},
		{name: "unknown name", metric: "custom_total", value: 7, series: pm.operationCount.WithLabelValues("custom_total", "converged")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm.RecordCounter(tt.metric, tt.value, labels)
			assert.Equal(t, tt.value, testutil.ToFloat64(tt.series))
		})
	}
}

// TestPrometheusMetrics_LabelHandling verifies that nil, empty and
// incomplete label maps fall back to the unknown outcome.
func TestPrometheusMetrics_LabelHandling(t *testing.T) {
	pm, _ := newTestMetrics(t)

	for _, labels := range []map[string]string{nil, {}, {"outcome": ""}, {"other": "value"}} {
		assert.NotPanics(t, func() {
			pm.RecordLatency("op", 10*time.Millisecond, labels)
			pm.RecordCounter(application.MetricEvaluations, 1, labels)
			pm.RecordGauge("custom_gauge", 1, labels)
			pm.RecordHistogram("custom_hist", 0.5, labels)
		})
	}

	assert.Equal(t, float64(4), testutil.ToFloat64(pm.evaluations.WithLabelValues("unknown")))
}

// TestPrometheusMetrics_GaugesAndHistograms verifies gauge and histogram
// routing.
func TestPrometheusMetrics_GaugesAndHistograms(t *testing.T) {
	pm, reg := newTestMetrics(t)

	pm.RecordGauge(application.MetricGraphNodes, 3, nil)
	pm.RecordGauge(application.MetricGraphEdges, 2, nil)
	pm.RecordGauge(application.MetricGraphNodes, 4, nil)

	assert.Equal(t, float64(4), testutil.ToFloat64(pm.graphSize.WithLabelValues("nodes")))
	assert.Equal(t, float64(2), testutil.ToFloat64(pm.graphSize.WithLabelValues("edges")))

	pm.RecordHistogram(application.MetricIterations, 3, map[string]string{"outcome": "converged"})
	pm.RecordHistogram(application.MetricIterations, 8, map[string]string{"outcome": "exhausted"})
	pm.RecordHistogram("other", 0.2, nil)

	assert.Equal(t, 2, testutil.CollectAndCount(pm.iterations))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.values))

	expected := `
# HELP nodeflow_graph_size Current number of nodes and edges in the evaluated graph.
# TYPE nodeflow_graph_size gauge
nodeflow_graph_size{metric="edges"} 2
nodeflow_graph_size{metric="nodes"} 4
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "nodeflow_graph_size"))
}

// TestPrometheusMetrics_Runtime verifies the metrics recorded by a real
// evaluation of the demo graph.
func TestPrometheusMetrics_Runtime(t *testing.T) {
	pm, _ := newTestMetrics(t)

	g, err := application.NewDemoGraph(nil)
	require.NoError(t, err)
	rt := application.NewRuntime(g, nil)
	rt.SetMetrics(pm)

	report := rt.Evaluate(context.Background())
	require.True(t, report.Converged())

	outcome := string(report.Outcome)
	assert.Equal(t, float64(1), testutil.ToFloat64(pm.evaluations.WithLabelValues(outcome)))
	assert.Equal(t, float64(report.Recomputed), testutil.ToFloat64(pm.nodeEvents.WithLabelValues("recomputed", outcome)))
	assert.Equal(t, float64(report.CacheHits), testutil.ToFloat64(pm.nodeEvents.WithLabelValues("cache_hit", outcome)))
	assert.Equal(t, float64(report.Changes), testutil.ToFloat64(pm.edgeEvents.WithLabelValues("changed", outcome)))
	assert.Equal(t, float64(3), testutil.ToFloat64(pm.graphSize.WithLabelValues("nodes")))
	assert.Equal(t, float64(2), testutil.ToFloat64(pm.graphSize.WithLabelValues("edges")))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.latency))

	rt.Evaluate(context.Background())
	assert.Equal(t, float64(2), testutil.ToFloat64(pm.evaluations.WithLabelValues(outcome)))
}
