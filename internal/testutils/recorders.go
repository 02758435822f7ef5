package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

var (
	_ ports.MetricsCollector   = (*MetricsRecorder)(nil)
	_ ports.CompletionListener = (*ReportCollector)(nil)
)

// MetricsRecorder is an in-memory ports.MetricsCollector. Counters are
// summed and gauges keep their last value, keyed by metric name only.
type MetricsRecorder struct {
	mu         sync.Mutex
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
	latencies  map[string][]time.Duration
}

// NewMetricsRecorder creates an empty recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
		latencies:  make(map[string][]time.Duration),
	}
}

// RecordLatency implements ports.MetricsCollector.
func (m *MetricsRecorder) RecordLatency(operation string, d time.Duration, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies[operation] = append(m.latencies[operation], d)
}

// RecordCounter implements ports.MetricsCollector.
func (m *MetricsRecorder) RecordCounter(metric string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metric] += value
}

// RecordGauge implements ports.MetricsCollector.
func (m *MetricsRecorder) RecordGauge(metric string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[metric] = value
}

// RecordHistogram implements ports.MetricsCollector.
func (m *MetricsRecorder) RecordHistogram(metric string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms[metric] = append(m.histograms[metric], value)
}

// Counter returns the summed value of a counter.
func (m *MetricsRecorder) Counter(metric string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[metric]
}

// Gauge returns the last value of a gauge.
func (m *MetricsRecorder) Gauge(metric string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[metric]
}

// Observations returns a copy of a histogram's recorded values.
func (m *MetricsRecorder) Observations(metric string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.histograms[metric]...)
}

// Latencies returns a copy of an operation's recorded durations.
func (m *MetricsRecorder) Latencies(operation string) []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.latencies[operation]...)
}

// ReportCollector keeps every report it is notified with.
type ReportCollector struct {
	mu      sync.Mutex
	reports []domain.Report
}

// EvaluationCompleted implements ports.CompletionListener.
func (c *ReportCollector) EvaluationCompleted(_ context.Context, r domain.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
}

// Reports returns a copy of the collected reports in notification order.
func (c *ReportCollector) Reports() []domain.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Report(nil), c.reports...)
}

// Last returns the most recent report and whether there is one.
func (c *ReportCollector) Last() (domain.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.reports) == 0 {
		return domain.Report{}, false
	}
	return c.reports[len(c.reports)-1], true
}
