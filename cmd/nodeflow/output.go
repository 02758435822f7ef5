package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ahrav/go-nodeflow/internal/application"
	"github.com/ahrav/go-nodeflow/internal/domain"
)

// syncWriter serializes writes from evaluation goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newSyncWriter(w io.Writer) *syncWriter {
	if sw, ok := w.(*syncWriter); ok {
		return sw
	}
	return &syncWriter{w: w}
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// nodeLabel prefers a node's title over its id.
func nodeLabel(n *application.Node) string {
	if title := n.Title(); title != "" {
		return title
	}
	return n.ID()
}

// writeSummary prints the one-line outcome of a pass.
func writeSummary(w io.Writer, label string, report domain.Report) {
	fmt.Fprintf(w, "%s: outcome=%s iterations=%d recomputed=%d cache_hits=%d failures=%d\n",
		label,
		report.Outcome,
		report.Iterations,
		report.Recomputed,
		report.CacheHits,
		len(report.NodeFailures)+len(report.EdgeFailures),
	)
}

// writeResult prints the summary, every collector's text and each
// failure.
func writeResult(w io.Writer, label string, g *application.Graph, report domain.Report) {
	writeSummary(w, label, report)

	for _, n := range g.Nodes() {
		if !domain.IsCollector(n.Kind()) {
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", nodeLabel(n), indent(n.PlainText()))
		if n.IsScripted() {
			if v := n.OutputValue(domain.DefaultOutputPort); v != nil {
				fmt.Fprintf(w, "  %s => %s\n", nodeLabel(n), domain.Stringify(v))
			}
		}
	}
	for _, f := range report.NodeFailures {
		fmt.Fprintf(w, "  node %s failed in round %d: %s\n", f.NodeID, f.Iteration, f.Error)
	}
	for _, f := range report.EdgeFailures {
		fmt.Fprintf(w, "  edge %s -> %s (%s) failed in round %d: %s\n", f.From, f.To, f.Logic, f.Iteration, f.Error)
	}
}

// indent keeps multi-line node text aligned under its label.
func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n    ")
}

// writeMetrics prints the gathered series of reg, one per line, sorted by
// name.
func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				name += "_count"
				value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}

			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+strconv.Quote(lp.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", name, strings.Join(labels, ","), value))
		}
	}
	slices.Sort(lines)
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	return nil
}

// spanPrinter is a span exporter that writes one line per finished span.
type spanPrinter struct {
	w io.Writer
}

var _ sdktrace.SpanExporter = (*spanPrinter)(nil)

func (p *spanPrinter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		fmt.Fprintf(p.w, "trace: %s status=%s events=%d duration=%s\n",
			s.Name(),
			s.Status().Code,
			len(s.Events()),
			s.EndTime().Sub(s.StartTime()),
		)
	}
	return nil
}

func (p *spanPrinter) Shutdown(context.Context) error { return nil }

// newSpanPrinterProvider returns a tracer provider exporting synchronously
// to w.
func newSpanPrinterProvider(w io.Writer) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(&spanPrinter{w: w}))
}
