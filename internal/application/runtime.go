package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

// DefaultMaxIterations is the propagation round budget used when none is
// given. It bounds the work done on cyclic graphs.
const DefaultMaxIterations = 8

// Metric names recorded by the runtime.
const (
	MetricEvaluate         = "evaluate"
	MetricEvaluations      = "evaluations_total"
	MetricRecomputed       = "nodes_recomputed_total"
	MetricCacheHits        = "node_cache_hits_total"
	MetricNodeFailures     = "node_failures_total"
	MetricEdgeFailures     = "edge_failures_total"
	MetricIterations       = "evaluation_iterations"
	MetricGraphNodes       = "graph_nodes"
	MetricGraphEdges       = "graph_edges"
	MetricPostProcessed    = "collectors_post_processed_total"
	MetricPropagatedValues = "edge_changes_total"
)

// Runtime evaluates a Graph by repeated propagation until the node inputs
// stop changing or the iteration budget runs out.
//
// A pass computes every stale node, pushes each edge's source value through
// its logic strategy into the destination port, and repeats. Edges are
// walked in creation order rather than topological order; convergence
// across rounds establishes the result. Failures are isolated to the node
// or edge that raised them and recorded in the Report.
//
// Runtime is safe for concurrent use. Passes are serialized, and the
// graph's structure is locked against edits for the duration of a pass.
type Runtime struct {
	// graph is the evaluated graph.
	graph *Graph
	// logic resolves edge strategies.
	logic *LogicRegistry

	// nodes and edges are the view captured by RebuildFromView.
	nodes []*Node
	edges []*Edge
	// built records whether a view has been captured.
	built bool

	// maxIters is the round budget used by Evaluate.
	maxIters int
	// listeners are notified after every pass.
	listeners []ports.CompletionListener
	// observer receives fine-grained pass events.
	observer ports.EvaluationObserver
	// metrics records pass statistics.
	metrics ports.MetricsCollector
	// logger receives debug output.
	logger *slog.Logger

	// mu serializes passes and guards the fields above.
	mu sync.Mutex
}

// NewRuntime creates a runtime for graph using logic to resolve edge
// strategies. A nil logic registry selects the built-in strategies backed
// by the graph's evaluator.
func NewRuntime(graph *Graph, logic *LogicRegistry) *Runtime {
	if logic == nil {
		logic = NewLogicRegistry(graph.Kinds().Evaluator(), nil)
	}
	return &Runtime{
		graph:    graph,
		logic:    logic,
		maxIters: DefaultMaxIterations,
		logger:   slog.Default(),
	}
}

// SetLogger replaces the runtime's logger. A nil logger is ignored.
func (r *Runtime) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if logger != nil {
		r.logger = logger
	}
}

// SetObserver installs an evaluation observer. Nil removes it.
func (r *Runtime) SetObserver(observer ports.EvaluationObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = observer
}

// SetMetrics installs a metrics collector. Nil removes it.
func (r *Runtime) SetMetrics(metrics ports.MetricsCollector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = metrics
}

// SetMaxIterations sets the round budget used by Evaluate. Non-positive
// values select DefaultMaxIterations.
func (r *Runtime) SetMaxIterations(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 {
		n = DefaultMaxIterations
	}
	r.maxIters = n
}

// Subscribe registers a listener notified after every pass.
func (r *Runtime) Subscribe(l ports.CompletionListener) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// RebuildFromView discards the captured view and re-reads the graph's
// nodes and attached edges. No node state is touched.
func (r *Runtime) RebuildFromView() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuildLocked()
}

func (r *Runtime) rebuildLocked() {
	r.nodes, r.edges = r.graph.Topology()
	r.built = true
}

// Evaluate rebuilds the view and runs one pass with the configured budget.
// This is the entry point editors call after a change.
func (r *Runtime) Evaluate(ctx context.Context) domain.Report {
	r.mu.Lock()
	r.rebuildLocked()
	maxIters := r.maxIters
	r.mu.Unlock()

	return r.EvaluateAll(ctx, maxIters)
}

// EvaluateAll runs one pass over the captured view, which is captured
// first if RebuildFromView was never called. A non-positive maxIters
// selects DefaultMaxIterations. Running out of rounds is not an error:
// the report's Outcome is OutcomeExhausted and every node keeps its last
// computed values. Completion listeners are notified before returning.
func (r *Runtime) EvaluateAll(ctx context.Context, maxIters int) domain.Report {
	if maxIters <= 0 {
		maxIters = DefaultMaxIterations
	}

	r.mu.Lock()
	if !r.built {
		r.rebuildLocked()
	}
	p := &pass{
		nodes:    r.nodes,
		edges:    r.edges,
		logic:    r.logic,
		observer: r.observer,
		logger:   r.logger,
		report: domain.Report{
			ID:        uuid.NewString(),
			Nodes:     len(r.nodes),
			Edges:     len(r.edges),
			StartedAt: time.Now(),
		},
	}
	if p.observer == nil {
		p.observer = noopObserver{}
	}
	metrics := r.metrics
	listeners := append([]ports.CompletionListener(nil), r.listeners...)

	r.graph.mu.RLock()
	ctx = p.observer.Start(ctx, p.report.ID, len(p.nodes), len(p.edges))
	p.run(ctx, maxIters)
	r.graph.mu.RUnlock()
	r.mu.Unlock()

	report := p.report
	p.observer.Finish(ctx, report)
	recordMetrics(metrics, report)
	p.logger.Debug("evaluation finished",
		"evaluation_id", report.ID,
		"outcome", report.Outcome,
		"iterations", report.Iterations,
		"recomputed", report.Recomputed,
		"cache_hits", report.CacheHits,
		"failures", len(report.NodeFailures)+len(report.EdgeFailures),
		"duration", report.Duration,
	)

	for _, l := range listeners {
		l.EvaluationCompleted(ctx, report)
	}
	return report
}

// pass holds the state of one evaluation.
type pass struct {
	nodes    []*Node
	edges    []*Edge
	logic    *LogicRegistry
	observer ports.EvaluationObserver
	logger   *slog.Logger
	report   domain.Report
}

// portKey identifies an input port during a round.
type portKey struct {
	node *Node
	port string
}

// link is an edge resolved for one pass.
type link struct {
	start     *Node
	startPort string
	end       *Node
	endPort   string
	name      string
	strategy  ports.Strategy
	config    map[string]any
}

func (p *pass) run(ctx context.Context, maxIters int) {
	defer func() { p.report.Duration = time.Since(p.report.StartedAt) }()

	if len(p.nodes) == 0 {
		p.report.Outcome = domain.OutcomeEmpty
		return
	}

	links := p.resolveLinks()
	staged := p.stagedPorts(links)

	last := p.snapshot()
	p.resetCollectors(links)

	p.report.Outcome = domain.OutcomeExhausted
	for i := 1; i <= maxIters; i++ {
		if ctx.Err() != nil {
			p.report.Outcome = domain.OutcomeCancelled
			break
		}
		p.report.Iterations = i

		p.computeNodes(ctx, i)
		changed := p.propagate(ctx, i, links, staged)

		current := p.snapshot()
		if !changed && snapshotsEqual(last, current) {
			p.report.Outcome = domain.OutcomeConverged
			break
		}
		last = current
	}

	p.postProcess()
}

// resolveLinks reads every edge once so a pass sees consistent endpoints
// and logic even if an edge is reconfigured concurrently.
func (p *pass) resolveLinks() []link {
	links := make([]link, 0, len(p.edges))
	for _, e := range p.edges {
		start, startPort, end, endPort := e.Endpoints()
		if start == nil || end == nil {
			continue
		}
		name := e.LogicName()
		links = append(links, link{
			start:     start,
			startPort: startPort,
			end:       end,
			endPort:   endPort,
			name:      name,
			strategy:  p.logic.Resolve(name),
			config:    e.LogicConfig(),
		})
	}
	return links
}

// stagedPorts returns the ports rebuilt from empty every round: every
// port fed by an accumulating strategy and every fed port of a collector.
func (p *pass) stagedPorts(links []link) map[portKey]bool {
	staged := make(map[portKey]bool)
	for _, l := range links {
		key := portKey{node: l.end, port: l.endPort}
		if isAccumulator(l.strategy) || domain.IsCollector(l.end.Kind()) {
			staged[key] = true
		}
	}
	return staged
}

func isAccumulator(s ports.Strategy) bool {
	acc, ok := s.(ports.Accumulator)
	return ok && acc.Accumulates()
}

// resetCollectors clears collector input ports that no edge feeds, so
// values from removed edges do not survive into this pass.
func (p *pass) resetCollectors(links []link) {
	fed := make(map[*Node]map[string]bool)
	for _, l := range links {
		if fed[l.end] == nil {
			fed[l.end] = make(map[string]bool)
		}
		fed[l.end][l.endPort] = true
	}
	for _, n := range p.nodes {
		if domain.IsCollector(n.Kind()) {
			n.resetUnfedInputs(fed[n])
		}
	}
}

func (p *pass) computeNodes(ctx context.Context, iteration int) {
	for _, n := range p.nodes {
		if !n.needsRecompute() {
			p.report.CacheHits++
			p.observer.NodeComputed(ctx, n.ID(), n.Kind(), true, nil)
			continue
		}

		_, err := n.ComputeOutputValues(ctx)
		p.observer.NodeComputed(ctx, n.ID(), n.Kind(), false, err)
		if err != nil {
			p.failNode(n, iteration, err)
			continue
		}
		p.report.Recomputed++
	}
}

func (p *pass) failNode(n *Node, iteration int, err error) {
	p.report.NodeFailures = append(p.report.NodeFailures, domain.NodeFailure{
		NodeID:    n.ID(),
		Kind:      n.Kind(),
		Iteration: iteration,
		Error:     err.Error(),
	})
	n.Diagnostics().Line(err.Error())
	p.logger.Debug("node compute failed", "node", n.ID(), "kind", n.Kind(), "iteration", iteration, "error", err)
}

// propagate pushes every edge's value into its destination port and
// reports whether any destination value changed. Staged ports collect
// their edges' contributions starting from nil and are written once, after
// all edges ran, so fan-in keeps edge order and repeated rounds converge.
func (p *pass) propagate(ctx context.Context, iteration int, links []link, staged map[portKey]bool) bool {
	changed := false
	pending := make(map[portKey]domain.Value)
	var order []portKey

	for _, l := range links {
		value := sourceValue(l.start, l.startPort)
		key := portKey{node: l.end, port: l.endPort}

		var prev domain.Value
		isStaged := staged[key]
		if isStaged {
			prev = pending[key]
		} else {
			prev = l.end.InputValue(l.endPort)
		}

		next, err := combine(ctx, l.strategy, prev, value, l.config)
		if err != nil {
			p.failEdge(l, iteration, err)
			p.observer.EdgePropagated(ctx, l.name, false, err)
			continue
		}

		if isStaged {
			if _, seen := pending[key]; !seen {
				order = append(order, key)
			}
			pending[key] = next
			p.observer.EdgePropagated(ctx, l.name, false, nil)
			continue
		}

		did := l.end.ReceiveInputValue(l.endPort, next)
		p.observer.EdgePropagated(ctx, l.name, did, nil)
		if did {
			changed = true
			p.report.Changes++
		}
	}

	for _, key := range order {
		if key.node.ReceiveInputValue(key.port, pending[key]) {
			changed = true
			p.report.Changes++
		}
	}
	return changed
}

// sourceValue reads an edge's source port. A missing value falls back to
// the node's raw content for kinds whose content is a value; transforms
// and sinks never leak their unevaluated text.
func sourceValue(start *Node, port string) domain.Value {
	if v := start.OutputValue(port); v != nil {
		return v
	}
	if domain.ContentIsValue(start.Kind()) {
		return start.Content()
	}
	return nil
}

// combine applies a strategy and converts a panic into an error.
func combine(
	ctx context.Context,
	s ports.Strategy,
	prev, incoming domain.Value,
	config map[string]any,
) (out domain.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	out, err = s.Combine(ctx, prev, incoming, config)
	if err != nil {
		return nil, ports.NewStrategyError(s.Name(), err)
	}
	return out, nil
}

func (p *pass) failEdge(l link, iteration int, err error) {
	p.report.EdgeFailures = append(p.report.EdgeFailures, domain.EdgeFailure{
		From:      l.start.ID() + "." + l.startPort,
		To:        l.end.ID() + "." + l.endPort,
		Logic:     l.name,
		Iteration: iteration,
		Error:     err.Error(),
	})
	l.end.Diagnostics().Line(err.Error())
	p.logger.Debug("edge propagation failed", "from", l.start.ID(), "to", l.end.ID(), "logic", l.name, "error", err)
}

// postProcess refreshes the text of every collector that is not a
// snapshot with its collected inputs. Empty text never overwrites.
// Scripted sinks receive the text as rendered text so their script is
// kept; other collectors take it as content.
func (p *pass) postProcess() {
	for _, n := range p.nodes {
		if !domain.IsCollector(n.Kind()) || n.IsSnapshot() {
			continue
		}

		var parts []string
		for _, port := range n.InputPorts() {
			for _, v := range domain.Flatten(nil, n.InputValue(port.Name)) {
				parts = append(parts, domain.Stringify(v))
			}
		}
		text := strings.Join(parts, "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}

		if domain.FamilyOf(n.Kind()) == domain.FamilySink && n.IsScripted() {
			n.SetRenderedText(text)
		} else {
			n.UpdateFromText(text)
		}
		p.report.PostProcessed++
	}
}

// snapshot deep-copies every node's input values.
func (p *pass) snapshot() map[*Node]map[string]domain.Value {
	out := make(map[*Node]map[string]domain.Value, len(p.nodes))
	for _, n := range p.nodes {
		out[n] = n.InputValues()
	}
	return out
}

func snapshotsEqual(a, b map[*Node]map[string]domain.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for n, av := range a {
		bv, ok := b[n]
		if !ok || !domain.EqualMaps(av, bv) {
			return false
		}
	}
	return true
}

func recordMetrics(m ports.MetricsCollector, report domain.Report) {
	if m == nil {
		return
	}
	labels := map[string]string{"outcome": string(report.Outcome)}

	m.RecordLatency(MetricEvaluate, report.Duration, labels)
	m.RecordCounter(MetricEvaluations, 1, labels)
	m.RecordCounter(MetricRecomputed, float64(report.Recomputed), labels)
	m.RecordCounter(MetricCacheHits, float64(report.CacheHits), labels)
	m.RecordCounter(MetricPropagatedValues, float64(report.Changes), labels)
	m.RecordCounter(MetricPostProcessed, float64(report.PostProcessed), labels)
	m.RecordCounter(MetricNodeFailures, float64(len(report.NodeFailures)), labels)
	m.RecordCounter(MetricEdgeFailures, float64(len(report.EdgeFailures)), labels)
	m.RecordHistogram(MetricIterations, float64(report.Iterations), labels)
	m.RecordGauge(MetricGraphNodes, float64(report.Nodes), nil)
	m.RecordGauge(MetricGraphEdges, float64(report.Edges), nil)
}

// noopObserver is used when no observer is installed.
type noopObserver struct{}

func (noopObserver) Start(ctx context.Context, _ string, _, _ int) context.Context { return ctx }

func (noopObserver) NodeComputed(context.Context, string, string, bool, error) {}

func (noopObserver) EdgePropagated(context.Context, string, bool, error) {}

func (noopObserver) Finish(context.Context, domain.Report) {}
