package domain

import "time"

// Outcome summarizes how an evaluation pass ended.
type Outcome string

// Evaluation outcomes.
const (
	// OutcomeConverged means a round produced no input changes anywhere.
	OutcomeConverged Outcome = "converged"
	// OutcomeExhausted means the iteration budget ran out first. Graphs with
	// feedback loops end this way; it is not an error.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeEmpty means there was nothing to evaluate.
	OutcomeEmpty Outcome = "empty"
	// OutcomeCancelled means the caller's context ended between rounds.
	OutcomeCancelled Outcome = "cancelled"
)

// NodeFailure records a node whose computation failed during a round.
type NodeFailure struct {
	NodeID    string `json:"node_id"`
	Kind      string `json:"kind"`
	Iteration int    `json:"iteration"`
	Error     string `json:"error"`
}

// EdgeFailure records an edge whose logic failed during a round.
type EdgeFailure struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Logic     string `json:"logic"`
	Iteration int    `json:"iteration"`
	Error     string `json:"error"`
}

// Report describes one evaluation pass. It is returned by the runtime and
// handed to completion listeners.
type Report struct {
	// ID uniquely identifies the pass for log and trace correlation.
	ID string `json:"id"`
	// Outcome tells whether the pass converged or ran out of iterations.
	Outcome Outcome `json:"outcome"`
	// Iterations is the number of propagation rounds executed.
	Iterations int `json:"iterations"`
	// Nodes and Edges give the size of the evaluated topology.
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
	// Recomputed counts compute calls that ran kind logic.
	Recomputed int `json:"recomputed"`
	// CacheHits counts nodes skipped because their signature was unchanged.
	CacheHits int `json:"cache_hits"`
	// Changes counts edge transfers that modified a destination port.
	Changes int `json:"changes"`
	// PostProcessed counts collector nodes whose content was refreshed.
	PostProcessed int `json:"post_processed"`
	// NodeFailures and EdgeFailures list isolated failures.
	NodeFailures []NodeFailure `json:"node_failures,omitempty"`
	EdgeFailures []EdgeFailure `json:"edge_failures,omitempty"`
	// StartedAt and Duration time the pass.
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Converged reports whether the pass reached a fixed point.
func (r Report) Converged() bool { return r.Outcome == OutcomeConverged }

// Failed reports whether any node or edge failed during the pass.
func (r Report) Failed() bool { return len(r.NodeFailures) > 0 || len(r.EdgeFailures) > 0 }
