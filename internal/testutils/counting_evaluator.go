// Package testutils provides test doubles shared by the engine's tests:
// an evaluator that counts runs, a metrics recorder, and a completion
// listener that keeps every report.
package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

var _ ports.Evaluator = (*CountingEvaluator)(nil)

// CountingEvaluator wraps an evaluator and counts the scripts it runs.
// It lets tests observe whether a node's kind logic actually executed,
// which is how the pure-node cache is verified.
type CountingEvaluator struct {
	// inner performs the real evaluation.
	inner ports.Evaluator
	// mu guards the counters below.
	mu sync.Mutex
	// runs counts every Run call.
	runs int
	// bySource counts Run calls per script source.
	bySource map[string]int
}

// NewCountingEvaluator wraps inner.
func NewCountingEvaluator(inner ports.Evaluator) *CountingEvaluator {
	return &CountingEvaluator{
		inner:    inner,
		bySource: make(map[string]int),
	}
}

// Run counts the call and delegates to the wrapped evaluator.
func (c *CountingEvaluator) Run(ctx context.Context, s ports.Script) (domain.Value, error) {
	c.mu.Lock()
	c.runs++
	c.bySource[strings.TrimSpace(s.Source)]++
	c.mu.Unlock()

	return c.inner.Run(ctx, s)
}

// ParseLiteral delegates without counting.
func (c *CountingEvaluator) ParseLiteral(src string) (domain.Value, bool) {
	return c.inner.ParseLiteral(src)
}

// Runs returns the total number of Run calls.
func (c *CountingEvaluator) Runs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

// RunsOf returns the number of Run calls whose trimmed source equals src.
func (c *CountingEvaluator) RunsOf(src string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bySource[strings.TrimSpace(src)]
}

// Reset zeroes every counter.
func (c *CountingEvaluator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = 0
	c.bySource = make(map[string]int)
}
