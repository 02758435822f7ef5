package middleware

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-nodeflow/internal/application"
	"github.com/ahrav/go-nodeflow/internal/domain"
)

// GraphEvaluator runs one evaluation pass. *application.Runtime satisfies it.
type GraphEvaluator interface {
	Evaluate(ctx context.Context) domain.Report
}

var _ GraphEvaluator = (*application.Runtime)(nil)

// LiveEvaluator re-evaluates a graph in response to edit notifications.
// Requests are coalesced: any number of requests made while an evaluation
// is pending or running produce at most one follow-up evaluation. Passes
// are paced with a token bucket so bursts of edits cannot monopolize the
// CPU.
type LiveEvaluator struct {
	next    GraphEvaluator
	limiter *rate.Limiter
	logger  *slog.Logger

	// pending holds at most one queued request.
	pending chan struct{}

	mu         sync.Mutex
	runs       int
	lastReport domain.Report
}

// NewLiveEvaluator creates a live evaluator over next, paced by cfg. A nil
// logger selects slog.Default().
func NewLiveEvaluator(next GraphEvaluator, cfg application.LiveConfig, logger *slog.Logger) *LiveEvaluator {
	if next == nil {
		panic("live evaluator: next evaluator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	burst := max(cfg.Burst, 1)
	return &LiveEvaluator{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		logger:  logger,
		pending: make(chan struct{}, 1),
	}
}

// Request asks for an evaluation without blocking. It returns false when a
// request was already queued and this one was merged into it.
func (l *LiveEvaluator) Request() bool {
	select {
	case l.pending <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run serves requests until ctx ends and returns ctx's error.
func (l *LiveEvaluator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.pending:
		}

		if err := l.limiter.Wait(ctx); err != nil {
			// No token can arrive before ctx ends.
			l.logger.Debug("live evaluation deferred", "error", err)
			<-ctx.Done()
			return ctx.Err()
		}

		// Requests that arrived while waiting are served by this pass.
		select {
		case <-l.pending:
		default:
		}

		report := l.next.Evaluate(ctx)

		l.mu.Lock()
		l.runs++
		l.lastReport = report
		l.mu.Unlock()

		l.logger.Debug("live evaluation finished",
			"evaluation_id", report.ID,
			"outcome", report.Outcome,
			"iterations", report.Iterations,
		)
	}
}

// Runs returns the number of evaluations performed so far.
func (l *LiveEvaluator) Runs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runs
}

// LastReport returns the report of the most recent evaluation and whether
// one has happened.
func (l *LiveEvaluator) LastReport() (domain.Report, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastReport, l.runs > 0
}
