package gates

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/branchflow/internal/logging"
)

// Runner executes an ordered gate set with full-report semantics: every
// gate runs regardless of earlier failures, and the report preserves the
// declared order.
type Runner struct {
	log *logging.Logger
}

// NewRunner creates a runner. A nil logger disables logging.
func NewRunner(log *logging.Logger) *Runner {
	if log == nil {
		log = logging.Nop()
	}
	return &Runner{log: log.Named("gates")}
}

// Run evaluates every gate against the tree rooted at dir. Gates are
// read-only over the tree and share no mutable state, so they run
// concurrently; the report slot for each gate is fixed by declared order,
// never by completion order.
func (r *Runner) Run(ctx context.Context, gateSet []Gate, dir string) Report {
	results := make([]Result, len(gateSet))

	g, gctx := errgroup.WithContext(ctx)
	for i, gate := range gateSet {
		g.Go(func() error {
			results[i] = r.evaluate(gctx, gate, dir)
			return nil
		})
	}
	// Goroutines only record results; the group never returns an error.
	_ = g.Wait()

	report := Report{Results: results}
	for _, res := range results {
		r.log.Debug(ctx, "gate evaluated",
			zap.String("gate", res.Gate),
			zap.Bool("passed", res.Passed),
		)
	}
	r.log.Info(ctx, "gate run complete",
		zap.String("summary", report.Summary()),
		zap.Bool("all_passed", report.AllPassed()),
	)
	return report
}

// evaluate shields the runner from a misbehaving gate: a panic becomes a
// failed result with an ExecutionError detail.
func (r *Runner) evaluate(ctx context.Context, gate Gate, dir string) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{
				Gate:   gate.Name(),
				Passed: false,
				Detail: fmt.Sprintf("ExecutionError: gate panicked: %v", rec),
			}
		}
	}()
	return gate.Evaluate(ctx, dir)
}
