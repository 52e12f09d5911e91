// Package gates runs the ordered quality-gate set ahead of a promotion and
// reports every gate's outcome.
//
// Gates are pluggable units satisfying a single capability: evaluate a
// source tree and report pass/fail with detail. The runner holds no
// gate-specific logic, never short-circuits, and never aborts mid-sequence;
// a gate that cannot execute reports a failed result instead of an error.
package gates

import (
	"context"
	"fmt"
)

// Result is one gate's verdict.
type Result struct {
	// Gate is the gate's declared name.
	Gate string `json:"gate"`

	// Passed reports whether the gate's check held.
	Passed bool `json:"passed"`

	// Detail is a human-readable explanation: the failing output, the diff
	// list, or a short confirmation.
	Detail string `json:"detail,omitempty"`
}

// Report is the ordered outcome of one full gate run. It is built once per
// promotion attempt and never mutated afterwards.
type Report struct {
	Results []Result `json:"results"`
}

// AllPassed reports whether every gate passed.
func (r Report) AllPassed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// Failed returns the failing results in report order.
func (r Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Summary renders a one-line pass/fail overview, e.g. "4/5 gates passed".
func (r Report) Summary() string {
	passed := 0
	for _, res := range r.Results {
		if res.Passed {
			passed++
		}
	}
	return fmt.Sprintf("%d/%d gates passed", passed, len(r.Results))
}

// Gate is a named, independent check against a source tree.
type Gate interface {
	// Name identifies the gate in reports and logs.
	Name() string

	// Evaluate checks the tree rooted at dir. Implementations must not
	// mutate the tree and must fold execution failures into a failed
	// Result rather than panicking.
	Evaluate(ctx context.Context, dir string) Result
}
