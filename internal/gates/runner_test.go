package gates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/branchflow/internal/logging"
)

// stubGate is a canned-result gate with an optional delay, used to verify
// report ordering is declared order rather than completion order.
type stubGate struct {
	name   string
	passed bool
	delay  time.Duration
	panics bool
}

func (g stubGate) Name() string { return g.name }

func (g stubGate) Evaluate(ctx context.Context, dir string) Result {
	if g.panics {
		panic("gate blew up")
	}
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
		}
	}
	return Result{Gate: g.name, Passed: g.passed, Detail: "stub"}
}

func TestRunner_FullReportNoShortCircuit(t *testing.T) {
	runner := NewRunner(logging.NewTestLogger().Logger)
	gateSet := []Gate{
		stubGate{name: "first", passed: true},
		stubGate{name: "second", passed: false},
		stubGate{name: "third", passed: true},
		stubGate{name: "fourth", passed: false},
	}

	report := runner.Run(context.Background(), gateSet, t.TempDir())

	// Every declared gate appears even though two failed.
	require.Len(t, report.Results, len(gateSet))
	assert.False(t, report.AllPassed())
	assert.Len(t, report.Failed(), 2)
	assert.Equal(t, "2/4 gates passed", report.Summary())
}

func TestRunner_ReportOrderIsDeclaredOrder(t *testing.T) {
	runner := NewRunner(nil)
	gateSet := []Gate{
		stubGate{name: "slow", passed: true, delay: 50 * time.Millisecond},
		stubGate{name: "fast", passed: true},
	}

	report := runner.Run(context.Background(), gateSet, t.TempDir())

	require.Len(t, report.Results, 2)
	assert.Equal(t, "slow", report.Results[0].Gate)
	assert.Equal(t, "fast", report.Results[1].Gate)
}

func TestRunner_PanickingGateBecomesExecutionError(t *testing.T) {
	runner := NewRunner(nil)
	gateSet := []Gate{
		stubGate{name: "healthy", passed: true},
		stubGate{name: "broken", panics: true},
	}

	report := runner.Run(context.Background(), gateSet, t.TempDir())

	require.Len(t, report.Results, 2)
	assert.True(t, report.Results[0].Passed)
	assert.False(t, report.Results[1].Passed)
	assert.Contains(t, report.Results[1].Detail, "ExecutionError")
}

func TestReport_AllPassed(t *testing.T) {
	assert.True(t, Report{}.AllPassed())
	assert.True(t, Report{Results: []Result{{Passed: true}}}.AllPassed())
	assert.False(t, Report{Results: []Result{{Passed: true}, {Passed: false}}}.AllPassed())
}

func TestStandardSet_OrderAndSize(t *testing.T) {
	set := StandardSet(defaultGatesConfig(), defaultSyncConfig())
	require.Len(t, set, 5)
	want := []string{GateCoverage, GateTestSuite, GateBuild, GateStaticLint, GateConfigSync}
	for i, gate := range set {
		assert.Equal(t, want[i], gate.Name())
	}
}
