package gates

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/branchflow/internal/config"
)

func defaultGatesConfig() config.GatesConfig {
	return config.Default().Gates
}

func defaultSyncConfig() config.SyncConfig {
	return config.Default().Sync
}

func TestCommandGate_Pass(t *testing.T) {
	gate := NewCommandGate("test-suite", []string{"sh", "-c", "exit 0"}, time.Minute)
	res := gate.Evaluate(context.Background(), t.TempDir())
	assert.True(t, res.Passed)
	assert.Equal(t, "test-suite", res.Gate)
}

func TestCommandGate_FailCarriesOutput(t *testing.T) {
	gate := NewCommandGate("build", []string{"sh", "-c", "echo compile error >&2; exit 2"}, time.Minute)
	res := gate.Evaluate(context.Background(), t.TempDir())
	assert.False(t, res.Passed)
	assert.Contains(t, res.Detail, "exited 2")
	assert.Contains(t, res.Detail, "compile error")
}

func TestCommandGate_MissingToolIsExecutionError(t *testing.T) {
	gate := NewCommandGate("static-lint", []string{"definitely-not-a-real-binary-xyz"}, time.Minute)
	res := gate.Evaluate(context.Background(), t.TempDir())
	assert.False(t, res.Passed)
	assert.Contains(t, res.Detail, "ExecutionError")
}

func TestCommandGate_NoCommandConfigured(t *testing.T) {
	gate := NewCommandGate("build", nil, time.Minute)
	res := gate.Evaluate(context.Background(), t.TempDir())
	assert.False(t, res.Passed)
	assert.Contains(t, res.Detail, "ExecutionError")
}

func TestCommandGate_RunsInTree(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), []byte("x"), 0o644))

	gate := NewCommandGate("build", []string{"sh", "-c", "test -f marker"}, time.Minute)
	res := gate.Evaluate(context.Background(), dir)
	assert.True(t, res.Passed)
}

func TestCoverageGate_MeetsThreshold(t *testing.T) {
	script := `echo "ok  pkg/a  0.1s  coverage: 82.5% of statements"; echo "ok  pkg/b  0.1s  coverage: 91.0% of statements"`
	gate := NewCoverageGate([]string{"sh", "-c", script}, 80, time.Minute)

	res := gate.Evaluate(context.Background(), t.TempDir())
	assert.True(t, res.Passed)
	assert.Contains(t, res.Detail, "82.5%")
}

func TestCoverageGate_BelowThreshold(t *testing.T) {
	script := `echo "ok  pkg/a  0.1s  coverage: 64.0% of statements"`
	gate := NewCoverageGate([]string{"sh", "-c", script}, 70, time.Minute)

	res := gate.Evaluate(context.Background(), t.TempDir())
	assert.False(t, res.Passed)
	assert.Contains(t, res.Detail, "below threshold")
}

func TestCoverageGate_NoFiguresIsExecutionError(t *testing.T) {
	gate := NewCoverageGate([]string{"sh", "-c", "echo no figures here"}, 70, time.Minute)
	res := gate.Evaluate(context.Background(), t.TempDir())
	assert.False(t, res.Passed)
	assert.Contains(t, res.Detail, "ExecutionError")
}

func TestCoverageGate_CommandFailure(t *testing.T) {
	gate := NewCoverageGate([]string{"sh", "-c", "echo FAIL pkg/a; exit 1"}, 70, time.Minute)
	res := gate.Evaluate(context.Background(), t.TempDir())
	assert.False(t, res.Passed)
	assert.Contains(t, res.Detail, "exited 1")
}
