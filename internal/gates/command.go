package gates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// maxDetailBytes caps the command output carried into a Result so a noisy
// tool cannot blow up the report.
const maxDetailBytes = 4096

// CommandGate runs an external command in the source tree and passes iff
// the command exits zero.
type CommandGate struct {
	name    string
	argv    []string
	timeout time.Duration
}

// NewCommandGate creates a gate named name that runs argv with the given
// per-run timeout. A zero timeout means no bound beyond the caller's
// context.
func NewCommandGate(name string, argv []string, timeout time.Duration) *CommandGate {
	return &CommandGate{name: name, argv: argv, timeout: timeout}
}

// Name returns the gate identifier.
func (g *CommandGate) Name() string {
	return g.name
}

// Evaluate runs the command with the tree as working directory.
func (g *CommandGate) Evaluate(ctx context.Context, dir string) Result {
	if _, err := g.run(ctx, dir); err != nil {
		return Result{Gate: g.name, Passed: false, Detail: err.Error()}
	}
	return Result{Gate: g.name, Passed: true, Detail: fmt.Sprintf("%s succeeded", strings.Join(g.argv, " "))}
}

// run executes argv, returning combined output; the error carries the
// output tail for failed or unrunnable commands.
func (g *CommandGate) run(ctx context.Context, dir string) (string, error) {
	if len(g.argv) == 0 {
		return "", fmt.Errorf("ExecutionError: no command configured for gate %s", g.name)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, g.argv[0], g.argv[1:]...)
	cmd.Dir = dir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		detail := tail(buf.String(), maxDetailBytes)
		if !errors.As(err, &exitErr) {
			// The tool could not even start (missing binary, bad path).
			return "", fmt.Errorf("ExecutionError: %s: %v", strings.Join(g.argv, " "), err)
		}
		return "", fmt.Errorf("%s exited %d:\n%s", strings.Join(g.argv, " "), exitErr.ExitCode(), detail)
	}
	return buf.String(), nil
}

// CoverageGate runs a test command with coverage output and passes iff the
// lowest reported per-package statement coverage meets the threshold.
type CoverageGate struct {
	cmd       *CommandGate
	threshold float64
}

// coveragePattern matches the `go test -cover` per-package summary line.
var coveragePattern = regexp.MustCompile(`coverage:\s+(\d+(?:\.\d+)?)%`)

// NewCoverageGate creates the coverage-threshold gate.
func NewCoverageGate(argv []string, threshold float64, timeout time.Duration) *CoverageGate {
	return &CoverageGate{
		cmd:       NewCommandGate("coverage-threshold", argv, timeout),
		threshold: threshold,
	}
}

// Name returns the gate identifier.
func (g *CoverageGate) Name() string {
	return g.cmd.name
}

// Evaluate runs the coverage command and compares the lowest per-package
// percentage to the threshold.
func (g *CoverageGate) Evaluate(ctx context.Context, dir string) Result {
	output, err := g.cmd.run(ctx, dir)
	if err != nil {
		return Result{Gate: g.Name(), Passed: false, Detail: err.Error()}
	}

	matches := coveragePattern.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return Result{
			Gate:   g.Name(),
			Passed: false,
			Detail: "ExecutionError: no coverage figures in command output",
		}
	}

	lowest := 100.0
	for _, m := range matches {
		pct, perr := strconv.ParseFloat(m[1], 64)
		if perr != nil {
			continue
		}
		if pct < lowest {
			lowest = pct
		}
	}

	if lowest < g.threshold {
		return Result{
			Gate:   g.Name(),
			Passed: false,
			Detail: fmt.Sprintf("lowest package coverage %.1f%% is below threshold %.1f%%", lowest, g.threshold),
		}
	}
	return Result{
		Gate:   g.Name(),
		Passed: true,
		Detail: fmt.Sprintf("lowest package coverage %.1f%% meets threshold %.1f%%", lowest, g.threshold),
	}
}

// tail returns at most n trailing bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
