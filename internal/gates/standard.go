package gates

import (
	"github.com/fyrsmithlabs/branchflow/internal/config"
)

// Standard gate names, in fixed report order.
const (
	GateCoverage   = "coverage-threshold"
	GateTestSuite  = "test-suite"
	GateBuild      = "build"
	GateStaticLint = "static-lint"
	GateConfigSync = "config-sync"
)

// StandardSet builds the standard gate set in its declared order:
// coverage-threshold, test-suite, build, static-lint, config-sync.
// The config-sync gate is last by convention.
func StandardSet(cfg config.GatesConfig, syncCfg config.SyncConfig) []Gate {
	timeout := cfg.Timeout.Duration()
	return []Gate{
		NewCoverageGate(cfg.Coverage.Command, cfg.Coverage.Threshold, timeout),
		NewCommandGate(GateTestSuite, cfg.TestSuite.Command, timeout),
		NewCommandGate(GateBuild, cfg.Build.Command, timeout),
		NewCommandGate(GateStaticLint, cfg.StaticLint.Command, timeout),
		NewSyncVerifier(syncCfg),
	}
}
