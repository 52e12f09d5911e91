// Package config provides configuration loading for branchflow.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Repository RepositoryConfig `koanf:"repository"`
	Worktrees  WorktreesConfig  `koanf:"worktrees"`
	Gates      GatesConfig      `koanf:"gates"`
	Sync       SyncConfig       `koanf:"sync"`
	Hosting    HostingConfig    `koanf:"hosting"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// RepositoryConfig locates the repository and names its persistent branches.
type RepositoryConfig struct {
	// Root is the repository working directory.
	Root string `koanf:"root"`

	// Remote is the tracking remote name.
	Remote string `koanf:"remote"`

	// ContribBranch, DevelopBranch and MainBranch name the three
	// long-lived tiers.
	ContribBranch string `koanf:"contrib"`
	DevelopBranch string `koanf:"develop"`
	MainBranch    string `koanf:"main"`

	// PlanningRoot is the directory that must carry a per-slug planning
	// artifact before a feature worktree may be created.
	PlanningRoot string `koanf:"planning"`
}

// WorktreesConfig controls where isolated worktrees are created.
type WorktreesConfig struct {
	// Root is the parent directory for linked worktrees.
	Root string `koanf:"root"`
}

// CommandGateConfig configures one command-backed quality gate.
type CommandGateConfig struct {
	// Command is the argv to execute; the first element is the binary.
	Command []string `koanf:"command"`
}

// GatesConfig configures the standard gate set.
type GatesConfig struct {
	Coverage struct {
		Command []string `koanf:"command"`
		// Threshold is the minimum accepted statement coverage percentage.
		Threshold float64 `koanf:"threshold"`
	} `koanf:"coverage"`
	TestSuite  CommandGateConfig `koanf:"testsuite"`
	Build      CommandGateConfig `koanf:"build"`
	StaticLint CommandGateConfig `koanf:"staticlint"`
	// Timeout bounds each gate command.
	Timeout Duration `koanf:"timeout"`
}

// SyncConfig configures the config-sync gate.
type SyncConfig struct {
	// PrimaryRoot and MirrorRoot are the two trees that must stay
	// byte-identical, relative to the repository root.
	PrimaryRoot string `koanf:"primary"`
	MirrorRoot  string `koanf:"mirror"`

	// PrimaryOnly and MirrorOnly list gitignore-style patterns excepted
	// from mirroring in either direction.
	PrimaryOnly []string `koanf:"primaryonly"`
	MirrorOnly  []string `koanf:"mirroronly"`
}

// GitHubConfig configures the GitHub hosting provider.
type GitHubConfig struct {
	Owner string `koanf:"owner"`
	Repo  string `koanf:"repo"`
	Token Secret `koanf:"token"`
	// BaseURL overrides the API endpoint, for GitHub Enterprise or tests.
	BaseURL string `koanf:"baseurl"`
}

// AzureDevOpsConfig configures the Azure DevOps hosting provider.
type AzureDevOpsConfig struct {
	Organization string `koanf:"organization"`
	Project      string `koanf:"project"`
	Repository   string `koanf:"repository"`
	Token        Secret `koanf:"token"`
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string `koanf:"baseurl"`
}

// HostingConfig selects and configures the VCS hosting provider.
type HostingConfig struct {
	// Provider is "github" or "azuredevops".
	Provider string `koanf:"provider"`

	// PollInterval and MergeTimeout bound the merge wait loop.
	PollInterval Duration `koanf:"pollinterval"`
	MergeTimeout Duration `koanf:"mergetimeout"`

	GitHub      GitHubConfig      `koanf:"github"`
	AzureDevOps AzureDevOpsConfig `koanf:"azuredevops"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is trace, debug, info, warn or error.
	Level string `koanf:"level"`
	// Format is console or json.
	Format string `koanf:"format"`
}

// Default returns the built-in defaults. Loaded files and environment
// variables override these.
func Default() Config {
	cfg := Config{
		Repository: RepositoryConfig{
			Root:          ".",
			Remote:        "origin",
			ContribBranch: "contrib",
			DevelopBranch: "develop",
			MainBranch:    "main",
			PlanningRoot:  "planning",
		},
		Worktrees: WorktreesConfig{
			Root: ".worktrees",
		},
		Sync: SyncConfig{
			PrimaryRoot: ".config/primary",
			MirrorRoot:  ".config/mirror",
		},
		Hosting: HostingConfig{
			Provider:     "github",
			PollInterval: Duration(5 * time.Second),
			MergeTimeout: Duration(10 * time.Minute),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
	cfg.Gates.Coverage.Command = []string{"go", "test", "-cover", "./..."}
	cfg.Gates.Coverage.Threshold = 70
	cfg.Gates.TestSuite.Command = []string{"go", "test", "./..."}
	cfg.Gates.Build.Command = []string{"go", "build", "./..."}
	cfg.Gates.StaticLint.Command = []string{"go", "vet", "./..."}
	cfg.Gates.Timeout = Duration(10 * time.Minute)
	return cfg
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Repository.Root == "" {
		return fmt.Errorf("repository.root is required")
	}
	if c.Repository.Remote == "" {
		return fmt.Errorf("repository.remote is required")
	}
	for name, branch := range map[string]string{
		"repository.contrib": c.Repository.ContribBranch,
		"repository.develop": c.Repository.DevelopBranch,
		"repository.main":    c.Repository.MainBranch,
	} {
		if branch == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if c.Worktrees.Root == "" {
		return fmt.Errorf("worktrees.root is required")
	}

	switch c.Hosting.Provider {
	case "github", "azuredevops":
	default:
		return fmt.Errorf("hosting.provider must be github or azuredevops, got %q", c.Hosting.Provider)
	}
	if c.Hosting.PollInterval.Duration() <= 0 {
		return fmt.Errorf("hosting.pollinterval must be positive")
	}
	if c.Hosting.MergeTimeout.Duration() <= 0 {
		return fmt.Errorf("hosting.mergetimeout must be positive")
	}

	if c.Gates.Coverage.Threshold < 0 || c.Gates.Coverage.Threshold > 100 {
		return fmt.Errorf("gates.coverage.threshold must be within [0, 100], got %v", c.Gates.Coverage.Threshold)
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
