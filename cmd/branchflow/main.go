// Package main implements the branchflow CLI for driving branches through
// the feature -> contrib -> develop -> release -> main pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/branchflow/internal/config"
	"github.com/fyrsmithlabs/branchflow/internal/gitexec"
	"github.com/fyrsmithlabs/branchflow/internal/gitstate"
	"github.com/fyrsmithlabs/branchflow/internal/logging"
	"github.com/fyrsmithlabs/branchflow/internal/promotion"
	"github.com/fyrsmithlabs/branchflow/internal/version"
	"github.com/fyrsmithlabs/branchflow/internal/worktree"
)

// Exit codes distinguish failure classes so scripts can branch on them.
const (
	exitOK                = 0
	exitError             = 1
	exitInvalidTransition = 2
	exitGatesFailed       = 3
	exitPrecondition      = 4
	exitNothingToRelease  = 5
)

var (
	// configPath overrides the default .branchflow.yaml lookup.
	configPath string
	// buildVersion is set at link time.
	buildVersion = "dev"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := logging.WithInvocationID(context.Background(), uuid.NewString())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

var rootCmd = &cobra.Command{
	Use:   "branchflow",
	Short: "Branch pipeline orchestration over git worktrees",
	Long: `branchflow drives changes through a fixed branch pipeline
(feature -> contrib -> develop -> release -> main) using isolated git
worktrees, quality gates, and PR-driven promotion.`,
	Version:       buildVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default .branchflow.yaml)")
	rootCmd.AddCommand(worktreeCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(cutReleaseCmd)
}

// exitCode maps an error to the CLI's exit-code contract.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var gatesErr *promotion.GatesFailedError
	switch {
	case errors.Is(err, promotion.ErrInvalidTransition):
		return exitInvalidTransition
	case errors.As(err, &gatesErr):
		return exitGatesFailed
	case errors.Is(err, promotion.ErrSourceNotReady),
		errors.Is(err, worktree.ErrMissingPlanningArtifact),
		errors.Is(err, worktree.ErrUncommittedPlanningChanges),
		errors.Is(err, worktree.ErrUnpushedChanges),
		errors.Is(err, worktree.ErrWorktreeExists),
		errors.Is(err, worktree.ErrWorktreeHasUncommittedChanges),
		errors.Is(err, worktree.ErrInvalidKind):
		return exitPrecondition
	case errors.Is(err, version.ErrNothingToRelease):
		return exitNothingToRelease
	default:
		return exitError
	}
}

// app bundles the components every command needs over the repository.
type app struct {
	cfg       *config.Config
	log       *logging.Logger
	reader    *gitstate.Reader
	git       *gitexec.Runner
	worktrees *worktree.Manager
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	root := cfg.Repository.Root
	if root == "" {
		root = "."
	}
	reader, err := gitstate.Open(root, cfg.Repository.Remote)
	if err != nil {
		return nil, err
	}
	git := gitexec.New(reader.Path())
	return &app{
		cfg:       cfg,
		log:       log,
		reader:    reader,
		git:       git,
		worktrees: worktree.NewManager(reader, git, cfg.Repository, cfg.Worktrees, log),
	}, nil
}

func (a *app) close() {
	_ = a.log.Sync()
}
