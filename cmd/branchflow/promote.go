package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/branchflow/internal/config"
	"github.com/fyrsmithlabs/branchflow/internal/gates"
	"github.com/fyrsmithlabs/branchflow/internal/hosting"
	"github.com/fyrsmithlabs/branchflow/internal/promotion"
	"github.com/fyrsmithlabs/branchflow/internal/tier"
	"github.com/fyrsmithlabs/branchflow/internal/worktree"
)

var promoteCmd = &cobra.Command{
	Use:   "promote <target-tier> [source-branch]",
	Short: "Promote a branch one stage along the pipeline",
	Long: `Run the quality gates over the source branch and, if they all pass,
open a merge request to the target and wait for it to merge. Ephemeral
sources (feature, release) are archived after the merge confirms.

The source defaults to the currently checked-out branch.

Examples:
  # From inside a feature worktree
  branchflow promote contrib

  # Promote the integration branch explicitly
  branchflow promote develop contrib

  # Release-target promotion computes and (after merge) applies a version tag
  branchflow promote release`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPromote,
}

func runPromote(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	source, err := resolveSource(cmd, a, args)
	if err != nil {
		return err
	}
	targetTier, err := tier.ParseTier(args[0])
	if err != nil {
		return err
	}
	worktrees, err := a.worktrees.List(ctx)
	if err != nil {
		return err
	}
	target, err := targetBranch(a.cfg.Repository, worktrees, targetTier)
	if err != nil {
		return err
	}

	provider, err := hosting.New(a.cfg.Hosting)
	if err != nil {
		return err
	}
	eng := promotion.NewEngine(
		a.reader,
		a.git,
		gates.NewRunner(a.log),
		gates.StandardSet(a.cfg.Gates, a.cfg.Sync),
		provider,
		a.worktrees,
		a.cfg,
		a.log,
	)

	outcome, err := eng.Promote(ctx, promotion.Request{Source: source, Target: target})
	var gatesErr *promotion.GatesFailedError
	if errors.As(err, &gatesErr) {
		renderReport(os.Stdout, gatesErr.Report)
		return err
	}
	if outcome != nil {
		renderReport(os.Stdout, outcome.Report)
		if outcome.MergeRequest.Number != 0 {
			fmt.Printf("Merge request %s: %s\n", outcome.MergeRequest, outcome.MergeRequest.URL)
		}
	}
	if err != nil {
		return err
	}
	if outcome.Version != nil {
		fmt.Printf("Tagged v%s\n", outcome.Version)
	}
	if outcome.Archived {
		fmt.Printf("Archived %s\n", source.Name)
	}
	return nil
}

// resolveSource picks the promotion source: an explicit second argument or
// the currently checked-out branch.
func resolveSource(cmd *cobra.Command, a *app, args []string) (tier.BranchRef, error) {
	if len(args) == 2 {
		return tier.ParseBranch(args[1])
	}
	current, err := a.reader.CurrentBranch()
	if err != nil {
		return tier.BranchRef{}, fmt.Errorf("reading current branch: %w", err)
	}
	if !current.Tier.Valid() {
		return tier.BranchRef{}, fmt.Errorf("current branch %q is not a pipeline branch; pass the source explicitly", current.Name)
	}
	return current, nil
}

// targetBranch maps a target tier onto a concrete branch: persistent tiers
// use their configured names, the release tier resolves to the single live
// release worktree.
func targetBranch(repo config.RepositoryConfig, worktrees []worktree.Worktree, target tier.Tier) (tier.BranchRef, error) {
	switch target {
	case tier.TierContrib:
		return tier.BranchRef{Name: repo.ContribBranch, Tier: target}, nil
	case tier.TierDevelop:
		return tier.BranchRef{Name: repo.DevelopBranch, Tier: target}, nil
	case tier.TierMain:
		return tier.BranchRef{Name: repo.MainBranch, Tier: target}, nil
	case tier.TierRelease:
		var releases []worktree.Worktree
		for _, wt := range worktrees {
			if wt.Branch.Tier == tier.TierRelease {
				releases = append(releases, wt)
			}
		}
		switch len(releases) {
		case 0:
			return tier.BranchRef{}, fmt.Errorf("no live release worktree; run: branchflow cut-release")
		case 1:
			return releases[0].Branch, nil
		default:
			names := make([]string, len(releases))
			for i, wt := range releases {
				names[i] = wt.Branch.Name
			}
			return tier.BranchRef{}, fmt.Errorf("multiple live release worktrees (%s); pass the source explicitly", strings.Join(names, ", "))
		}
	default:
		// Feature is never a promotion target; hand the pair to the
		// engine so the failure carries the standard transition error.
		return tier.BranchRef{Name: string(target), Tier: target}, nil
	}
}

// renderReport prints the full gate report, detail included for failures.
func renderReport(w io.Writer, report gates.Report) {
	for _, res := range report.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "[%s] %s\n", status, res.Gate)
		if !res.Passed && res.Detail != "" {
			for _, line := range strings.Split(strings.TrimRight(res.Detail, "\n"), "\n") {
				fmt.Fprintf(w, "       %s\n", line)
			}
		}
	}
	fmt.Fprintln(w, report.Summary())
}
