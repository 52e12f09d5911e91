package main

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/branchflow/internal/tier"
	"github.com/fyrsmithlabs/branchflow/internal/version"
)

var releaseVersion string

var cutReleaseCmd = &cobra.Command{
	Use:   "cut-release",
	Short: "Open a release worktree for the next version",
	Long: `Compute the next version from conventional commits since the last
version tag and create a release worktree off develop for it. The tag
itself is applied only after the release merges.

Examples:
  branchflow cut-release
  branchflow cut-release --version 2.0.0`,
	Args: cobra.NoArgs,
	RunE: runCutRelease,
}

func init() {
	cutReleaseCmd.Flags().StringVar(&releaseVersion, "version", "", "explicit version override (must exceed the last tag)")
}

func runCutRelease(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	last, lastName, err := a.reader.LatestVersionTag()
	if err != nil {
		return err
	}

	var next *semver.Version
	if releaseVersion != "" {
		next, err = version.ParseExplicit(releaseVersion, last)
	} else {
		var messages []string
		messages, err = a.reader.CommitMessagesSince(lastName)
		if err != nil {
			return err
		}
		next, err = version.Next(last, messages)
	}
	if err != nil {
		return err
	}

	wt, err := a.worktrees.Create(cmd.Context(), tier.TierRelease, "v"+next.String(), a.cfg.Repository.DevelopBranch)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", version.TagName(next))
	fmt.Printf("  branch: %s\n", wt.Branch.Name)
	fmt.Printf("  path: %s\n", wt.Path)
	return nil
}
