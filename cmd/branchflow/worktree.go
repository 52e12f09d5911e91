package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/branchflow/internal/tier"
	"github.com/fyrsmithlabs/branchflow/internal/worktree"
)

var (
	createKind   string
	createBase   string
	destroyForce bool
)

var worktreeCmd = &cobra.Command{
	Use:   "worktree",
	Short: "Manage pipeline worktrees",
}

var worktreeCreateCmd = &cobra.Command{
	Use:   "create <slug>",
	Short: "Create a feature or release worktree",
	Long: `Create a new {tier}/{timestamp}_{slug} branch off its base branch and
bind a fresh worktree to it.

Feature worktrees require a committed planning directory for the slug on
the base branch.

Examples:
  # Start feature work planned under planning/login-form
  branchflow worktree create login-form

  # Cut a release candidate by hand
  branchflow worktree create --kind release v1.4.0`,
	Args: cobra.ExactArgs(1),
	RunE: runWorktreeCreate,
}

var worktreeDestroyCmd = &cobra.Command{
	Use:   "destroy <branch-or-slug>",
	Short: "Destroy a worktree and abandon its branch checkout",
	Long: `Remove a live worktree. Refuses when uncommitted changes exist unless
--force is given.

Examples:
  branchflow worktree destroy login-form
  branchflow worktree destroy feature/20260829T101500_login-form --force`,
	Args: cobra.ExactArgs(1),
	RunE: runWorktreeDestroy,
}

var worktreeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live pipeline worktrees",
	RunE:  runWorktreeList,
}

func init() {
	worktreeCreateCmd.Flags().StringVar(&createKind, "kind", "feature", "worktree kind: feature or release")
	worktreeCreateCmd.Flags().StringVar(&createBase, "base", "", "base branch (default: contrib for feature, develop for release)")
	worktreeDestroyCmd.Flags().BoolVar(&destroyForce, "force", false, "discard uncommitted changes")
	worktreeCmd.AddCommand(worktreeCreateCmd)
	worktreeCmd.AddCommand(worktreeDestroyCmd)
	worktreeCmd.AddCommand(worktreeListCmd)
}

func runWorktreeCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	kind, err := tier.ParseTier(createKind)
	if err != nil {
		return err
	}
	base := createBase
	if base == "" {
		base = a.cfg.Repository.ContribBranch
		if kind == tier.TierRelease {
			base = a.cfg.Repository.DevelopBranch
		}
	}

	wt, err := a.worktrees.Create(cmd.Context(), kind, args[0], base)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s\n", wt.Branch.Name)
	fmt.Printf("  path: %s\n", wt.Path)
	fmt.Printf("  base: %s\n", base)
	return nil
}

func runWorktreeDestroy(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	wt, err := findWorktree(cmd, a, args[0])
	if err != nil {
		return err
	}
	if err := a.worktrees.Destroy(cmd.Context(), wt, destroyForce); err != nil {
		return err
	}
	fmt.Printf("Destroyed %s\n", wt.Branch.Name)
	return nil
}

func runWorktreeList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	worktrees, err := a.worktrees.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(worktrees) == 0 {
		fmt.Println("No live pipeline worktrees.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BRANCH\tKIND\tCREATED\tPATH")
	for _, wt := range worktrees {
		created := ""
		if at, ok := wt.Branch.CreatedAt(); ok {
			created = at.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", wt.Branch.Name, wt.Branch.Tier, created, wt.Path)
	}
	return w.Flush()
}

// findWorktree resolves a worktree by full branch name or bare slug.
func findWorktree(cmd *cobra.Command, a *app, key string) (*worktree.Worktree, error) {
	worktrees, err := a.worktrees.List(cmd.Context())
	if err != nil {
		return nil, err
	}
	for i := range worktrees {
		if worktrees[i].Branch.Name == key || worktrees[i].Branch.Slug() == key {
			return &worktrees[i], nil
		}
	}
	return nil, fmt.Errorf("no live worktree matches %q; see: branchflow worktree list", key)
}
