// Package gitexec invokes the git CLI for the handful of operations go-git
// does not implement: linked worktree add/remove, rebase, and remote ref
// pushes/deletions. Every shell-out in the repository goes through Run so
// git invocation stays in one place.
package gitexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes git commands in a fixed repository directory.
type Runner struct {
	dir string
}

// New returns a Runner operating on the repository at dir.
func New(dir string) *Runner {
	return &Runner{dir: dir}
}

// Dir returns the repository directory the runner operates on.
func (r *Runner) Dir() string {
	return r.dir
}

// Run executes `git args...` and returns trimmed stdout. Stderr is folded
// into the returned error on failure.
func (r *Runner) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// StatusPorcelain returns `git status --porcelain` output for the runner's
// directory; empty output means a clean tree, untracked files included.
// This is the cleanliness source of truth for linked worktrees, whose index
// go-git cannot read correctly.
func (r *Runner) StatusPorcelain(ctx context.Context) (string, error) {
	return r.Run(ctx, "status", "--porcelain")
}

// WorktreeAddNewBranch creates branch off base and a linked worktree at
// path checked out to it, in one git invocation so a failure leaves no
// stray branch behind.
func (r *Runner) WorktreeAddNewBranch(ctx context.Context, path, branch, base string) error {
	_, err := r.Run(ctx, "worktree", "add", "-b", branch, path, base)
	return err
}

// WorktreeListPorcelain returns `git worktree list --porcelain` output.
func (r *Runner) WorktreeListPorcelain(ctx context.Context) (string, error) {
	return r.Run(ctx, "worktree", "list", "--porcelain")
}

// WorktreeRemove removes the linked worktree at path. With force, uncommitted
// changes in the worktree are discarded.
func (r *Runner) WorktreeRemove(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := r.Run(ctx, args...)
	return err
}

// Rebase rebases the currently checked-out branch onto upstream.
func (r *Runner) Rebase(ctx context.Context, upstream string) error {
	_, err := r.Run(ctx, "rebase", upstream)
	return err
}

// Checkout switches the working tree to branch.
func (r *Runner) Checkout(ctx context.Context, branch string) error {
	_, err := r.Run(ctx, "checkout", branch)
	return err
}

// DeleteBranch deletes a local branch ref.
func (r *Runner) DeleteBranch(ctx context.Context, branch string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := r.Run(ctx, "branch", flag, branch)
	return err
}

// Fetch updates remote tracking refs from the named remote.
func (r *Runner) Fetch(ctx context.Context, remote string) error {
	_, err := r.Run(ctx, "fetch", remote)
	return err
}

// Tag creates an annotated tag pointing at ref.
func (r *Runner) Tag(ctx context.Context, name, ref, message string) error {
	_, err := r.Run(ctx, "tag", "-a", name, ref, "-m", message)
	return err
}

// ForcePushWithLease force-pushes branch to the named remote, refusing to
// clobber work the local repository has not seen.
func (r *Runner) ForcePushWithLease(ctx context.Context, remote, branch string) error {
	_, err := r.Run(ctx, "push", "--force-with-lease", remote, branch)
	return err
}

// Push pushes a ref (branch or tag) to the named remote.
func (r *Runner) Push(ctx context.Context, remote, ref string) error {
	_, err := r.Run(ctx, "push", remote, ref)
	return err
}

// DeleteRemoteBranch deletes a branch ref on the named remote.
func (r *Runner) DeleteRemoteBranch(ctx context.Context, remote, branch string) error {
	_, err := r.Run(ctx, "push", remote, "--delete", branch)
	return err
}
