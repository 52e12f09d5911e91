// Package gittest builds throwaway git repositories for tests.
package gittest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Repo wraps a temp-dir repository with commit/branch helpers. All helpers
// fail the test on error.
type Repo struct {
	T    *testing.T
	Dir  string
	Repo *git.Repository

	clock time.Time
}

// Init creates a repository in t.TempDir() with the given default branch.
func Init(t *testing.T, defaultBranch string) *Repo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(defaultBranch),
		},
	})
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	return &Repo{
		T:     t,
		Dir:   dir,
		Repo:  repo,
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// WriteFile writes content at rel under the working tree.
func (r *Repo) WriteFile(rel, content string) {
	r.T.Helper()
	full := filepath.Join(r.Dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		r.T.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		r.T.Fatalf("write %s: %v", rel, err)
	}
}

// Commit writes files, stages everything, and commits with msg. Each call
// advances a fixed clock by one minute so commit times stay ordered.
func (r *Repo) Commit(msg string, files map[string]string) plumbing.Hash {
	r.T.Helper()
	for rel, content := range files {
		r.WriteFile(rel, content)
	}
	wt, err := r.Repo.Worktree()
	if err != nil {
		r.T.Fatalf("worktree: %v", err)
	}
	if err := wt.AddGlob("."); err != nil {
		r.T.Fatalf("add: %v", err)
	}
	r.clock = r.clock.Add(time.Minute)
	sig := &object.Signature{Name: "test", Email: "test@example.com", When: r.clock}
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: true,
	})
	if err != nil {
		r.T.Fatalf("commit %q: %v", msg, err)
	}
	return hash
}

// Head returns the current HEAD commit hash.
func (r *Repo) Head() plumbing.Hash {
	r.T.Helper()
	head, err := r.Repo.Head()
	if err != nil {
		r.T.Fatalf("head: %v", err)
	}
	return head.Hash()
}

// CreateBranch creates a local branch ref pointing at hash.
func (r *Repo) CreateBranch(name string, at plumbing.Hash) {
	r.T.Helper()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), at)
	if err := r.Repo.Storer.SetReference(ref); err != nil {
		r.T.Fatalf("create branch %s: %v", name, err)
	}
}

// Checkout switches the working tree to the named branch.
func (r *Repo) Checkout(name string) {
	r.T.Helper()
	wt, err := r.Repo.Worktree()
	if err != nil {
		r.T.Fatalf("worktree: %v", err)
	}
	err = wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(name)})
	if err != nil {
		r.T.Fatalf("checkout %s: %v", name, err)
	}
}

// SetRemoteRef fakes a remote tracking ref (refs/remotes/{remote}/{branch})
// pointing at hash, without any network.
func (r *Repo) SetRemoteRef(remote, branch string, at plumbing.Hash) {
	r.T.Helper()
	ref := plumbing.NewHashReference(plumbing.NewRemoteReferenceName(remote, branch), at)
	if err := r.Repo.Storer.SetReference(ref); err != nil {
		r.T.Fatalf("set remote ref %s/%s: %v", remote, branch, err)
	}
}

// Tag creates a lightweight tag at hash.
func (r *Repo) Tag(name string, at plumbing.Hash) {
	r.T.Helper()
	ref := plumbing.NewHashReference(plumbing.NewTagReferenceName(name), at)
	if err := r.Repo.Storer.SetReference(ref); err != nil {
		r.T.Fatalf("tag %s: %v", name, err)
	}
}
