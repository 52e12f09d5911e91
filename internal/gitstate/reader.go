// Package gitstate provides read-only queries over a git repository's
// working tree and refs. Every other component inspects git state through
// this package so git-state logic lives in exactly one place; nothing here
// mutates the repository.
package gitstate

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/fyrsmithlabs/branchflow/internal/tier"
)

var (
	// ErrNotARepository indicates the path is not inside a git repository.
	ErrNotARepository = errors.New("not a git repository")

	// ErrNoUpstream indicates the branch has no remote tracking ref.
	ErrNoUpstream = errors.New("branch has no upstream")

	// ErrDetachedHead indicates HEAD does not point at a branch.
	ErrDetachedHead = errors.New("detached HEAD")
)

// Reader answers read-only questions about one repository.
type Reader struct {
	repo   *git.Repository
	path   string
	remote string
}

// Open opens the repository at dir. remote names the tracking remote used
// for upstream queries, normally "origin".
func Open(dir, remote string) (*Reader, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotARepository, dir)
		}
		return nil, fmt.Errorf("opening repository at %s: %w", dir, err)
	}
	if remote == "" {
		remote = "origin"
	}
	return &Reader{repo: repo, path: dir, remote: remote}, nil
}

// Path returns the directory the reader was opened at.
func (r *Reader) Path() string {
	return r.path
}

// CurrentBranch returns the checked-out branch. The Tier field is zero when
// the branch does not follow the pipeline naming grammar.
func (r *Reader) CurrentBranch() (tier.BranchRef, error) {
	head, err := r.repo.Head()
	if err != nil {
		return tier.BranchRef{}, fmt.Errorf("reading HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return tier.BranchRef{}, ErrDetachedHead
	}
	name := head.Name().Short()

	ref, err := tier.ParseBranch(name)
	if err != nil {
		// Checked out on a branch outside the pipeline, still a valid answer.
		return tier.BranchRef{Name: name}, nil
	}
	ref.Upstream = r.remote + "/" + name
	return ref, nil
}

// IsClean reports whether no staged, unstaged, or untracked changes exist
// under scope (a slash-separated path relative to the repository root).
// An empty or "." scope covers the whole tree.
//
// Only valid for the primary checkout: go-git misreads a linked worktree's
// index, so worktree cleanliness goes through gitexec.StatusPorcelain.
func (r *Reader) IsClean(scope string) (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("opening worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("reading worktree status: %w", err)
	}

	scope = path.Clean(strings.TrimSuffix(scope, "/"))
	for file, st := range status {
		if !underScope(file, scope) {
			continue
		}
		if st.Staging != git.Unmodified || st.Worktree != git.Unmodified {
			return false, nil
		}
	}
	return true, nil
}

// underScope reports whether file is scope itself or lives beneath it.
func underScope(file, scope string) bool {
	if scope == "" || scope == "." {
		return true
	}
	return file == scope || strings.HasPrefix(file, scope+"/")
}

// AheadBehind counts commits on branch that are not on its remote tracking
// ref and vice versa, matching `git rev-list --left-right --count`.
// Fails with ErrNoUpstream when no tracking ref exists for the branch.
func (r *Reader) AheadBehind(branch string) (ahead, behind int, err error) {
	localRef, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return 0, 0, fmt.Errorf("resolving branch %s: %w", branch, err)
	}
	remoteRef, err := r.repo.Reference(plumbing.NewRemoteReferenceName(r.remote, branch), true)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s has no %s tracking ref", ErrNoUpstream, branch, r.remote)
	}

	if localRef.Hash() == remoteRef.Hash() {
		return 0, 0, nil
	}

	local, err := r.repo.CommitObject(localRef.Hash())
	if err != nil {
		return 0, 0, fmt.Errorf("reading commit %s: %w", localRef.Hash(), err)
	}
	remote, err := r.repo.CommitObject(remoteRef.Hash())
	if err != nil {
		return 0, 0, fmt.Errorf("reading commit %s: %w", remoteRef.Hash(), err)
	}

	bases, err := local.MergeBase(remote)
	if err != nil {
		return 0, 0, fmt.Errorf("computing merge base of %s and %s/%s: %w", branch, r.remote, branch, err)
	}
	stop := make([]plumbing.Hash, 0, len(bases))
	for _, b := range bases {
		stop = append(stop, b.Hash)
	}

	ahead, err = countExclusive(local, stop)
	if err != nil {
		return 0, 0, err
	}
	behind, err = countExclusive(remote, stop)
	if err != nil {
		return 0, 0, err
	}
	return ahead, behind, nil
}

// countExclusive counts commits reachable from tip, pruning the ignore
// hashes and their ancestry.
func countExclusive(tip *object.Commit, ignore []plumbing.Hash) (int, error) {
	n := 0
	iter := object.NewCommitPreorderIter(tip, nil, ignore)
	err := iter.ForEach(func(*object.Commit) error {
		n++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walking commits from %s: %w", tip.Hash, err)
	}
	return n, nil
}

// PathExists reports whether p exists in the working tree.
func (r *Reader) PathExists(p string) bool {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false
	}
	_, err = wt.Filesystem.Stat(p)
	return err == nil
}

// PathExistsOnBranch reports whether p exists in the committed tree of the
// named local branch.
func (r *Reader) PathExistsOnBranch(branch, p string) (bool, error) {
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return false, fmt.Errorf("resolving branch %s: %w", branch, err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return false, fmt.Errorf("reading commit %s: %w", ref.Hash(), err)
	}
	root, err := commit.Tree()
	if err != nil {
		return false, fmt.Errorf("reading tree of %s: %w", branch, err)
	}
	_, err = root.FindEntry(path.Clean(strings.TrimSuffix(p, "/")))
	if err != nil {
		if errors.Is(err, object.ErrEntryNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("looking up %s on %s: %w", p, branch, err)
	}
	return true, nil
}

// BranchExists reports whether a local branch ref exists.
func (r *Reader) BranchExists(branch string) bool {
	_, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	return err == nil
}

// RemoteBranchExists reports whether a tracking ref for branch exists on
// the reader's remote.
func (r *Reader) RemoteBranchExists(branch string) bool {
	_, err := r.repo.Reference(plumbing.NewRemoteReferenceName(r.remote, branch), true)
	return err == nil
}

// LocalBranches returns the names of all local branches.
func (r *Reader) LocalBranches() ([]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// LatestVersionTag returns the highest semver tag (with or without a "v"
// prefix) and its tag name. Returns a nil version when no semver tag exists.
//
// Every version tag counts, not only those already reachable from main: a
// release tag whose main merge is still pending must advance the next
// version, or two releases in flight would compute the same number.
func (r *Reader) LatestVersionTag() (*semver.Version, string, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, "", fmt.Errorf("listing tags: %w", err)
	}
	var (
		best     *semver.Version
		bestName string
	)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		v, perr := semver.NewVersion(strings.TrimPrefix(name, "v"))
		if perr != nil {
			return nil // not a version tag
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestName = name
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("listing tags: %w", err)
	}
	return best, bestName, nil
}

// CommitMessagesSince returns the messages of commits reachable from HEAD
// but not from tagName, newest first. With an empty tagName the entire
// history is returned.
func (r *Reader) CommitMessagesSince(tagName string) ([]string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("reading HEAD: %w", err)
	}
	tip, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", head.Hash(), err)
	}

	var ignore []plumbing.Hash
	if tagName != "" {
		hash, err := r.resolveTag(tagName)
		if err != nil {
			return nil, err
		}
		ignore = append(ignore, hash)
	}

	var messages []string
	iter := object.NewCommitPreorderIter(tip, nil, ignore)
	err = iter.ForEach(func(c *object.Commit) error {
		messages = append(messages, c.Message)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking commits since %s: %w", tagName, err)
	}
	return messages, nil
}

// resolveTag resolves a tag name to the commit it points at, following
// annotated tag objects.
func (r *Reader) resolveTag(name string) (plumbing.Hash, error) {
	ref, err := r.repo.Reference(plumbing.NewTagReferenceName(name), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolving tag %s: %w", name, err)
	}
	if tag, err := r.repo.TagObject(ref.Hash()); err == nil {
		commit, err := tag.Commit()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("resolving annotated tag %s: %w", name, err)
		}
		return commit.Hash, nil
	}
	return ref.Hash(), nil
}
