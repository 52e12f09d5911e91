// Package worktree creates and tears down the isolated worktrees that hold
// feature and release work.
//
// Creation is gated by an ordered precondition chain; only after every
// precondition holds does the manager touch the repository, and the branch
// and worktree are created by a single git invocation so a failure leaves
// refs and filesystem unchanged.
package worktree

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/branchflow/internal/config"
	"github.com/fyrsmithlabs/branchflow/internal/gitexec"
	"github.com/fyrsmithlabs/branchflow/internal/gitstate"
	"github.com/fyrsmithlabs/branchflow/internal/logging"
	"github.com/fyrsmithlabs/branchflow/internal/tier"
)

var (
	// ErrMissingPlanningArtifact indicates the slug has no planning
	// directory committed on the base branch.
	ErrMissingPlanningArtifact = errors.New("missing planning artifact")

	// ErrUncommittedPlanningChanges indicates staged or unstaged edits
	// under the slug's planning directory.
	ErrUncommittedPlanningChanges = errors.New("uncommitted planning changes")

	// ErrUnpushedChanges indicates local commits on the base branch not
	// yet on its upstream.
	ErrUnpushedChanges = errors.New("unpushed changes on base branch")

	// ErrWorktreeExists indicates a live worktree already serves the slug.
	ErrWorktreeExists = errors.New("worktree already exists for slug")

	// ErrWorktreeHasUncommittedChanges blocks non-forced destruction.
	ErrWorktreeHasUncommittedChanges = errors.New("worktree has uncommitted changes")

	// ErrInvalidKind indicates a tier that cannot own a worktree.
	ErrInvalidKind = errors.New("worktrees are only created for feature and release tiers")
)

// Worktree is one isolated checkout bound 1:1 to an ephemeral branch.
type Worktree struct {
	// Path is the filesystem location of the checkout.
	Path string

	// Branch is the ephemeral branch the worktree is bound to.
	Branch tier.BranchRef
}

// Manager creates, lists and destroys worktrees.
type Manager struct {
	reader *gitstate.Reader
	git    *gitexec.Runner
	repo   config.RepositoryConfig
	root   string
	log    *logging.Logger

	// now is swappable in tests so branch names are deterministic.
	now func() time.Time
}

// NewManager builds a manager over the repository the reader is opened at.
func NewManager(reader *gitstate.Reader, git *gitexec.Runner, repo config.RepositoryConfig, worktrees config.WorktreesConfig, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	root := worktrees.Root
	if !filepath.IsAbs(root) {
		root = filepath.Join(reader.Path(), root)
	}
	return &Manager{
		reader: reader,
		git:    git,
		repo:   repo,
		root:   root,
		log:    log.Named("worktree"),
		now:    time.Now,
	}
}

// Create makes a new {kind}/{timestamp}_{slug} branch off base and binds a
// fresh worktree to it.
//
// Preconditions, checked in order before any mutation:
//  1. feature kind only: the slug's planning directory exists on base
//  2. the planning directory carries no uncommitted changes
//  3. base has no commits its upstream lacks
//
// A slug that already owns a live worktree of the same kind is rejected
// rather than silently duplicated.
func (m *Manager) Create(ctx context.Context, kind tier.Tier, slug, base string) (*Worktree, error) {
	if !kind.Ephemeral() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidKind, kind)
	}
	if slug == "" || strings.ContainsAny(slug, "/ ") {
		return nil, fmt.Errorf("invalid slug %q: must be non-empty without slashes or spaces", slug)
	}

	planningDir := path.Join(m.repo.PlanningRoot, slug)

	if kind == tier.TierFeature {
		exists, err := m.reader.PathExistsOnBranch(base, planningDir)
		if err != nil {
			return nil, fmt.Errorf("checking planning artifact: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s not found on %s; commit a planning directory first (git add %s && git commit)",
				ErrMissingPlanningArtifact, planningDir, base, planningDir)
		}
	}

	clean, err := m.reader.IsClean(planningDir)
	if err != nil {
		return nil, fmt.Errorf("checking planning directory state: %w", err)
	}
	if !clean {
		return nil, fmt.Errorf("%w: commit or stash edits under %s before creating a worktree",
			ErrUncommittedPlanningChanges, planningDir)
	}

	ahead, _, err := m.reader.AheadBehind(base)
	if err != nil {
		return nil, fmt.Errorf("checking %s against upstream: %w", base, err)
	}
	if ahead != 0 {
		return nil, fmt.Errorf("%w: %s is %d commit(s) ahead of %s/%s; run: git push %s %s",
			ErrUnpushedChanges, base, ahead, m.repo.Remote, base, m.repo.Remote, base)
	}

	if existing, err := m.findBySlug(ctx, kind, slug); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: %s at %s; finish or abandon it first", ErrWorktreeExists, existing.Branch.Name, existing.Path)
	}

	branch := tier.EphemeralBranchName(kind, slug, m.now())
	wtPath := filepath.Join(m.root, strings.ReplaceAll(branch, "/", "_"))

	if err := m.git.WorktreeAddNewBranch(ctx, wtPath, branch, base); err != nil {
		return nil, fmt.Errorf("creating worktree for %s: %w", branch, err)
	}

	ref, err := tier.ParseBranch(branch)
	if err != nil {
		// The name was produced by EphemeralBranchName, so this cannot
		// happen short of a grammar bug.
		return nil, fmt.Errorf("parsing created branch %s: %w", branch, err)
	}
	m.log.Info(ctx, "worktree created",
		zap.String("branch", branch),
		zap.String("path", wtPath),
	)
	return &Worktree{Path: wtPath, Branch: ref}, nil
}

// Destroy removes the worktree's checkout. Without force it refuses when
// uncommitted changes exist; force is reserved for an explicit operator
// abandon decision and is never set by the promotion engine.
func (m *Manager) Destroy(ctx context.Context, wt *Worktree, force bool) error {
	if !force {
		// Cleanliness of a linked worktree must come from the git CLI;
		// go-git misreads a linked worktree's index and reports committed
		// files as staged.
		status, err := gitexec.New(wt.Path).StatusPorcelain(ctx)
		if err != nil {
			return fmt.Errorf("checking worktree state: %w", err)
		}
		if status != "" {
			return fmt.Errorf("%w: %s; commit, stash, or destroy with --force to abandon", ErrWorktreeHasUncommittedChanges, wt.Path)
		}
	}

	if err := m.git.WorktreeRemove(ctx, wt.Path, force); err != nil {
		return fmt.Errorf("removing worktree %s: %w", wt.Path, err)
	}
	m.log.Info(ctx, "worktree removed",
		zap.String("branch", wt.Branch.Name),
		zap.String("path", wt.Path),
		zap.Bool("forced", force),
	)
	return nil
}

// List enumerates live pipeline worktrees, derived fresh from git state
// rather than any private store.
func (m *Manager) List(ctx context.Context) ([]Worktree, error) {
	out, err := m.git.WorktreeListPorcelain(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing worktrees: %w", err)
	}
	return parseWorktreeList(out), nil
}

// findBySlug returns the live worktree of the given kind and slug, if any.
func (m *Manager) findBySlug(ctx context.Context, kind tier.Tier, slug string) (*Worktree, error) {
	worktrees, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, wt := range worktrees {
		if wt.Branch.Tier == kind && wt.Branch.Slug() == slug {
			return &wt, nil
		}
	}
	return nil, nil
}

// parseWorktreeList extracts pipeline worktrees from
// `git worktree list --porcelain` output. Entries whose branch does not
// follow the ephemeral naming grammar are not part of the pipeline and are
// dropped.
func parseWorktreeList(out string) []Worktree {
	var (
		result  []Worktree
		current string
	)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "worktree "):
			current = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "branch refs/heads/"):
			name := strings.TrimPrefix(line, "branch refs/heads/")
			ref, err := tier.ParseBranch(name)
			if err != nil || !ref.Tier.Ephemeral() {
				continue
			}
			result = append(result, Worktree{Path: current, Branch: ref})
		}
	}
	return result
}
