// Package promotion sequences worktree state, quality gates, and hosting
// calls to move work along the fixed branch pipeline.
//
// The engine holds no private state between invocations: branch names and
// tags are the persisted state, and every precondition is read fresh from
// git refs immediately before the mutating step it protects. Failure at
// any step leaves existing branches and tags untouched; the only branch
// deletion happens in the terminal archive step after a confirmed merge.
package promotion

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/branchflow/internal/config"
	"github.com/fyrsmithlabs/branchflow/internal/gates"
	"github.com/fyrsmithlabs/branchflow/internal/gitexec"
	"github.com/fyrsmithlabs/branchflow/internal/gitstate"
	"github.com/fyrsmithlabs/branchflow/internal/hosting"
	"github.com/fyrsmithlabs/branchflow/internal/logging"
	"github.com/fyrsmithlabs/branchflow/internal/tier"
	"github.com/fyrsmithlabs/branchflow/internal/version"
	"github.com/fyrsmithlabs/branchflow/internal/worktree"
)

// Request asks for one promotion along the pipeline. It lives for a single
// Promote call and is never persisted.
type Request struct {
	Source tier.BranchRef
	Target tier.BranchRef
}

// Outcome reports what a successful Promote did.
type Outcome struct {
	// MergeRequest is the request opened (or re-attached to) at the
	// hosting provider.
	MergeRequest hosting.RequestID

	// Report is the full gate report for the attempt.
	Report gates.Report

	// Version is the pending release version, set only for release-target
	// promotions; its tag is applied after the merge confirms.
	Version *semver.Version

	// Archived reports whether the ephemeral source worktree and branch
	// were retired after the merge.
	Archived bool
}

// Engine is the branch promotion state machine.
type Engine struct {
	reader    *gitstate.Reader
	git       *gitexec.Runner
	runner    *gates.Runner
	gateSet   []gates.Gate
	provider  hosting.Provider
	worktrees *worktree.Manager
	cfg       *config.Config
	log       *logging.Logger
}

// NewEngine wires the engine's collaborators. The reader and git runner are
// rooted at the primary checkout; ephemeral sources are located through
// their worktrees.
func NewEngine(
	reader *gitstate.Reader,
	git *gitexec.Runner,
	runner *gates.Runner,
	gateSet []gates.Gate,
	provider hosting.Provider,
	worktrees *worktree.Manager,
	cfg *config.Config,
	log *logging.Logger,
) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		reader:    reader,
		git:       git,
		runner:    runner,
		gateSet:   gateSet,
		provider:  provider,
		worktrees: worktrees,
		cfg:       cfg,
		log:       log.Named("promotion"),
	}
}

// Promote runs one promotion end to end: transition validation, source
// readiness, the full gate set, merge-request creation, merge wait, and
// the terminal archive or backmerge step.
func (e *Engine) Promote(ctx context.Context, req Request) (*Outcome, error) {
	if err := e.validate(req); err != nil {
		return nil, err
	}
	e.log.Info(ctx, "promotion started",
		zap.String("source", req.Source.Name),
		zap.String("target", req.Target.Name),
	)

	sourceDir, wt, err := e.resolveSourceDir(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := e.checkSourceReady(ctx, req, sourceDir); err != nil {
		return nil, err
	}

	report := e.runner.Run(ctx, e.gateSet, sourceDir)
	if !report.AllPassed() {
		return nil, &GatesFailedError{Report: report}
	}

	outcome := &Outcome{Report: report}

	if req.Target.Tier == tier.TierRelease {
		pending, err := e.pendingVersion()
		if err != nil {
			return nil, err
		}
		outcome.Version = pending
		e.log.Info(ctx, "pending release version computed", zap.String("version", pending.String()))
	}

	// Re-check optimistically held preconditions right before the first
	// remote mutation; an outside change surfaces here as a failure, not
	// as a race inside the engine.
	if err := e.checkSourceReady(ctx, req, sourceDir); err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Promote %s to %s", req.Source.Name, req.Target.Name)
	id, err := hosting.EnsureMergeRequest(ctx, e.provider, req.Source.Name, req.Target.Name, title, report.Summary())
	if err != nil {
		return nil, err
	}
	outcome.MergeRequest = id
	e.log.Info(ctx, "merge request ready", zap.Int("number", id.Number), zap.String("url", id.URL))

	err = hosting.WaitForMerge(ctx, e.provider, id,
		e.cfg.Hosting.PollInterval.Duration(),
		e.cfg.Hosting.MergeTimeout.Duration(),
	)
	if err != nil {
		return outcome, err
	}
	e.log.Info(ctx, "merge confirmed", zap.Int("number", id.Number))

	if outcome.Version != nil {
		if err := e.applyPendingTag(ctx, req.Target.Name, outcome.Version); err != nil {
			return outcome, err
		}
	}

	if tier.IsBackmerge(req.Source.Tier, req.Target.Tier) {
		if err := e.backmerge(ctx, req, wt); err != nil {
			return outcome, err
		}
		outcome.Archived = true
		return outcome, nil
	}

	if req.Source.Tier.Ephemeral() {
		if err := e.archive(ctx, req.Source, wt); err != nil {
			return outcome, err
		}
		outcome.Archived = true
	}
	return outcome, nil
}

// validate rejects anything but the five legal transitions before any
// side effect.
func (e *Engine) validate(req Request) error {
	if !req.Source.Tier.Valid() || !req.Target.Tier.Valid() {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, req.Source.Tier, req.Target.Tier)
	}
	if !tier.LegalTransition(req.Source.Tier, req.Target.Tier) {
		return fmt.Errorf("%w: %s -> %s is not in the pipeline", ErrInvalidTransition, req.Source.Tier, req.Target.Tier)
	}
	return nil
}

// resolveSourceDir locates the working tree the source branch lives in.
// Ephemeral sources live in their worktree; persistent sources are the
// primary checkout, which must actually be on the source branch.
func (e *Engine) resolveSourceDir(ctx context.Context, req Request) (string, *worktree.Worktree, error) {
	if req.Source.Tier.Ephemeral() {
		worktrees, err := e.worktrees.List(ctx)
		if err != nil {
			return "", nil, err
		}
		for i := range worktrees {
			if worktrees[i].Branch.Name == req.Source.Name {
				return worktrees[i].Path, &worktrees[i], nil
			}
		}
		return "", nil, fmt.Errorf("%w: no live worktree for %s", ErrSourceNotReady, req.Source.Name)
	}

	current, err := e.reader.CurrentBranch()
	if err != nil {
		return "", nil, fmt.Errorf("reading current branch: %w", err)
	}
	if current.Name != req.Source.Name {
		return "", nil, fmt.Errorf("%w: %s is not checked out (currently on %s); run: git checkout %s",
			ErrSourceNotReady, req.Source.Name, current.Name, req.Source.Name)
	}
	return e.reader.Path(), nil, nil
}

// checkSourceReady verifies the target exists remotely and the source tree
// is clean and fully pushed. Linked worktrees are checked through the git
// CLI because go-git misreads their index.
func (e *Engine) checkSourceReady(ctx context.Context, req Request, sourceDir string) error {
	if !e.reader.RemoteBranchExists(req.Target.Name) {
		return fmt.Errorf("%w: target %s does not exist on %s; run: git push %s %s",
			ErrSourceNotReady, req.Target.Name, e.cfg.Repository.Remote, e.cfg.Repository.Remote, req.Target.Name)
	}

	var (
		clean bool
		err   error
	)
	if sourceDir == e.reader.Path() {
		clean, err = e.reader.IsClean("")
	} else {
		var status string
		status, err = gitexec.New(sourceDir).StatusPorcelain(ctx)
		clean = status == ""
	}
	if err != nil {
		return fmt.Errorf("checking source tree: %w", err)
	}
	if !clean {
		return fmt.Errorf("%w: uncommitted changes on %s; commit or stash them first", ErrSourceNotReady, req.Source.Name)
	}

	ahead, _, err := e.reader.AheadBehind(req.Source.Name)
	if err != nil {
		return fmt.Errorf("checking %s against upstream: %w", req.Source.Name, err)
	}
	if ahead != 0 {
		return fmt.Errorf("%w: %s is %d commit(s) ahead of its upstream; run: git push %s %s",
			ErrSourceNotReady, req.Source.Name, ahead, e.cfg.Repository.Remote, req.Source.Name)
	}
	return nil
}

// pendingVersion derives the next release version from commits since the
// last version tag.
func (e *Engine) pendingVersion() (*semver.Version, error) {
	last, lastName, err := e.reader.LatestVersionTag()
	if err != nil {
		return nil, fmt.Errorf("finding last version tag: %w", err)
	}
	messages, err := e.reader.CommitMessagesSince(lastName)
	if err != nil {
		return nil, fmt.Errorf("collecting commits since %s: %w", lastName, err)
	}
	return version.Next(last, messages)
}

// applyPendingTag tags the freshly merged target head and pushes the tag.
// Tagging is never speculative; this runs only after the merge confirmed.
func (e *Engine) applyPendingTag(ctx context.Context, target string, v *semver.Version) error {
	remote := e.cfg.Repository.Remote
	if err := e.git.Fetch(ctx, remote); err != nil {
		return fmt.Errorf("fetching %s before tagging: %w", remote, err)
	}
	tag := version.TagName(v)
	ref := fmt.Sprintf("refs/remotes/%s/%s", remote, target)
	if err := e.git.Tag(ctx, tag, ref, fmt.Sprintf("Release %s", v)); err != nil {
		return fmt.Errorf("creating tag %s: %w", tag, err)
	}
	if err := e.git.Push(ctx, remote, tag); err != nil {
		return fmt.Errorf("pushing tag %s: %w", tag, err)
	}
	e.log.Info(ctx, "release tagged", zap.String("tag", tag))
	return nil
}

// archive retires an ephemeral source after its merge: the worktree is
// removed and the branch deleted locally and remotely. This is the only
// place the engine deletes a branch.
func (e *Engine) archive(ctx context.Context, source tier.BranchRef, wt *worktree.Worktree) error {
	if wt != nil {
		if err := e.worktrees.Destroy(ctx, wt, false); err != nil {
			return err
		}
	}
	if err := e.git.DeleteBranch(ctx, source.Name, true); err != nil {
		return fmt.Errorf("deleting local branch %s: %w", source.Name, err)
	}
	remote := e.cfg.Repository.Remote
	if err := e.git.DeleteRemoteBranch(ctx, remote, source.Name); err != nil {
		return fmt.Errorf("deleting remote branch %s: %w", source.Name, err)
	}
	e.log.Info(ctx, "source archived", zap.String("branch", source.Name))
	return nil
}

// backmerge finishes a release→develop promotion: the contrib branch is
// rebased onto the new develop head, then the release branch is retired.
// This is the sole transition with two target mutations.
func (e *Engine) backmerge(ctx context.Context, req Request, wt *worktree.Worktree) error {
	remote := e.cfg.Repository.Remote
	contrib := e.cfg.Repository.ContribBranch

	if err := e.git.Fetch(ctx, remote); err != nil {
		return fmt.Errorf("fetching %s after backmerge: %w", remote, err)
	}
	if err := e.git.Checkout(ctx, contrib); err != nil {
		return fmt.Errorf("checking out %s: %w", contrib, err)
	}
	if err := e.git.Rebase(ctx, fmt.Sprintf("%s/%s", remote, req.Target.Name)); err != nil {
		return fmt.Errorf("rebasing %s onto %s/%s: %w", contrib, remote, req.Target.Name, err)
	}
	if err := e.git.ForcePushWithLease(ctx, remote, contrib); err != nil {
		return fmt.Errorf("pushing rebased %s: %w", contrib, err)
	}
	e.log.Info(ctx, "contrib rebased onto new develop head",
		zap.String("contrib", contrib),
		zap.String("develop", req.Target.Name),
	)

	return e.archive(ctx, req.Source, wt)
}
