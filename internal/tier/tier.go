// Package tier defines the fixed five-tier branch pipeline and the
// naming grammar that binds branch refs to tiers.
package tier

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tier is one of the five fixed branch roles in the promotion pipeline.
type Tier string

const (
	// TierFeature holds in-progress work in an isolated worktree.
	TierFeature Tier = "feature"

	// TierContrib is the long-lived contributor integration branch.
	TierContrib Tier = "contrib"

	// TierDevelop is the long-lived development trunk.
	TierDevelop Tier = "develop"

	// TierRelease holds a release candidate in an isolated worktree.
	TierRelease Tier = "release"

	// TierMain is the long-lived production branch.
	TierMain Tier = "main"
)

// AllTiers returns the tiers in pipeline order.
func AllTiers() []Tier {
	return []Tier{TierFeature, TierContrib, TierDevelop, TierRelease, TierMain}
}

// Ephemeral reports whether branches of this tier are created and deleted
// within one pipeline traversal. Only feature and release branches are;
// contrib, develop and main are long-lived.
func (t Tier) Ephemeral() bool {
	return t == TierFeature || t == TierRelease
}

// Valid reports whether t is one of the five pipeline tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFeature, TierContrib, TierDevelop, TierRelease, TierMain:
		return true
	}
	return false
}

func (t Tier) String() string {
	return string(t)
}

// ParseTier converts a string into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q (want one of feature, contrib, develop, release, main)", s)
	}
	return t, nil
}

// BranchRef identifies a branch participating in the pipeline.
type BranchRef struct {
	// Name is the full branch name, e.g. "feature/20260829T101500_login-form"
	// or "develop".
	Name string

	// Tier is derived from the name prefix.
	Tier Tier

	// Upstream is the remote tracking ref, e.g. "origin/develop".
	// Empty when the branch has no upstream.
	Upstream string
}

// timestampLayout is the timestamp segment of ephemeral branch names.
// Branch names are persisted state, so this layout is load-bearing and
// must stay parseable by ParseBranch.
const timestampLayout = "20060102T150405"

// ErrMalformedBranchName indicates a branch name that does not follow the
// {tier}/{timestamp}_{slug} grammar for its tier prefix.
var ErrMalformedBranchName = errors.New("malformed branch name")

// EphemeralBranchName builds the branch name for a new feature or release
// branch: {tier}/{timestamp}_{slug}.
func EphemeralBranchName(t Tier, slug string, at time.Time) string {
	return fmt.Sprintf("%s/%s_%s", t, at.UTC().Format(timestampLayout), slug)
}

// ParseBranch classifies a branch name into a BranchRef.
//
// Names with a "feature/" or "release/" prefix must carry the
// {timestamp}_{slug} suffix; bare names map to their persistent tier when
// they match one ("contrib", "develop", "main"). Anything else is not part
// of the pipeline and returns ErrMalformedBranchName.
func ParseBranch(name string) (BranchRef, error) {
	if t := Tier(name); t.Valid() && !t.Ephemeral() {
		return BranchRef{Name: name, Tier: t}, nil
	}

	prefix, rest, ok := strings.Cut(name, "/")
	if !ok {
		return BranchRef{}, fmt.Errorf("%w: %q is not a pipeline branch", ErrMalformedBranchName, name)
	}
	t := Tier(prefix)
	if !t.Valid() || !t.Ephemeral() {
		return BranchRef{}, fmt.Errorf("%w: %q has no pipeline tier prefix", ErrMalformedBranchName, name)
	}

	stamp, slug, ok := strings.Cut(rest, "_")
	if !ok || slug == "" {
		return BranchRef{}, fmt.Errorf("%w: %q lacks a {timestamp}_{slug} suffix", ErrMalformedBranchName, name)
	}
	if _, err := time.Parse(timestampLayout, stamp); err != nil {
		return BranchRef{}, fmt.Errorf("%w: %q has a bad timestamp segment: %v", ErrMalformedBranchName, name, err)
	}

	return BranchRef{Name: name, Tier: t}, nil
}

// Slug extracts the slug segment from an ephemeral branch name. Returns ""
// for persistent-tier branches.
func (b BranchRef) Slug() string {
	if !b.Tier.Ephemeral() {
		return ""
	}
	_, rest, ok := strings.Cut(b.Name, "/")
	if !ok {
		return ""
	}
	_, slug, ok := strings.Cut(rest, "_")
	if !ok {
		return ""
	}
	return slug
}

// CreatedAt extracts the timestamp segment from an ephemeral branch name.
func (b BranchRef) CreatedAt() (time.Time, bool) {
	if !b.Tier.Ephemeral() {
		return time.Time{}, false
	}
	_, rest, ok := strings.Cut(b.Name, "/")
	if !ok {
		return time.Time{}, false
	}
	stamp, _, ok := strings.Cut(rest, "_")
	if !ok {
		return time.Time{}, false
	}
	at, err := time.Parse(timestampLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return at.UTC(), true
}
