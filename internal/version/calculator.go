// Package version derives the next release version from commit history.
//
// Commit messages are classified against the conventional-commit grammar:
// a "feat" type signals a minor bump, a "!" marker or BREAKING CHANGE
// footer signals a major bump, anything else signals a patch. The aggregate
// bump for a range is the highest severity found.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrNothingToRelease indicates no commits exist since the last tag.
var ErrNothingToRelease = errors.New("nothing to release: no commits since last tag")

// Bump is the severity of a version change.
type Bump int

const (
	BumpPatch Bump = iota
	BumpMinor
	BumpMajor
)

func (b Bump) String() string {
	switch b {
	case BumpMajor:
		return "major"
	case BumpMinor:
		return "minor"
	default:
		return "patch"
	}
}

// headerPattern matches a conventional-commit header: type, optional scope,
// optional breaking-change marker.
var headerPattern = regexp.MustCompile(`^([a-z]+)(\([^)]*\))?(!)?:\s`)

// Classify determines the bump severity a single commit message signals.
func Classify(message string) Bump {
	if strings.Contains(message, "BREAKING CHANGE:") || strings.Contains(message, "BREAKING-CHANGE:") {
		return BumpMajor
	}

	header, _, _ := strings.Cut(message, "\n")
	m := headerPattern.FindStringSubmatch(header)
	if m == nil {
		return BumpPatch
	}
	if m[3] == "!" {
		return BumpMajor
	}
	if m[1] == "feat" {
		return BumpMinor
	}
	return BumpPatch
}

// Aggregate returns the highest-severity bump across all messages.
func Aggregate(messages []string) Bump {
	highest := BumpPatch
	for _, msg := range messages {
		if b := Classify(msg); b > highest {
			highest = b
		}
		if highest == BumpMajor {
			break
		}
	}
	return highest
}

// Next computes the version after lastTag given the commit messages since
// it. A nil lastTag means the repository has never been released and counts
// as 0.0.0. Fails with ErrNothingToRelease on an empty commit range.
//
// The result always compares strictly greater than lastTag: a major bump
// resets minor and patch, a minor bump resets patch.
func Next(lastTag *semver.Version, messages []string) (*semver.Version, error) {
	if len(messages) == 0 {
		return nil, ErrNothingToRelease
	}
	base := lastTag
	if base == nil {
		base = semver.New(0, 0, 0, "", "")
	}

	var next semver.Version
	switch Aggregate(messages) {
	case BumpMajor:
		next = base.IncMajor()
	case BumpMinor:
		next = base.IncMinor()
	default:
		next = base.IncPatch()
	}
	return &next, nil
}

// TagName renders a version as its tag, e.g. "v1.2.3".
func TagName(v *semver.Version) string {
	return "v" + v.String()
}

// ParseExplicit parses an operator-supplied version override and enforces
// monotonicity against lastTag.
func ParseExplicit(raw string, lastTag *semver.Version) (*semver.Version, error) {
	v, err := semver.NewVersion(strings.TrimPrefix(raw, "v"))
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	if lastTag != nil && !v.GreaterThan(lastTag) {
		return nil, fmt.Errorf("version %s does not advance past last tag %s", v, lastTag)
	}
	return v, nil
}
