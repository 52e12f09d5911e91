package gates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/fyrsmithlabs/branchflow/internal/config"
)

// SyncManifest maps relative paths in one tree to their content digests.
type SyncManifest map[string]string

// BuildManifest digests every regular file under root. Paths are recorded
// slash-separated relative to root.
func BuildManifest(root string) (SyncManifest, error) {
	manifest := SyncManifest{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		digest, err := digestFile(p)
		if err != nil {
			return err
		}
		manifest[filepath.ToSlash(rel)] = digest
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("building manifest for %s: %w", root, err)
	}
	return manifest, nil
}

func digestFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digesting %s: %w", p, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SyncVerifier checks that a primary configuration tree and its mirror are
// byte-identical, modulo declared one-sided exceptions. It is the
// config-sync gate and by convention runs last in the standard set.
type SyncVerifier struct {
	primaryRoot string
	mirrorRoot  string
	primaryOnly gitignore.Matcher
	mirrorOnly  gitignore.Matcher
}

// NewSyncVerifier builds the gate from sync configuration. Roots are
// relative to the tree under evaluation.
func NewSyncVerifier(cfg config.SyncConfig) *SyncVerifier {
	return &SyncVerifier{
		primaryRoot: cfg.PrimaryRoot,
		mirrorRoot:  cfg.MirrorRoot,
		primaryOnly: newMatcher(cfg.PrimaryOnly),
		mirrorOnly:  newMatcher(cfg.MirrorOnly),
	}
}

// newMatcher compiles gitignore-style patterns.
func newMatcher(patterns []string) gitignore.Matcher {
	compiled := make([]gitignore.Pattern, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, gitignore.ParsePattern(p, nil))
	}
	return gitignore.NewMatcher(compiled)
}

// Name returns the gate identifier.
func (v *SyncVerifier) Name() string {
	return "config-sync"
}

// Evaluate compares the two manifests path by path. The failure detail
// lists every divergent path, grouped into missing, mismatched, and
// unexpected entries, so the operator sees the full remediation surface in
// one run.
func (v *SyncVerifier) Evaluate(_ context.Context, dir string) Result {
	primary, err := BuildManifest(filepath.Join(dir, v.primaryRoot))
	if err != nil {
		return Result{Gate: v.Name(), Passed: false, Detail: fmt.Sprintf("ExecutionError: %v", err)}
	}
	mirror, err := BuildManifest(filepath.Join(dir, v.mirrorRoot))
	if err != nil {
		return Result{Gate: v.Name(), Passed: false, Detail: fmt.Sprintf("ExecutionError: %v", err)}
	}

	var diffs []string
	for _, p := range sortedPaths(primary) {
		if v.matches(v.primaryOnly, p) {
			continue
		}
		mirrorDigest, ok := mirror[p]
		if !ok {
			diffs = append(diffs, "missing in mirror: "+p)
			continue
		}
		if mirrorDigest != primary[p] {
			diffs = append(diffs, "digest mismatch: "+p)
		}
	}
	for _, p := range sortedPaths(mirror) {
		if _, ok := primary[p]; ok {
			continue
		}
		if v.matches(v.mirrorOnly, p) {
			continue
		}
		diffs = append(diffs, "unexpected in mirror: "+p)
	}

	if len(diffs) > 0 {
		return Result{
			Gate:   v.Name(),
			Passed: false,
			Detail: fmt.Sprintf("%d path(s) out of sync:\n%s", len(diffs), strings.Join(diffs, "\n")),
		}
	}
	return Result{
		Gate:   v.Name(),
		Passed: true,
		Detail: fmt.Sprintf("%d path(s) verified", len(primary)),
	}
}

func (v *SyncVerifier) matches(m gitignore.Matcher, p string) bool {
	return m.Match(strings.Split(p, "/"), false)
}

func sortedPaths(m SyncManifest) []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
