package gitstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/branchflow/internal/gittest"
	"github.com/fyrsmithlabs/branchflow/internal/tier"
)

func TestOpen_NotARepository(t *testing.T) {
	_, err := Open(t.TempDir(), "origin")
	assert.ErrorIs(t, err, ErrNotARepository)
}

func TestCurrentBranch(t *testing.T) {
	repo := gittest.Init(t, "develop")
	repo.Commit("initial", map[string]string{"README.md": "hi"})

	r, err := Open(repo.Dir, "origin")
	require.NoError(t, err)

	ref, err := r.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "develop", ref.Name)
	assert.Equal(t, tier.TierDevelop, ref.Tier)
	assert.Equal(t, "origin/develop", ref.Upstream)
}

func TestCurrentBranch_OutsidePipeline(t *testing.T) {
	repo := gittest.Init(t, "scratch")
	repo.Commit("initial", map[string]string{"README.md": "hi"})

	r, err := Open(repo.Dir, "origin")
	require.NoError(t, err)

	ref, err := r.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "scratch", ref.Name)
	assert.Empty(t, ref.Tier)
}

func TestIsClean_ScopedToPath(t *testing.T) {
	repo := gittest.Init(t, "contrib")
	repo.Commit("initial", map[string]string{
		"planning/foo/plan.md": "plan",
		"src/main.go":          "package main",
	})

	r, err := Open(repo.Dir, "origin")
	require.NoError(t, err)

	clean, err := r.IsClean("planning/foo")
	require.NoError(t, err)
	assert.True(t, clean)

	// Dirty a file outside the scope: scope stays clean, tree does not.
	repo.WriteFile("src/main.go", "package main // changed")

	clean, err = r.IsClean("planning/foo")
	require.NoError(t, err)
	assert.True(t, clean)

	clean, err = r.IsClean("")
	require.NoError(t, err)
	assert.False(t, clean)

	// Dirty the scope itself.
	repo.WriteFile("planning/foo/plan.md", "changed")
	clean, err = r.IsClean("planning/foo")
	require.NoError(t, err)
	assert.False(t, clean)
}

func TestIsClean_UntrackedCounts(t *testing.T) {
	repo := gittest.Init(t, "contrib")
	repo.Commit("initial", map[string]string{"planning/foo/plan.md": "plan"})

	r, err := Open(repo.Dir, "origin")
	require.NoError(t, err)

	repo.WriteFile("planning/foo/notes.md", "untracked")
	clean, err := r.IsClean("planning/foo")
	require.NoError(t, err)
	assert.False(t, clean)
}

func TestAheadBehind(t *testing.T) {
	repo := gittest.Init(t, "develop")
	base := repo.Commit("base", map[string]string{"a.txt": "a"})

	t.Run("no upstream", func(t *testing.T) {
		r, err := Open(repo.Dir, "origin")
		require.NoError(t, err)
		_, _, err = r.AheadBehind("develop")
		assert.ErrorIs(t, err, ErrNoUpstream)
	})

	t.Run("in sync", func(t *testing.T) {
		repo.SetRemoteRef("origin", "develop", base)
		r, err := Open(repo.Dir, "origin")
		require.NoError(t, err)
		ahead, behind, err := r.AheadBehind("develop")
		require.NoError(t, err)
		assert.Zero(t, ahead)
		assert.Zero(t, behind)
	})

	t.Run("ahead", func(t *testing.T) {
		repo.Commit("local one", map[string]string{"b.txt": "b"})
		repo.Commit("local two", map[string]string{"c.txt": "c"})
		r, err := Open(repo.Dir, "origin")
		require.NoError(t, err)
		ahead, behind, err := r.AheadBehind("develop")
		require.NoError(t, err)
		assert.Equal(t, 2, ahead)
		assert.Zero(t, behind)
	})

	t.Run("diverged", func(t *testing.T) {
		// Remote tracks develop's tip (base + 2 commits); the local branch
		// forks from base with one commit of its own.
		developTip := repo.Head()
		repo.CreateBranch("forked", base)
		repo.Checkout("forked")
		repo.SetRemoteRef("origin", "forked", developTip)
		repo.Commit("diverging", map[string]string{"d.txt": "d"})

		r, err := Open(repo.Dir, "origin")
		require.NoError(t, err)
		ahead, behind, err := r.AheadBehind("forked")
		require.NoError(t, err)
		assert.Equal(t, 1, ahead)
		assert.Equal(t, 2, behind)
	})
}

func TestPathExistsOnBranch(t *testing.T) {
	repo := gittest.Init(t, "contrib")
	repo.Commit("initial", map[string]string{"planning/foo/plan.md": "plan"})

	r, err := Open(repo.Dir, "origin")
	require.NoError(t, err)

	ok, err := r.PathExistsOnBranch("contrib", "planning/foo")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.PathExistsOnBranch("contrib", "planning/bar")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.PathExistsOnBranch("missing-branch", "planning/foo")
	assert.Error(t, err)
}

func TestBranchQueries(t *testing.T) {
	repo := gittest.Init(t, "develop")
	head := repo.Commit("initial", map[string]string{"a.txt": "a"})
	repo.CreateBranch("contrib", head)
	repo.SetRemoteRef("origin", "main", head)

	r, err := Open(repo.Dir, "origin")
	require.NoError(t, err)

	assert.True(t, r.BranchExists("contrib"))
	assert.False(t, r.BranchExists("main"))
	assert.True(t, r.RemoteBranchExists("main"))
	assert.False(t, r.RemoteBranchExists("contrib"))

	branches, err := r.LocalBranches()
	require.NoError(t, err)
	assert.Equal(t, []string{"contrib", "develop"}, branches)
}

func TestLatestVersionTag(t *testing.T) {
	repo := gittest.Init(t, "main")
	h1 := repo.Commit("one", map[string]string{"a.txt": "a"})
	h2 := repo.Commit("two", map[string]string{"b.txt": "b"})

	r, err := Open(repo.Dir, "origin")
	require.NoError(t, err)

	v, name, err := r.LatestVersionTag()
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Empty(t, name)

	repo.Tag("v1.2.3", h1)
	repo.Tag("v1.10.0", h2)
	repo.Tag("not-a-version", h2)

	v, name, err = r.LatestVersionTag()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "1.10.0", v.String())
	assert.Equal(t, "v1.10.0", name)
}

func TestCommitMessagesSince(t *testing.T) {
	repo := gittest.Init(t, "main")
	tagged := repo.Commit("tagged", map[string]string{"a.txt": "a"})
	repo.Tag("v1.0.0", tagged)
	repo.Commit("fix: one", map[string]string{"b.txt": "b"})
	repo.Commit("feat: two", map[string]string{"c.txt": "c"})

	r, err := Open(repo.Dir, "origin")
	require.NoError(t, err)

	msgs, err := r.CommitMessagesSince("v1.0.0")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "feat: two")
	assert.Contains(t, msgs[1], "fix: one")

	all, err := r.CommitMessagesSince("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
