package version

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		message string
		want    Bump
	}{
		{"fix: typo", BumpPatch},
		{"fix(parser): off-by-one", BumpPatch},
		{"docs: update readme", BumpPatch},
		{"random message without a type", BumpPatch},
		{"feat: add X", BumpMinor},
		{"feat(api): add Y", BumpMinor},
		{"feat!: drop legacy flag", BumpMajor},
		{"fix!: remove fallback", BumpMajor},
		{"refactor: rework\n\nBREAKING CHANGE: renames public API", BumpMajor},
		{"refactor: rework\n\nBREAKING-CHANGE: renames public API", BumpMajor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.message), tt.message)
	}
}

func TestNext_PatchOnly(t *testing.T) {
	last := semver.MustParse("1.2.3")
	next, err := Next(last, []string{"fix: typo", "fix: off-by-one"})
	require.NoError(t, err)
	assert.Equal(t, "1.2.4", next.String())
}

func TestNext_FeatureWins(t *testing.T) {
	last := semver.MustParse("1.2.3")
	next, err := Next(last, []string{"feat: add X", "fix: Y"})
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", next.String())
}

func TestNext_BreakingResetsMinorAndPatch(t *testing.T) {
	last := semver.MustParse("1.2.3")
	next, err := Next(last, []string{"fix: small", "feat!: drop old API"})
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", next.String())
}

func TestNext_EmptyRange(t *testing.T) {
	_, err := Next(semver.MustParse("1.0.0"), nil)
	assert.ErrorIs(t, err, ErrNothingToRelease)
}

func TestNext_NoPreviousTag(t *testing.T) {
	next, err := Next(nil, []string{"feat: first feature"})
	require.NoError(t, err)
	assert.Equal(t, "0.1.0", next.String())
}

func TestNext_Monotonic(t *testing.T) {
	last := semver.MustParse("3.4.5")
	for _, msgs := range [][]string{
		{"chore: bump deps"},
		{"feat: thing"},
		{"feat!: break"},
	} {
		next, err := Next(last, msgs)
		require.NoError(t, err)
		assert.True(t, next.GreaterThan(last), "%v -> %v", last, next)
	}
}

func TestTagName(t *testing.T) {
	assert.Equal(t, "v1.2.3", TagName(semver.MustParse("1.2.3")))
}

func TestParseExplicit(t *testing.T) {
	last := semver.MustParse("1.2.3")

	v, err := ParseExplicit("v2.0.0", last)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", v.String())

	_, err = ParseExplicit("1.2.3", last)
	assert.Error(t, err, "must advance past the last tag")

	_, err = ParseExplicit("not-a-version", last)
	assert.Error(t, err)
}
