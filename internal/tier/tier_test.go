package tier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTier_Ephemeral(t *testing.T) {
	assert.True(t, TierFeature.Ephemeral())
	assert.True(t, TierRelease.Ephemeral())
	assert.False(t, TierContrib.Ephemeral())
	assert.False(t, TierDevelop.Ephemeral())
	assert.False(t, TierMain.Ephemeral())
}

func TestParseTier(t *testing.T) {
	tr, err := ParseTier("  Develop ")
	require.NoError(t, err)
	assert.Equal(t, TierDevelop, tr)

	_, err = ParseTier("staging")
	assert.Error(t, err)
}

func TestEphemeralBranchName_RoundTrip(t *testing.T) {
	at := time.Date(2026, 8, 29, 10, 15, 0, 0, time.UTC)
	name := EphemeralBranchName(TierFeature, "login-form", at)
	assert.Equal(t, "feature/20260829T101500_login-form", name)

	ref, err := ParseBranch(name)
	require.NoError(t, err)
	assert.Equal(t, TierFeature, ref.Tier)
	assert.Equal(t, "login-form", ref.Slug())

	created, ok := ref.CreatedAt()
	require.True(t, ok)
	assert.Equal(t, at, created)
}

func TestParseBranch_PersistentTiers(t *testing.T) {
	for _, name := range []string{"contrib", "develop", "main"} {
		ref, err := ParseBranch(name)
		require.NoError(t, err, name)
		assert.Equal(t, Tier(name), ref.Tier)
		assert.Empty(t, ref.Slug())
	}
}

func TestParseBranch_Malformed(t *testing.T) {
	cases := []string{
		"feature",                      // ephemeral tier without suffix
		"feature/no-timestamp",         // missing underscore separator
		"feature/2026_x",               // bad timestamp
		"hotfix/20260829T101500_x",     // unknown prefix
		"release/20260829T101500_",     // empty slug
		"random-branch",                // not in the pipeline
	}
	for _, name := range cases {
		_, err := ParseBranch(name)
		assert.ErrorIs(t, err, ErrMalformedBranchName, name)
	}
}

func TestLegalTransition(t *testing.T) {
	legal := map[Transition]bool{}
	for _, tr := range LegalTransitions() {
		legal[tr] = true
	}
	require.Len(t, legal, 5)

	// Every (from, to) pair outside the declared set must be rejected.
	for _, from := range AllTiers() {
		for _, to := range AllTiers() {
			want := legal[Transition{from, to}]
			assert.Equal(t, want, LegalTransition(from, to), "%s→%s", from, to)
		}
	}
}

func TestIsBackmerge(t *testing.T) {
	assert.True(t, IsBackmerge(TierRelease, TierDevelop))
	assert.False(t, IsBackmerge(TierRelease, TierMain))
	assert.False(t, IsBackmerge(TierDevelop, TierRelease))
}
