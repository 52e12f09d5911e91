package tier

// Transition is an ordered (source, target) tier pair.
type Transition struct {
	From Tier
	To   Tier
}

// legalTransitions is the closed set of pipeline moves: the forward chain
// plus the single release→develop backmerge.
var legalTransitions = map[Transition]bool{
	{TierFeature, TierContrib}: true,
	{TierContrib, TierDevelop}: true,
	{TierDevelop, TierRelease}: true,
	{TierRelease, TierMain}:    true,
	{TierRelease, TierDevelop}: true, // backmerge
}

// LegalTransition reports whether promoting from one tier to another is
// allowed by the pipeline.
func LegalTransition(from, to Tier) bool {
	return legalTransitions[Transition{from, to}]
}

// IsBackmerge reports whether the pair is the release→develop backmerge,
// the only transition with two target mutations (develop merge + contrib
// rebase).
func IsBackmerge(from, to Tier) bool {
	return from == TierRelease && to == TierDevelop
}

// LegalTransitions returns the allowed transitions in pipeline order.
func LegalTransitions() []Transition {
	return []Transition{
		{TierFeature, TierContrib},
		{TierContrib, TierDevelop},
		{TierDevelop, TierRelease},
		{TierRelease, TierMain},
		{TierRelease, TierDevelop},
	}
}
