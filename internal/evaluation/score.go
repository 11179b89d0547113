package evaluation

// PassingScore is the raw score at which a reflection counts as passed.
const PassingScore = 75

const (
	boostThreshold = PassingScore
	boostAmount    = 15
	maxScore       = 100
)

// DisplayScore applies the presentation-time confidence boost: raw scores at
// or above 75 gain 15 points, capped at 100. The stored score is never
// mutated; only what the student sees is boosted.
func DisplayScore(raw int) int {
	if raw < boostThreshold {
		return raw
	}
	boosted := raw + boostAmount
	if boosted > maxScore {
		return maxScore
	}
	return boosted
}
