package performance

// EngagementPolicy derives an engagement score in [0,100] from a submission's
// percentage and time-on-task. The exact formula is a policy knob, so it is
// injected rather than hard-coded; implementations must be deterministic or
// the full-recompute guarantees downstream break.
type EngagementPolicy interface {
	// Score returns the engagement score for a submission. expectedMinutes
	// is the authored expected duration of the activity; zero means unknown.
	Score(percentage, spentMinutes, expectedMinutes float64) float64
}

// EngagementFunc adapts a plain function to the EngagementPolicy interface.
type EngagementFunc func(percentage, spentMinutes, expectedMinutes float64) float64

// Score implements EngagementPolicy.
func (f EngagementFunc) Score(percentage, spentMinutes, expectedMinutes float64) float64 {
	return f(percentage, spentMinutes, expectedMinutes)
}

// DefaultEngagementPolicy adjusts the percentage by a bounded participation
// factor derived from time spent relative to the expected duration. Rushing
// through an activity costs up to 10 points; spending reasonable time earns
// up to 5. Without timing data the percentage passes through unchanged.
type DefaultEngagementPolicy struct{}

// Score implements EngagementPolicy.
func (DefaultEngagementPolicy) Score(percentage, spentMinutes, expectedMinutes float64) float64 {
	if spentMinutes <= 0 || expectedMinutes <= 0 {
		return clampPercent(percentage)
	}

	ratio := spentMinutes / expectedMinutes
	adjustment := (ratio - 0.5) * 10
	if adjustment > 5 {
		adjustment = 5
	}
	if adjustment < -10 {
		adjustment = -10
	}

	return clampPercent(percentage + adjustment)
}

// PassthroughEngagementPolicy returns the percentage unchanged. Useful in
// tests and for deployments that have not tuned an engagement model yet.
type PassthroughEngagementPolicy struct{}

// Score implements EngagementPolicy.
func (PassthroughEngagementPolicy) Score(percentage, _, _ float64) float64 {
	return clampPercent(percentage)
}
