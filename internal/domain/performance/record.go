// Package performance contains the normalized performance record produced
// from each graded submission. One record exists per submission id at any
// time; a re-grade replaces the record rather than appending, so downstream
// aggregates can always be rebuilt from the record set without double counting.
package performance

import (
	"time"

	"github.com/learnpulse/mastery-engine/internal/domain/shared"
	"github.com/learnpulse/mastery-engine/internal/domain/taxonomy"
)

// DefaultDemonstrationThreshold is the sub-score a taxonomy level must reach
// for a submission to count as demonstrating that level.
const DefaultDemonstrationThreshold = 60.0

// LevelScores maps taxonomy levels to sub-scores in [0,100]. The map is
// keyed by the closed Level enum; absent levels are simply not demonstrated.
type LevelScores map[taxonomy.Level]float64

// Clone returns a copy of the score map.
func (ls LevelScores) Clone() LevelScores {
	if ls == nil {
		return nil
	}
	out := make(LevelScores, len(ls))
	for l, s := range ls {
		out[l] = s
	}
	return out
}

// Demonstrated returns the highest level whose sub-score meets the threshold.
// If no level clears the threshold, the lowest level present is returned.
// This is the single source of truth for "demonstrated level" across mastery
// and progression aggregation.
func (ls LevelScores) Demonstrated(threshold float64) taxonomy.Level {
	best := taxonomy.Level(-1)
	lowest := taxonomy.Level(-1)

	for _, level := range taxonomy.Levels() {
		score, ok := ls[level]
		if !ok {
			continue
		}
		if lowest < 0 {
			lowest = level
		}
		if score >= threshold {
			best = level
		}
	}

	if best >= 0 {
		return best
	}
	if lowest >= 0 {
		return lowest
	}
	return taxonomy.Lowest()
}

// Record is the normalized performance record for one graded submission.
// Created once per submission and never mutated in place; a re-grade produces
// a full replacement keyed by SubmissionID.
type Record struct {
	// SubmissionID is the unique key of the record.
	SubmissionID string

	// StudentID identifies the student who submitted.
	StudentID string

	// ActivityID identifies the graded activity.
	ActivityID string

	// TopicID is the topic the activity belongs to.
	TopicID string

	// SubjectID is the subject the activity belongs to.
	SubjectID string

	// ClassID is the class the student is enrolled in.
	ClassID string

	// Score is the raw awarded score.
	Score float64

	// MaxScore is the maximum achievable score (always > 0).
	MaxScore float64

	// Percentage is 100*Score/MaxScore, clamped to [0,100].
	Percentage float64

	// TimeSpentMinutes is how long the student worked on the activity.
	TimeSpentMinutes float64

	// EngagementScore is a derived heuristic in [0,100].
	EngagementScore float64

	// LevelScores holds per-level sub-scores in [0,100].
	LevelScores LevelScores

	// DemonstratedLevel is derived from LevelScores via the demonstration
	// threshold rule.
	DemonstratedLevel taxonomy.Level

	// SubmittedAt is when the student submitted.
	SubmittedAt time.Time

	// GradedAt is when the grading step completed.
	GradedAt time.Time
}

// IsPerfect reports whether the raw score equals the max score exactly.
func (r *Record) IsPerfect() bool {
	return r.Score == r.MaxScore
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.LevelScores = r.LevelScores.Clone()
	return &clone
}

// clampPercent clamps a value to the [0,100] range.
func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Build converts a graded submission into a performance record.
// It applies the percentage clamp, the level-score synthesis rule, the
// demonstrated-level rule, and the injected engagement policy. A submission
// with a non-positive max score or missing topic/subject/class is rejected
// as a malformed submission and must be skipped, never defaulted.
func Build(sub GradedSubmission, engagement EngagementPolicy, demonstrationThreshold float64) (*Record, error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}
	if demonstrationThreshold <= 0 {
		demonstrationThreshold = DefaultDemonstrationThreshold
	}

	percentage := clampPercent(100 * sub.Score / sub.MaxScore)

	levelScores := make(LevelScores)
	if len(sub.ExplicitLevelScores) > 0 {
		// Explicit sub-scores from the grading step are used verbatim.
		for name, score := range sub.ExplicitLevelScores {
			level, err := taxonomy.Parse(name)
			if err != nil {
				return nil, shared.WrapError("performance", "Build", shared.ErrMalformedSubmission,
					"unknown taxonomy level in explicit scores", err)
			}
			levelScores[level] = clampPercent(score)
		}
	} else {
		tagged := taxonomy.Lowest()
		if sub.TaggedLevel != "" {
			level, err := taxonomy.Parse(sub.TaggedLevel)
			if err != nil {
				return nil, shared.WrapError("performance", "Build", shared.ErrMalformedSubmission,
					"unknown tagged taxonomy level", err)
			}
			tagged = level
		}
		levelScores[tagged] = percentage
	}

	if engagement == nil {
		engagement = DefaultEngagementPolicy{}
	}

	return &Record{
		SubmissionID:      sub.SubmissionID,
		StudentID:         sub.StudentID,
		ActivityID:        sub.ActivityID,
		TopicID:           sub.TopicID,
		SubjectID:         sub.SubjectID,
		ClassID:           sub.ClassID,
		Score:             sub.Score,
		MaxScore:          sub.MaxScore,
		Percentage:        percentage,
		TimeSpentMinutes:  sub.TimeSpentMinutes,
		EngagementScore:   clampPercent(engagement.Score(percentage, sub.TimeSpentMinutes, sub.ExpectedMinutes)),
		LevelScores:       levelScores,
		DemonstratedLevel: levelScores.Demonstrated(demonstrationThreshold),
		SubmittedAt:       sub.SubmittedAt,
		GradedAt:          sub.GradedAt,
	}, nil
}
