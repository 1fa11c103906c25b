// Package mastery contains the per-(student, topic) competency aggregate.
// A TopicMastery row is a pure function of the student's current performance
// records for the topic: it is recomputed in full on every update, never
// patched incrementally, so retries and replays always converge on the same
// row.
package mastery

import (
	"time"

	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/taxonomy"
)

// ══════════════════════════════════════════════════════════════════════════════
// MASTERY LABEL
// ══════════════════════════════════════════════════════════════════════════════

// Label classifies a mastery percentage into a human-readable band.
type Label string

const (
	// LabelBeginner - below 60 percent.
	LabelBeginner Label = "beginner"
	// LabelEmerging - at least 60 percent.
	LabelEmerging Label = "emerging"
	// LabelDeveloping - at least 70 percent.
	LabelDeveloping Label = "developing"
	// LabelProficient - at least 80 percent.
	LabelProficient Label = "proficient"
	// LabelMastered - at least 90 percent.
	LabelMastered Label = "mastered"
)

// LabelFor maps a mastery percentage onto its band.
func LabelFor(pct float64) Label {
	switch {
	case pct >= 90:
		return LabelMastered
	case pct >= 80:
		return LabelProficient
	case pct >= 70:
		return LabelDeveloping
	case pct >= 60:
		return LabelEmerging
	default:
		return LabelBeginner
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TOPIC MASTERY AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// TopicMastery is the competency aggregate for one (student, topic) pair.
// Owned exclusively by the aggregator; always written as a full replacement.
type TopicMastery struct {
	StudentID string
	TopicID   string

	// MasteryPercentage is the arithmetic mean of record percentages.
	// A simple average keeps the result reproducible and auditable; recency
	// weighting is deliberately out.
	MasteryPercentage float64

	// MasteryLabel is derived from MasteryPercentage.
	MasteryLabel Label

	// LevelDistribution averages each level's sub-score across only the
	// records that include that level; absent levels stay 0.
	LevelDistribution map[taxonomy.Level]float64

	// HighestDemonstratedLevel is the highest level appearing among the
	// records' demonstrated levels.
	HighestDemonstratedLevel taxonomy.Level

	// ActivitiesCompleted is the record count for the pair.
	ActivitiesCompleted int

	// TotalTimeSpentMinutes sums time spent across records.
	TotalTimeSpentMinutes float64

	// LastActivityAt is the latest graded-at timestamp among records.
	LastActivityAt time.Time
}

// Compute folds the full record set for one (student, topic) pair into a
// TopicMastery row. records may arrive in any order; the result is identical
// for any permutation of the same set. Returns nil when the set is empty,
// which callers translate into deleting the aggregate row.
func Compute(studentID, topicID string, records []*performance.Record) *TopicMastery {
	if len(records) == 0 {
		return nil
	}

	tm := &TopicMastery{
		StudentID:                studentID,
		TopicID:                  topicID,
		LevelDistribution:        make(map[taxonomy.Level]float64, taxonomy.Count),
		HighestDemonstratedLevel: taxonomy.Lowest(),
		ActivitiesCompleted:      len(records),
	}

	var pctSum float64
	levelSums := make(map[taxonomy.Level]float64, taxonomy.Count)
	levelCounts := make(map[taxonomy.Level]int, taxonomy.Count)

	for _, rec := range records {
		pctSum += rec.Percentage
		tm.TotalTimeSpentMinutes += rec.TimeSpentMinutes

		for level, score := range rec.LevelScores {
			levelSums[level] += score
			levelCounts[level]++
		}

		if rec.DemonstratedLevel.Above(tm.HighestDemonstratedLevel) {
			tm.HighestDemonstratedLevel = rec.DemonstratedLevel
		}
		if rec.GradedAt.After(tm.LastActivityAt) {
			tm.LastActivityAt = rec.GradedAt
		}
	}

	tm.MasteryPercentage = pctSum / float64(len(records))
	tm.MasteryLabel = LabelFor(tm.MasteryPercentage)

	for _, level := range taxonomy.Levels() {
		if n := levelCounts[level]; n > 0 {
			tm.LevelDistribution[level] = levelSums[level] / float64(n)
		} else {
			tm.LevelDistribution[level] = 0
		}
	}

	return tm
}
