// Package progression contains the per-(student, subject) taxonomy-level
// counters. Like topic mastery, a progression row is recomputed in full from
// the performance record set on every update.
package progression

import (
	"time"

	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/taxonomy"
)

// SubjectProgression counts how often each taxonomy level was demonstrated by
// a student within one subject.
type SubjectProgression struct {
	StudentID string
	SubjectID string

	// LevelCounts holds, per taxonomy level, the number of records whose
	// demonstrated level equals that level.
	LevelCounts map[taxonomy.Level]int

	// LastDemonstratedLevel is the highest level with a nonzero count.
	// Defaults to the lowest taxonomy level when the student has no records
	// in the subject yet.
	LastDemonstratedLevel taxonomy.Level

	// LastActivityAt is the latest graded-at timestamp among records.
	LastActivityAt time.Time
}

// Compute folds the full record set for one (student, subject) pair into a
// SubjectProgression row. Order-independent and deterministic. Unlike topic
// mastery, an empty record set still yields a row: a student who has not yet
// engaged sits at the lowest level with zero counts.
func Compute(studentID, subjectID string, records []*performance.Record) *SubjectProgression {
	sp := &SubjectProgression{
		StudentID:             studentID,
		SubjectID:             subjectID,
		LevelCounts:           make(map[taxonomy.Level]int, taxonomy.Count),
		LastDemonstratedLevel: taxonomy.Lowest(),
	}
	for _, level := range taxonomy.Levels() {
		sp.LevelCounts[level] = 0
	}

	for _, rec := range records {
		sp.LevelCounts[rec.DemonstratedLevel]++
		if rec.GradedAt.After(sp.LastActivityAt) {
			sp.LastActivityAt = rec.GradedAt
		}
	}

	for _, level := range taxonomy.Levels() {
		if sp.LevelCounts[level] > 0 {
			sp.LastDemonstratedLevel = level
		}
	}

	return sp
}

// TotalRecords returns the number of records behind the counters.
func (sp *SubjectProgression) TotalRecords() int {
	var total int
	for _, n := range sp.LevelCounts {
		total += n
	}
	return total
}
