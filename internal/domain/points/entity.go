// Package points contains the gamified points ledger, the per-student points
// aggregate, and the class ranking computation. The ledger is append-only
// (keyed so each source awards exactly once); every aggregate and rank is a
// pure function of the current ledger and therefore rebuildable at any time.
package points

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// POINT AWARD RULES
// ══════════════════════════════════════════════════════════════════════════════

// AchievementAward is the flat award for an unlocked achievement.
const AchievementAward = 25

// PerfectScoreBonus is added when the raw score equals the max score exactly.
const PerfectScoreBonus = 5

// AwardForPercentage maps a graded percentage to points. perfect adds the
// flat bonus for an exact max score.
func AwardForPercentage(pct float64, perfect bool) int {
	var pts int
	switch {
	case pct >= 90:
		pts = 15
	case pct >= 80:
		pts = 12
	case pct >= 70:
		pts = 8
	case pct >= 60:
		pts = 5
	default:
		pts = 2
	}
	if perfect {
		pts += PerfectScoreBonus
	}
	return pts
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// SourceType identifies what earned a points entry.
type SourceType string

const (
	// SourceActivityGrade - points earned from a graded activity.
	SourceActivityGrade SourceType = "activity_grade"
	// SourceAchievement - flat points from an unlocked achievement.
	SourceAchievement SourceType = "achievement"
)

// IsValid reports whether the source type is known.
func (s SourceType) IsValid() bool {
	return s == SourceActivityGrade || s == SourceAchievement
}

// Entry is one row of the points ledger. Immutable once written; the
// (student, source type, source id) key guarantees each source awards at most
// once, with a re-grade replacing the prior award for the same submission.
type Entry struct {
	StudentID   string
	SourceType  SourceType
	SourceID    string
	Points      int
	Description string
	EarnedAt    time.Time
}

// String returns a representation for logging.
func (e Entry) String() string {
	return fmt.Sprintf("Entry{Student: %s, Source: %s/%s, Points: %d}",
		e.StudentID, e.SourceType, e.SourceID, e.Points)
}

// ══════════════════════════════════════════════════════════════════════════════
// PER-STUDENT AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// Aggregate is the derived per-student points summary, rebuilt whenever any
// class member's ledger changes.
type Aggregate struct {
	StudentID    string
	ClassID      string
	TotalPoints  int
	LastEarnedAt time.Time

	ClassRank       int
	ClassPercentile int

	CampusRank       int
	CampusPercentile int

	UpdatedAt time.Time
}

// ComputeAggregate sums a student's ledger entries into an aggregate.
// Rank and percentile fields are filled in later by the class reranking.
func ComputeAggregate(studentID, classID string, entries []Entry) *Aggregate {
	agg := &Aggregate{
		StudentID: studentID,
		ClassID:   classID,
	}
	for _, e := range entries {
		agg.TotalPoints += e.Points
		if e.EarnedAt.After(agg.LastEarnedAt) {
			agg.LastEarnedAt = e.EarnedAt
		}
	}
	return agg
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT LEVEL
// ══════════════════════════════════════════════════════════════════════════════

// StudentLevel is the derived gamification level, a pure function of total
// points.
type StudentLevel struct {
	StudentID         string
	Level             int
	Label             string
	TotalPoints       int
	PointsToNextLevel int
}

// levelThresholds holds the lower bound of each level above 1.
var levelThresholds = []struct {
	min   int
	label string
}{
	{0, "Beginner"},
	{50, "Novice"},
	{100, "Intermediate"},
	{200, "Proficient"},
	{300, "Advanced"},
	{400, "Expert"},
	{500, "Master"},
}

// MaxLevel is the highest attainable gamification level.
const MaxLevel = 7

// LevelForPoints derives the gamification level from a points total.
func LevelForPoints(studentID string, totalPoints int) StudentLevel {
	level := 1
	for i := 1; i < len(levelThresholds); i++ {
		if totalPoints >= levelThresholds[i].min {
			level = i + 1
		}
	}

	toNext := 0
	if level < MaxLevel {
		toNext = levelThresholds[level].min - totalPoints
	}

	return StudentLevel{
		StudentID:         studentID,
		Level:             level,
		Label:             levelThresholds[level-1].label,
		TotalPoints:       totalPoints,
		PointsToNextLevel: toNext,
	}
}
