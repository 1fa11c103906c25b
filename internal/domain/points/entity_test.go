package points

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAwardForPercentage_Bands(t *testing.T) {
	cases := []struct {
		pct      float64
		expected int
	}{
		{100, 15},
		{95, 15},
		{90, 15},
		{89.9, 12},
		{80, 12},
		{75, 8},
		{70, 8},
		{65, 5},
		{60, 5},
		{59.9, 2},
		{30, 2},
		{0, 2},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, AwardForPercentage(tc.pct, false), "pct=%v", tc.pct)
	}
}

func TestAwardForPercentage_PerfectBonus(t *testing.T) {
	assert.Equal(t, 20, AwardForPercentage(100, true))

	// The bonus keys off an exact max score, not the percentage band.
	assert.Equal(t, 20, AwardForPercentage(95, true))
}

func TestSourceType_IsValid(t *testing.T) {
	assert.True(t, SourceActivityGrade.IsValid())
	assert.True(t, SourceAchievement.IsValid())
	assert.False(t, SourceType("bonus").IsValid())
}

func TestComputeAggregate(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	entries := []Entry{
		{StudentID: "student-1", SourceType: SourceActivityGrade, SourceID: "sub-1", Points: 15, EarnedAt: base},
		{StudentID: "student-1", SourceType: SourceActivityGrade, SourceID: "sub-2", Points: 8, EarnedAt: base.Add(2 * time.Hour)},
		{StudentID: "student-1", SourceType: SourceAchievement, SourceID: "ach-1", Points: 25, EarnedAt: base.Add(time.Hour)},
	}

	agg := ComputeAggregate("student-1", "class-1", entries)

	assert.Equal(t, "student-1", agg.StudentID)
	assert.Equal(t, "class-1", agg.ClassID)
	assert.Equal(t, 48, agg.TotalPoints)
	assert.Equal(t, base.Add(2*time.Hour), agg.LastEarnedAt)
}

func TestComputeAggregate_EmptyLedger(t *testing.T) {
	agg := ComputeAggregate("student-1", "class-1", nil)

	assert.Equal(t, 0, agg.TotalPoints)
	assert.True(t, agg.LastEarnedAt.IsZero())
}

func TestLevelForPoints_Thresholds(t *testing.T) {
	cases := []struct {
		points int
		level  int
		label  string
	}{
		{0, 1, "Beginner"},
		{49, 1, "Beginner"},
		{50, 2, "Novice"},
		{99, 2, "Novice"},
		{100, 3, "Intermediate"},
		{199, 3, "Intermediate"},
		{200, 4, "Proficient"},
		{300, 5, "Advanced"},
		{400, 6, "Expert"},
		{500, 7, "Master"},
		{9000, 7, "Master"},
	}
	for _, tc := range cases {
		lvl := LevelForPoints("student-1", tc.points)
		assert.Equal(t, tc.level, lvl.Level, "points=%d", tc.points)
		assert.Equal(t, tc.label, lvl.Label, "points=%d", tc.points)
	}
}

func TestLevelForPoints_PointsToNext(t *testing.T) {
	assert.Equal(t, 50, LevelForPoints("student-1", 0).PointsToNextLevel)
	assert.Equal(t, 1, LevelForPoints("student-1", 49).PointsToNextLevel)
	assert.Equal(t, 50, LevelForPoints("student-1", 50).PointsToNextLevel)

	// Top level has no next threshold.
	assert.Equal(t, 0, LevelForPoints("student-1", 500).PointsToNextLevel)
	assert.Equal(t, 0, LevelForPoints("student-1", 777).PointsToNextLevel)
}
