package points

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRerank_TwoStudents(t *testing.T) {
	earned := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	standings := Rerank([]Standing{
		{StudentID: "student-b", TotalPoints: 80, LastEarnedAt: earned},
		{StudentID: "student-a", TotalPoints: 120, LastEarnedAt: earned},
	})

	require.Len(t, standings, 2)
	assert.Equal(t, "student-a", standings[0].StudentID)
	assert.Equal(t, 1, standings[0].Rank)
	assert.Equal(t, 100, standings[0].Percentile)
	assert.Equal(t, "student-b", standings[1].StudentID)
	assert.Equal(t, 2, standings[1].Rank)
	assert.Equal(t, 50, standings[1].Percentile)
}

func TestRerank_TieBrokenByEarlierLastEarned(t *testing.T) {
	earned := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	standings := Rerank([]Standing{
		{StudentID: "student-a", TotalPoints: 120, LastEarnedAt: earned},
		{StudentID: "student-b", TotalPoints: 80, LastEarnedAt: earned.Add(time.Hour)},
		{StudentID: "student-c", TotalPoints: 80, LastEarnedAt: earned},
	})

	require.Len(t, standings, 3)

	// Equal points: the student who reached the total first ranks higher.
	assert.Equal(t, "student-a", standings[0].StudentID)
	assert.Equal(t, "student-c", standings[1].StudentID)
	assert.Equal(t, "student-b", standings[2].StudentID)
	assert.Equal(t, 2, standings[1].Rank)
	assert.Equal(t, 3, standings[2].Rank)
}

func TestRerank_TotalOrderNoTiedRanks(t *testing.T) {
	earned := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Identical points and timestamps; student id decides.
	standings := Rerank([]Standing{
		{StudentID: "student-c", TotalPoints: 50, LastEarnedAt: earned},
		{StudentID: "student-a", TotalPoints: 50, LastEarnedAt: earned},
		{StudentID: "student-b", TotalPoints: 50, LastEarnedAt: earned},
	})

	seen := make(map[int]bool)
	for i, s := range standings {
		assert.Equal(t, i+1, s.Rank)
		assert.False(t, seen[s.Rank])
		seen[s.Rank] = true
	}
	assert.Equal(t, "student-a", standings[0].StudentID)
	assert.Equal(t, "student-b", standings[1].StudentID)
	assert.Equal(t, "student-c", standings[2].StudentID)
}

func TestRerank_FillsLevelFromPoints(t *testing.T) {
	standings := Rerank([]Standing{
		{StudentID: "student-a", TotalPoints: 120},
		{StudentID: "student-b", TotalPoints: 10},
	})

	assert.Equal(t, 3, standings[0].Level)
	assert.Equal(t, "Intermediate", standings[0].LevelLabel)
	assert.Equal(t, 1, standings[1].Level)
	assert.Equal(t, "Beginner", standings[1].LevelLabel)
}

func TestRerank_Deterministic(t *testing.T) {
	earned := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	build := func() []Standing {
		return []Standing{
			{StudentID: "student-b", TotalPoints: 80, LastEarnedAt: earned.Add(time.Minute)},
			{StudentID: "student-a", TotalPoints: 120, LastEarnedAt: earned},
			{StudentID: "student-c", TotalPoints: 80, LastEarnedAt: earned},
		}
	}

	assert.Equal(t, Rerank(build()), Rerank(build()))
}

func TestDiffRanks(t *testing.T) {
	previous := []Standing{
		{StudentID: "student-a", Rank: 1},
		{StudentID: "student-b", Rank: 2},
		{StudentID: "student-c", Rank: 3},
	}
	current := []Standing{
		{StudentID: "student-b", Rank: 1},
		{StudentID: "student-a", Rank: 2},
		{StudentID: "student-d", Rank: 3},
	}

	DiffRanks(current, previous)

	assert.Equal(t, 1, current[0].RankChange)
	assert.Equal(t, -1, current[1].RankChange)

	// New entrants have no movement to report.
	assert.Equal(t, 0, current[2].RankChange)
}

func TestSnapshot_StandingFor(t *testing.T) {
	snap := NewSnapshot("snap-1", "class-1", []Standing{
		{StudentID: "student-a", Rank: 1},
		{StudentID: "student-b", Rank: 2},
	})

	got := snap.StandingFor("student-b")
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Rank)
	assert.Nil(t, snap.StandingFor("student-z"))
}
