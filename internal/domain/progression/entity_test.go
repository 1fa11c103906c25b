package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/taxonomy"
)

func record(submissionID string, level taxonomy.Level, gradedAt time.Time) *performance.Record {
	return &performance.Record{
		SubmissionID:      submissionID,
		StudentID:         "student-1",
		SubjectID:         "subject-1",
		DemonstratedLevel: level,
		GradedAt:          gradedAt,
	}
}

func TestCompute_CountsPerLevel(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	sp := Compute("student-1", "subject-1", []*performance.Record{
		record("sub-1", taxonomy.LevelApply, base),
		record("sub-2", taxonomy.LevelApply, base.Add(time.Hour)),
		record("sub-3", taxonomy.LevelRemember, base.Add(2*time.Hour)),
	})
	require.NotNil(t, sp)

	assert.Equal(t, 2, sp.LevelCounts[taxonomy.LevelApply])
	assert.Equal(t, 1, sp.LevelCounts[taxonomy.LevelRemember])
	assert.Equal(t, 0, sp.LevelCounts[taxonomy.LevelCreate])
	assert.Equal(t, 3, sp.TotalRecords())
	assert.Equal(t, base.Add(2*time.Hour), sp.LastActivityAt)
}

func TestCompute_LastDemonstratedIsHighestNonzero(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	sp := Compute("student-1", "subject-1", []*performance.Record{
		record("sub-1", taxonomy.LevelEvaluate, base),
		record("sub-2", taxonomy.LevelRemember, base.Add(time.Hour)),
	})
	require.NotNil(t, sp)
	assert.Equal(t, taxonomy.LevelEvaluate, sp.LastDemonstratedLevel)
}

func TestCompute_EmptySetYieldsZeroRow(t *testing.T) {
	sp := Compute("student-1", "subject-1", nil)
	require.NotNil(t, sp)

	assert.Equal(t, taxonomy.Lowest(), sp.LastDemonstratedLevel)
	assert.Equal(t, 0, sp.TotalRecords())
	assert.Len(t, sp.LevelCounts, taxonomy.Count)
	assert.True(t, sp.LastActivityAt.IsZero())
}

func TestCompute_OrderIndependent(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	forward := []*performance.Record{
		record("sub-1", taxonomy.LevelApply, base),
		record("sub-2", taxonomy.LevelCreate, base.Add(time.Hour)),
		record("sub-3", taxonomy.LevelUnderstand, base.Add(2*time.Hour)),
	}
	backward := []*performance.Record{forward[2], forward[1], forward[0]}

	assert.Equal(t,
		Compute("student-1", "subject-1", forward),
		Compute("student-1", "subject-1", backward),
	)
}
