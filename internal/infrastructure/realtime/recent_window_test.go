package realtime

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/taxonomy"
)

func gradedRecord(submissionID string, pct float64, level taxonomy.Level, gradedAt time.Time) *performance.Record {
	return &performance.Record{
		SubmissionID:      submissionID,
		StudentID:         "student-1",
		ActivityID:        "activity-1",
		TopicID:           "topic-1",
		Percentage:        pct,
		DemonstratedLevel: level,
		GradedAt:          gradedAt,
	}
}

func TestRecentWindow_NewestFirst(t *testing.T) {
	w := NewRecentWindow(5)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	w.Push(gradedRecord("sub-1", 70, taxonomy.LevelApply, base))
	w.Push(gradedRecord("sub-2", 85, taxonomy.LevelAnalyze, base.Add(time.Hour)))

	snap := w.Snapshot("student-1")
	require.Len(t, snap, 2)
	assert.Equal(t, "sub-2", snap[0].SubmissionID)
	assert.Equal(t, "sub-1", snap[1].SubmissionID)
}

func TestRecentWindow_Bounded(t *testing.T) {
	w := NewRecentWindow(3)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		w.Push(gradedRecord(fmt.Sprintf("sub-%d", i), 80, taxonomy.LevelApply, base.Add(time.Duration(i)*time.Minute)))
	}

	snap := w.Snapshot("student-1")
	require.Len(t, snap, 3)
	assert.Equal(t, "sub-5", snap[0].SubmissionID)
	assert.Equal(t, "sub-3", snap[2].SubmissionID)
}

func TestRecentWindow_RegradeReplacesInPlace(t *testing.T) {
	w := NewRecentWindow(5)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	w.Push(gradedRecord("sub-1", 70, taxonomy.LevelApply, base))
	w.Push(gradedRecord("sub-2", 85, taxonomy.LevelAnalyze, base.Add(time.Hour)))
	w.Push(gradedRecord("sub-1", 92, taxonomy.LevelEvaluate, base.Add(2*time.Hour)))

	snap := w.Snapshot("student-1")
	require.Len(t, snap, 2)

	// The re-graded submission keeps its position; only the data changes.
	assert.Equal(t, "sub-2", snap[0].SubmissionID)
	assert.Equal(t, "sub-1", snap[1].SubmissionID)
	assert.Equal(t, 92.0, snap[1].Percentage)
	assert.Equal(t, taxonomy.LevelEvaluate, snap[1].DemonstratedLevel)
}

func TestRecentWindow_CurrentLevel(t *testing.T) {
	w := NewRecentWindow(5)

	assert.Equal(t, taxonomy.Lowest(), w.CurrentLevel("student-1"))

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	w.Push(gradedRecord("sub-1", 70, taxonomy.LevelApply, base))
	w.Push(gradedRecord("sub-2", 85, taxonomy.LevelAnalyze, base.Add(time.Hour)))

	assert.Equal(t, taxonomy.LevelAnalyze, w.CurrentLevel("student-1"))
}

func TestRecentWindow_SnapshotIsACopy(t *testing.T) {
	w := NewRecentWindow(5)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	w.Push(gradedRecord("sub-1", 70, taxonomy.LevelApply, base))

	snap := w.Snapshot("student-1")
	snap[0].Percentage = 0

	assert.Equal(t, 70.0, w.Snapshot("student-1")[0].Percentage)
}

func TestRecentWindow_Seed(t *testing.T) {
	w := NewRecentWindow(5)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Newest first, mirroring the repository's recent-records ordering.
	w.Seed([]*performance.Record{
		gradedRecord("sub-3", 90, taxonomy.LevelEvaluate, base.Add(2*time.Hour)),
		gradedRecord("sub-2", 80, taxonomy.LevelAnalyze, base.Add(time.Hour)),
		gradedRecord("sub-1", 70, taxonomy.LevelApply, base),
	})

	snap := w.Snapshot("student-1")
	require.Len(t, snap, 3)
	assert.Equal(t, "sub-3", snap[0].SubmissionID)
	assert.Equal(t, taxonomy.LevelEvaluate, w.CurrentLevel("student-1"))
}
