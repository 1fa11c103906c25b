package mastery

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/taxonomy"
)

func record(submissionID string, pct float64, level taxonomy.Level, gradedAt time.Time) *performance.Record {
	return &performance.Record{
		SubmissionID:      submissionID,
		StudentID:         "student-1",
		TopicID:           "topic-1",
		Percentage:        pct,
		TimeSpentMinutes:  10,
		LevelScores:       performance.LevelScores{level: pct},
		DemonstratedLevel: level,
		GradedAt:          gradedAt,
	}
}

func TestCompute_SingleRecord(t *testing.T) {
	gradedAt := time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC)
	tm := Compute("student-1", "topic-1", []*performance.Record{
		record("sub-1", 95, taxonomy.LevelApply, gradedAt),
	})
	require.NotNil(t, tm)

	assert.Equal(t, 95.0, tm.MasteryPercentage)
	assert.Equal(t, LabelMastered, tm.MasteryLabel)
	assert.Equal(t, taxonomy.LevelApply, tm.HighestDemonstratedLevel)
	assert.Equal(t, 1, tm.ActivitiesCompleted)
	assert.Equal(t, gradedAt, tm.LastActivityAt)
}

func TestCompute_SecondRecordAverages(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tm := Compute("student-1", "topic-1", []*performance.Record{
		record("sub-1", 95, taxonomy.LevelApply, base),
		record("sub-2", 55, taxonomy.LevelApply, base.Add(time.Hour)),
	})
	require.NotNil(t, tm)

	assert.Equal(t, 75.0, tm.MasteryPercentage)
	assert.Equal(t, LabelDeveloping, tm.MasteryLabel)
	assert.Equal(t, 2, tm.ActivitiesCompleted)
	assert.Equal(t, base.Add(time.Hour), tm.LastActivityAt)
}

func TestCompute_EmptySetReturnsNil(t *testing.T) {
	assert.Nil(t, Compute("student-1", "topic-1", nil))
	assert.Nil(t, Compute("student-1", "topic-1", []*performance.Record{}))
}

func TestCompute_OrderIndependent(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	records := []*performance.Record{
		record("sub-1", 95, taxonomy.LevelApply, base),
		record("sub-2", 55, taxonomy.LevelRemember, base.Add(time.Hour)),
		record("sub-3", 80, taxonomy.LevelCreate, base.Add(2*time.Hour)),
		record("sub-4", 62, taxonomy.LevelAnalyze, base.Add(3*time.Hour)),
	}

	expected := Compute("student-1", "topic-1", records)
	require.NotNil(t, expected)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]*performance.Record, len(records))
		copy(shuffled, records)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := Compute("student-1", "topic-1", shuffled)
		assert.Equal(t, expected, got)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	records := []*performance.Record{
		record("sub-1", 70, taxonomy.LevelUnderstand, base),
		record("sub-2", 90, taxonomy.LevelEvaluate, base.Add(time.Minute)),
	}

	first := Compute("student-1", "topic-1", records)
	second := Compute("student-1", "topic-1", records)
	assert.Equal(t, first, second)
}

func TestCompute_LevelDistributionAveragesPresentOnly(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	recA := record("sub-1", 80, taxonomy.LevelApply, base)
	recA.LevelScores = performance.LevelScores{
		taxonomy.LevelRemember: 90,
		taxonomy.LevelApply:    80,
	}
	recB := record("sub-2", 60, taxonomy.LevelApply, base.Add(time.Hour))
	recB.LevelScores = performance.LevelScores{
		taxonomy.LevelApply: 60,
	}

	tm := Compute("student-1", "topic-1", []*performance.Record{recA, recB})
	require.NotNil(t, tm)

	// Remember appears in one record only; its average must not be diluted
	// by records that never scored it.
	assert.Equal(t, 90.0, tm.LevelDistribution[taxonomy.LevelRemember])
	assert.Equal(t, 70.0, tm.LevelDistribution[taxonomy.LevelApply])
	assert.Equal(t, 0.0, tm.LevelDistribution[taxonomy.LevelCreate])
}

func TestCompute_HighestDemonstratedAcrossRecords(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tm := Compute("student-1", "topic-1", []*performance.Record{
		record("sub-1", 75, taxonomy.LevelUnderstand, base),
		record("sub-2", 85, taxonomy.LevelEvaluate, base.Add(time.Hour)),
		record("sub-3", 65, taxonomy.LevelApply, base.Add(2*time.Hour)),
	})
	require.NotNil(t, tm)
	assert.Equal(t, taxonomy.LevelEvaluate, tm.HighestDemonstratedLevel)
}

func TestLabelFor_Bands(t *testing.T) {
	cases := []struct {
		pct   float64
		label Label
	}{
		{100, LabelMastered},
		{90, LabelMastered},
		{89.99, LabelProficient},
		{80, LabelProficient},
		{79.5, LabelDeveloping},
		{70, LabelDeveloping},
		{69, LabelEmerging},
		{60, LabelEmerging},
		{59.99, LabelBeginner},
		{0, LabelBeginner},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.label, LabelFor(tc.pct), "pct=%v", tc.pct)
	}
}
