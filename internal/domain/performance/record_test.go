package performance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnpulse/mastery-engine/internal/domain/shared"
	"github.com/learnpulse/mastery-engine/internal/domain/taxonomy"
)

func validSubmission() GradedSubmission {
	return GradedSubmission{
		SubmissionID: "sub-1",
		StudentID:    "student-1",
		ActivityID:   "activity-1",
		TopicID:      "topic-1",
		SubjectID:    "subject-1",
		ClassID:      "class-1",
		Score:        95,
		MaxScore:     100,
		TaggedLevel:  "apply",
		SubmittedAt:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		GradedAt:     time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC),
	}
}

func TestBuild_TaggedLevel(t *testing.T) {
	rec, err := Build(validSubmission(), nil, 0)
	require.NoError(t, err)

	assert.Equal(t, 95.0, rec.Percentage)
	assert.Equal(t, taxonomy.LevelApply, rec.DemonstratedLevel)
	assert.Equal(t, LevelScores{taxonomy.LevelApply: 95}, rec.LevelScores)
}

func TestBuild_ExplicitLevelScoresWin(t *testing.T) {
	sub := validSubmission()
	sub.ExplicitLevelScores = map[string]float64{
		"remember": 90,
		"apply":    75,
		"create":   40,
	}

	rec, err := Build(sub, nil, 0)
	require.NoError(t, err)

	// Highest level clearing the threshold wins, not the highest score.
	assert.Equal(t, taxonomy.LevelApply, rec.DemonstratedLevel)
	assert.Equal(t, 90.0, rec.LevelScores[taxonomy.LevelRemember])
	assert.Equal(t, 40.0, rec.LevelScores[taxonomy.LevelCreate])
}

func TestBuild_BelowThresholdFallsBackToLowestPresent(t *testing.T) {
	sub := validSubmission()
	sub.Score = 55

	rec, err := Build(sub, nil, 0)
	require.NoError(t, err)

	// 55 misses the threshold but the record still demonstrates its only
	// tagged level rather than dropping to the taxonomy floor.
	assert.Equal(t, taxonomy.LevelApply, rec.DemonstratedLevel)
	assert.Equal(t, 55.0, rec.Percentage)
}

func TestBuild_UntaggedDefaultsToLowestLevel(t *testing.T) {
	sub := validSubmission()
	sub.TaggedLevel = ""

	rec, err := Build(sub, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, taxonomy.LevelRemember, rec.DemonstratedLevel)
}

func TestBuild_PercentageClamped(t *testing.T) {
	sub := validSubmission()
	sub.Score = 120
	sub.MaxScore = 100

	rec, err := Build(sub, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rec.Percentage)
}

func TestBuild_MalformedSubmissions(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*GradedSubmission)
	}{
		{"zero max score", func(s *GradedSubmission) { s.MaxScore = 0 }},
		{"negative max score", func(s *GradedSubmission) { s.MaxScore = -10 }},
		{"missing topic", func(s *GradedSubmission) { s.TopicID = "" }},
		{"missing subject", func(s *GradedSubmission) { s.SubjectID = "" }},
		{"missing class", func(s *GradedSubmission) { s.ClassID = "" }},
		{"missing student", func(s *GradedSubmission) { s.StudentID = "" }},
		{"missing submission id", func(s *GradedSubmission) { s.SubmissionID = "" }},
		{"unknown tagged level", func(s *GradedSubmission) { s.TaggedLevel = "invent" }},
		{"unknown explicit level", func(s *GradedSubmission) {
			s.ExplicitLevelScores = map[string]float64{"invent": 50}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := validSubmission()
			tc.mutate(&sub)

			rec, err := Build(sub, nil, 0)
			assert.Nil(t, rec)
			assert.True(t, shared.IsMalformed(err))
		})
	}
}

func TestBuild_DemonstratedLevelMonotoneInScore(t *testing.T) {
	// Raising a single sub-score can only keep or raise the demonstrated
	// level with all else fixed.
	base := validSubmission()
	base.TaggedLevel = ""
	base.ExplicitLevelScores = map[string]float64{
		"understand": 70,
		"evaluate":   50,
	}

	lower, err := Build(base, nil, 0)
	require.NoError(t, err)

	raised := validSubmission()
	raised.TaggedLevel = ""
	raised.ExplicitLevelScores = map[string]float64{
		"understand": 70,
		"evaluate":   65,
	}

	higher, err := Build(raised, nil, 0)
	require.NoError(t, err)

	assert.Equal(t, taxonomy.LevelUnderstand, lower.DemonstratedLevel)
	assert.Equal(t, taxonomy.LevelEvaluate, higher.DemonstratedLevel)
	assert.False(t, lower.DemonstratedLevel.Above(higher.DemonstratedLevel))
}

func TestBuild_IsPerfect(t *testing.T) {
	sub := validSubmission()
	sub.Score = 100

	rec, err := Build(sub, nil, 0)
	require.NoError(t, err)
	assert.True(t, rec.IsPerfect())

	sub.Score = 99.5
	rec, err = Build(sub, nil, 0)
	require.NoError(t, err)
	assert.False(t, rec.IsPerfect())
}

func TestDefaultEngagementPolicy(t *testing.T) {
	policy := DefaultEngagementPolicy{}

	// Unknown timing passes the percentage through.
	assert.Equal(t, 80.0, policy.Score(80, 0, 0))

	// Working the expected duration nudges the score up.
	onPace := policy.Score(80, 30, 30)
	assert.Greater(t, onPace, 80.0)

	// Rushing far below the expected duration pulls it down, bounded.
	rushed := policy.Score(80, 1, 60)
	assert.Less(t, rushed, 80.0)
	assert.GreaterOrEqual(t, rushed, 70.0)
}

func TestLevelScores_Demonstrated_EmptyMap(t *testing.T) {
	var ls LevelScores
	assert.Equal(t, taxonomy.Lowest(), ls.Demonstrated(60))
}
