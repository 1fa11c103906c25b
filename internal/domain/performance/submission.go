package performance

import (
	"time"

	"github.com/learnpulse/mastery-engine/internal/domain/shared"
)

// GradedSubmission is the inbound event payload from the grading collaborator.
// Scoring of raw answers happens upstream; the engine only consumes the
// already-graded tuple. Field-level constraints are enforced twice: by the
// validator at the transport boundary and by validate() here, so the builder
// stays safe when called directly.
type GradedSubmission struct {
	SubmissionID string `json:"submission_id" validate:"required"`
	StudentID    string `json:"student_id" validate:"required"`
	ActivityID   string `json:"activity_id" validate:"required"`
	TopicID      string `json:"topic_id" validate:"required"`
	SubjectID    string `json:"subject_id" validate:"required"`
	ClassID      string `json:"class_id" validate:"required"`

	Score    float64 `json:"score" validate:"gte=0"`
	MaxScore float64 `json:"max_score" validate:"gt=0"`

	// ExplicitLevelScores optionally carries per-level sub-scores keyed by
	// canonical level name, each in [0,100]. When present it wins over
	// TaggedLevel.
	ExplicitLevelScores map[string]float64 `json:"explicit_level_scores,omitempty" validate:"omitempty,dive,gte=0,lte=100"`

	// TaggedLevel is the activity's single tagged taxonomy level, used to
	// synthesize a singleton level-score map when no explicit scores exist.
	TaggedLevel string `json:"tagged_level,omitempty"`

	TimeSpentMinutes float64 `json:"time_spent_minutes,omitempty" validate:"gte=0"`

	// ExpectedMinutes is the authored expected duration of the activity,
	// used by the engagement policy. Zero means unknown.
	ExpectedMinutes float64 `json:"expected_minutes,omitempty" validate:"gte=0"`

	SubmittedAt time.Time `json:"submitted_at"`
	GradedAt    time.Time `json:"graded_at" validate:"required"`
}

// validate applies the malformed-submission rules from the builder contract.
func (s GradedSubmission) validate() error {
	switch {
	case s.SubmissionID == "":
		return shared.NewDomainError("performance", "Build", shared.ErrMalformedSubmission, "missing submission id")
	case s.StudentID == "":
		return shared.NewDomainError("performance", "Build", shared.ErrMalformedSubmission, "missing student id")
	case s.MaxScore <= 0:
		return shared.NewDomainError("performance", "Build", shared.ErrMalformedSubmission, "max score must be positive")
	case s.TopicID == "":
		return shared.NewDomainError("performance", "Build", shared.ErrMalformedSubmission, "missing topic id")
	case s.SubjectID == "":
		return shared.NewDomainError("performance", "Build", shared.ErrMalformedSubmission, "missing subject id")
	case s.ClassID == "":
		return shared.NewDomainError("performance", "Build", shared.ErrMalformedSubmission, "missing class id")
	}
	return nil
}

// AchievementUnlocked is the inbound event payload from the achievement
// collaborator. Unlocks feed the points ledger with a flat award recorded
// once per achievement instance.
type AchievementUnlocked struct {
	StudentID     string    `json:"student_id" validate:"required"`
	AchievementID string    `json:"achievement_id" validate:"required"`
	Title         string    `json:"title,omitempty"`
	UnlockedAt    time.Time `json:"unlocked_at" validate:"required"`
}
