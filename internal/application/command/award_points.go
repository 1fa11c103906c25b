package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/points"
	"github.com/learnpulse/mastery-engine/internal/domain/roster"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD POINTS COMMAND
// Writes ledger entries for graded activities and unlocked achievements, and
// rebuilds the per-student aggregate from the full ledger. The ledger key
// (student, source type, source id) makes every award idempotent: a re-grade
// replaces its own prior entry instead of stacking a second one.
// ══════════════════════════════════════════════════════════════════════════════

// AwardPointsHandler maintains the points ledger and per-student aggregates.
type AwardPointsHandler struct {
	ledger     points.LedgerRepository
	aggregates points.AggregateRepository
	students   roster.Repository
	logger     *slog.Logger
}

// NewAwardPointsHandler creates a new AwardPointsHandler.
func NewAwardPointsHandler(
	ledger points.LedgerRepository,
	aggregates points.AggregateRepository,
	students roster.Repository,
	logger *slog.Logger,
) *AwardPointsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AwardPointsHandler{
		ledger:     ledger,
		aggregates: aggregates,
		students:   students,
		logger:     logger,
	}
}

// AwardForRecord writes the ledger entry earned by a graded activity. The
// entry is keyed by submission id, so regrading the same submission rewrites
// the award rather than doubling it.
func (h *AwardPointsHandler) AwardForRecord(ctx context.Context, rec *performance.Record) (points.Entry, error) {
	entry := points.Entry{
		StudentID:   rec.StudentID,
		SourceType:  points.SourceActivityGrade,
		SourceID:    rec.SubmissionID,
		Points:      points.AwardForPercentage(rec.Percentage, rec.IsPerfect()),
		Description: fmt.Sprintf("graded activity %s at %.1f%%", rec.ActivityID, rec.Percentage),
		EarnedAt:    rec.GradedAt,
	}
	if err := h.ledger.Upsert(ctx, entry); err != nil {
		return points.Entry{}, shared.WrapError("points", "AwardForRecord", shared.ErrTransientStore,
			"failed to upsert ledger entry", err)
	}

	h.logger.Debug("points awarded for activity",
		"student_id", entry.StudentID,
		"submission_id", entry.SourceID,
		"points", entry.Points,
	)
	return entry, nil
}

// AwardForAchievement writes the flat ledger entry for an unlocked
// achievement, keyed by achievement id so repeated unlock events award once.
func (h *AwardPointsHandler) AwardForAchievement(ctx context.Context, unlock performance.AchievementUnlocked) (points.Entry, error) {
	entry := points.Entry{
		StudentID:   unlock.StudentID,
		SourceType:  points.SourceAchievement,
		SourceID:    unlock.AchievementID,
		Points:      points.AchievementAward,
		Description: fmt.Sprintf("achievement unlocked: %s", unlock.Title),
		EarnedAt:    unlock.UnlockedAt,
	}
	if err := h.ledger.Upsert(ctx, entry); err != nil {
		return points.Entry{}, shared.WrapError("points", "AwardForAchievement", shared.ErrTransientStore,
			"failed to upsert ledger entry", err)
	}

	h.logger.Debug("points awarded for achievement",
		"student_id", entry.StudentID,
		"achievement_id", entry.SourceID,
		"points", entry.Points,
	)
	return entry, nil
}

// RecomputeAggregate folds the student's full ledger into the aggregate row.
// The class id comes from the roster so withdrawn students keep their totals
// attached to the class they last belonged to.
func (h *AwardPointsHandler) RecomputeAggregate(ctx context.Context, studentID string) (*points.Aggregate, error) {
	entries, err := h.ledger.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, shared.WrapError("points", "RecomputeAggregate", shared.ErrTransientStore,
			"failed to load ledger", err)
	}

	student, err := h.students.Get(ctx, studentID)
	if err != nil {
		return nil, shared.WrapError("points", "RecomputeAggregate", shared.ErrTransientStore,
			"failed to resolve student enrollment", err)
	}

	agg := points.ComputeAggregate(studentID, student.ClassID, entries)
	agg.UpdatedAt = time.Now().UTC()

	// Carry existing rank columns forward; the next class reranking owns them.
	if prev, err := h.aggregates.Get(ctx, studentID); err == nil {
		agg.ClassRank = prev.ClassRank
		agg.ClassPercentile = prev.ClassPercentile
		agg.CampusRank = prev.CampusRank
		agg.CampusPercentile = prev.CampusPercentile
	} else if !shared.IsNotFound(err) {
		return nil, shared.WrapError("points", "RecomputeAggregate", shared.ErrTransientStore,
			"failed to load previous aggregate", err)
	}

	if err := h.aggregates.Replace(ctx, agg); err != nil {
		return nil, shared.WrapError("points", "RecomputeAggregate", shared.ErrTransientStore,
			"failed to replace aggregate", err)
	}

	h.logger.Debug("points aggregate recomputed",
		"student_id", studentID,
		"total_points", agg.TotalPoints,
		"class_id", agg.ClassID,
	)
	return agg, nil
}
