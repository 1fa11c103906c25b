package command

import (
	"context"
	"log/slog"

	"github.com/learnpulse/mastery-engine/internal/domain/mastery"
	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE TOPIC MASTERY COMMAND
// Full recompute of one (student, topic) aggregate from the current record
// set. Callers serialize invocations per student; the command itself is
// lock-free and idempotent.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeMasteryHandler rebuilds topic mastery aggregates.
type RecomputeMasteryHandler struct {
	records performance.Repository
	rows    mastery.Repository
	logger  *slog.Logger
}

// NewRecomputeMasteryHandler creates a new RecomputeMasteryHandler.
func NewRecomputeMasteryHandler(records performance.Repository, rows mastery.Repository, logger *slog.Logger) *RecomputeMasteryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecomputeMasteryHandler{records: records, rows: rows, logger: logger}
}

// Handle recomputes and replaces the mastery row for the pair. An empty
// record set deletes the row instead, so retractions fully disappear from
// dashboards.
func (h *RecomputeMasteryHandler) Handle(ctx context.Context, studentID, topicID string) (*mastery.TopicMastery, error) {
	recs, err := h.records.ListByStudentTopic(ctx, studentID, topicID)
	if err != nil {
		return nil, shared.WrapError("mastery", "Recompute", shared.ErrTransientStore,
			"failed to load records for topic", err)
	}

	tm := mastery.Compute(studentID, topicID, recs)
	if tm == nil {
		if err := h.rows.Delete(ctx, studentID, topicID); err != nil && !shared.IsNotFound(err) {
			return nil, shared.WrapError("mastery", "Recompute", shared.ErrTransientStore,
				"failed to delete empty mastery row", err)
		}
		h.logger.Debug("mastery row deleted, no records remain",
			"student_id", studentID, "topic_id", topicID)
		return nil, nil
	}

	if err := h.rows.Replace(ctx, tm); err != nil {
		return nil, shared.WrapError("mastery", "Recompute", shared.ErrTransientStore,
			"failed to replace mastery row", err)
	}

	h.logger.Debug("mastery row recomputed",
		"student_id", studentID,
		"topic_id", topicID,
		"mastery_percentage", tm.MasteryPercentage,
		"mastery_label", string(tm.MasteryLabel),
		"activities", tm.ActivitiesCompleted,
	)

	return tm, nil
}
