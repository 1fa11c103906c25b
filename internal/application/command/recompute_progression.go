package command

import (
	"context"
	"log/slog"

	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/progression"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE SUBJECT PROGRESSION COMMAND
// Full recompute of one (student, subject) level-counter row. Like topic
// mastery, serialization is the caller's concern and the command is
// idempotent.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeProgressionHandler rebuilds subject progression rows.
type RecomputeProgressionHandler struct {
	records performance.Repository
	rows    progression.Repository
	logger  *slog.Logger
}

// NewRecomputeProgressionHandler creates a new RecomputeProgressionHandler.
func NewRecomputeProgressionHandler(records performance.Repository, rows progression.Repository, logger *slog.Logger) *RecomputeProgressionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecomputeProgressionHandler{records: records, rows: rows, logger: logger}
}

// Handle recomputes and replaces the progression row for the pair. An empty
// record set still writes a zeroed row at the lowest taxonomy level.
func (h *RecomputeProgressionHandler) Handle(ctx context.Context, studentID, subjectID string) (*progression.SubjectProgression, error) {
	recs, err := h.records.ListByStudentSubject(ctx, studentID, subjectID)
	if err != nil {
		return nil, shared.WrapError("progression", "Recompute", shared.ErrTransientStore,
			"failed to load records for subject", err)
	}

	sp := progression.Compute(studentID, subjectID, recs)
	if err := h.rows.Replace(ctx, sp); err != nil {
		return nil, shared.WrapError("progression", "Recompute", shared.ErrTransientStore,
			"failed to replace progression row", err)
	}

	h.logger.Debug("progression row recomputed",
		"student_id", studentID,
		"subject_id", subjectID,
		"last_demonstrated_level", sp.LastDemonstratedLevel.String(),
		"total_records", sp.TotalRecords(),
	)

	return sp, nil
}
