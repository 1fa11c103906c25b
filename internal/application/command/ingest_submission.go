// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INGEST SUBMISSION COMMAND
// Converts one graded submission into a normalized performance record and
// upserts it keyed by submission id. This is the single entry point through
// which grading events become engine state.
// ══════════════════════════════════════════════════════════════════════════════

// IngestSubmissionHandler builds and persists performance records.
type IngestSubmissionHandler struct {
	records    performance.Repository
	engagement performance.EngagementPolicy
	threshold  float64
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewIngestSubmissionHandler creates a new IngestSubmissionHandler.
// A nil engagement policy falls back to the default bounded time-ratio
// policy; a non-positive threshold falls back to the default 60.
func NewIngestSubmissionHandler(
	records performance.Repository,
	engagement performance.EngagementPolicy,
	demonstrationThreshold float64,
	logger *slog.Logger,
) *IngestSubmissionHandler {
	if engagement == nil {
		engagement = performance.DefaultEngagementPolicy{}
	}
	if demonstrationThreshold <= 0 {
		demonstrationThreshold = performance.DefaultDemonstrationThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestSubmissionHandler{
		records:    records,
		engagement: engagement,
		threshold:  demonstrationThreshold,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Handle validates the submission, builds the record, and upserts it.
// Malformed submissions are rejected with shared.ErrMalformedSubmission and
// leave no trace in the store: the grade itself already succeeded upstream,
// only the analytics are skipped.
func (h *IngestSubmissionHandler) Handle(ctx context.Context, sub performance.GradedSubmission) (*performance.Record, error) {
	if err := h.validate.Struct(sub); err != nil {
		h.logger.Warn("rejecting malformed submission",
			"submission_id", sub.SubmissionID,
			"student_id", sub.StudentID,
			"error", err,
		)
		return nil, shared.WrapError("performance", "Ingest", shared.ErrMalformedSubmission,
			"submission failed structural validation", err)
	}

	record, err := performance.Build(sub, h.engagement, h.threshold)
	if err != nil {
		h.logger.Warn("rejecting malformed submission",
			"submission_id", sub.SubmissionID,
			"student_id", sub.StudentID,
			"error", err,
		)
		return nil, err
	}

	if err := h.records.Upsert(ctx, record); err != nil {
		return nil, shared.WrapError("performance", "Ingest", shared.ErrTransientStore,
			"failed to upsert performance record", err)
	}

	h.logger.Debug("performance record upserted",
		"submission_id", record.SubmissionID,
		"student_id", record.StudentID,
		"percentage", record.Percentage,
		"demonstrated_level", record.DemonstratedLevel.String(),
	)

	return record, nil
}
