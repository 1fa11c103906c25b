package query

import (
	"context"

	"github.com/learnpulse/mastery-engine/internal/domain/points"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT LEVEL QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentLevelHandler serves gamification level reads.
type GetStudentLevelHandler struct {
	aggregates points.AggregateRepository
	ledger     points.LedgerRepository
}

// NewGetStudentLevelHandler creates a new GetStudentLevelHandler.
func NewGetStudentLevelHandler(aggregates points.AggregateRepository, ledger points.LedgerRepository) *GetStudentLevelHandler {
	return &GetStudentLevelHandler{aggregates: aggregates, ledger: ledger}
}

// Handle derives the gamification level from the student's points total. A
// student with no aggregate yet is simply level 1 with zero points.
func (h *GetStudentLevelHandler) Handle(ctx context.Context, studentID string) (points.StudentLevel, error) {
	agg, err := h.aggregates.Get(ctx, studentID)
	if shared.IsNotFound(err) {
		return points.LevelForPoints(studentID, 0), nil
	}
	if err != nil {
		return points.StudentLevel{}, err
	}
	return points.LevelForPoints(studentID, agg.TotalPoints), nil
}

// HandleHistory returns the student's full ledger, the audit trail behind the
// level and total.
func (h *GetStudentLevelHandler) HandleHistory(ctx context.Context, studentID string) ([]points.Entry, error) {
	return h.ledger.ListByStudent(ctx, studentID)
}
