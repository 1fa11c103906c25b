package query

import (
	"context"

	"github.com/learnpulse/mastery-engine/internal/domain/progression"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
	"github.com/learnpulse/mastery-engine/internal/domain/taxonomy"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SUBJECT PROGRESSION QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetSubjectProgressionHandler serves subject progression reads.
type GetSubjectProgressionHandler struct {
	rows progression.Repository
}

// NewGetSubjectProgressionHandler creates a new GetSubjectProgressionHandler.
func NewGetSubjectProgressionHandler(rows progression.Repository) *GetSubjectProgressionHandler {
	return &GetSubjectProgressionHandler{rows: rows}
}

// Handle returns the progression row for a (student, subject) pair. A student
// with no records in the subject gets a synthesized zero row at the lowest
// taxonomy level rather than an error, matching what the aggregator would
// have computed for an empty set.
func (h *GetSubjectProgressionHandler) Handle(ctx context.Context, studentID, subjectID string) (*progression.SubjectProgression, error) {
	sp, err := h.rows.Get(ctx, studentID, subjectID)
	if shared.IsNotFound(err) {
		return progression.Compute(studentID, subjectID, nil), nil
	}
	if err != nil {
		return nil, err
	}
	return sp, nil
}

// HandleAll returns every progression row for a student.
func (h *GetSubjectProgressionHandler) HandleAll(ctx context.Context, studentID string) ([]*progression.SubjectProgression, error) {
	return h.rows.ListByStudent(ctx, studentID)
}

// LevelBreakdown is a presentation-friendly view of one progression row with
// levels in canonical taxonomy order.
type LevelBreakdown struct {
	Level taxonomy.Level
	Name  string
	Count int
}

// Breakdown flattens a progression row's counters into taxonomy order.
func Breakdown(sp *progression.SubjectProgression) []LevelBreakdown {
	out := make([]LevelBreakdown, 0, taxonomy.Count)
	for _, level := range taxonomy.Levels() {
		out = append(out, LevelBreakdown{
			Level: level,
			Name:  level.String(),
			Count: sp.LevelCounts[level],
		})
	}
	return out
}
