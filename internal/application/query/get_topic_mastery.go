// Package query contains read operations (CQRS - Queries). Queries never
// mutate aggregates; they read the derived rows the commands maintain.
package query

import (
	"context"

	"github.com/learnpulse/mastery-engine/internal/domain/mastery"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TOPIC MASTERY QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetTopicMasteryHandler serves topic mastery reads for dashboards.
type GetTopicMasteryHandler struct {
	rows mastery.Repository
}

// NewGetTopicMasteryHandler creates a new GetTopicMasteryHandler.
func NewGetTopicMasteryHandler(rows mastery.Repository) *GetTopicMasteryHandler {
	return &GetTopicMasteryHandler{rows: rows}
}

// Handle returns the mastery row for a (student, topic) pair, or
// shared.ErrNotFound when the student has no records in the topic.
func (h *GetTopicMasteryHandler) Handle(ctx context.Context, studentID, topicID string) (*mastery.TopicMastery, error) {
	return h.rows.Get(ctx, studentID, topicID)
}

// HandleAll returns every topic mastery row for a student.
func (h *GetTopicMasteryHandler) HandleAll(ctx context.Context, studentID string) ([]*mastery.TopicMastery, error) {
	return h.rows.ListByStudent(ctx, studentID)
}
