package mastery

import "context"

// Repository defines the persistence contract for topic mastery aggregates.
// Rows are always replaced wholesale; the table is safely droppable and fully
// rebuildable by replaying the performance record set.
type Repository interface {
	// Replace writes the aggregate row for its (student, topic) key,
	// overwriting any previous row.
	Replace(ctx context.Context, tm *TopicMastery) error

	// Get returns the aggregate for a (student, topic) pair, or
	// shared.ErrNotFound if none exists.
	Get(ctx context.Context, studentID, topicID string) (*TopicMastery, error)

	// ListByStudent returns all topic mastery rows for a student.
	ListByStudent(ctx context.Context, studentID string) ([]*TopicMastery, error)

	// Delete removes the aggregate row for a pair whose record set became
	// empty.
	Delete(ctx context.Context, studentID, topicID string) error
}
