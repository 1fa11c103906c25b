package progression

import "context"

// Repository defines the persistence contract for subject progression rows.
// Same full-replace discipline as topic mastery.
type Repository interface {
	// Replace writes the row for its (student, subject) key, overwriting
	// any previous row.
	Replace(ctx context.Context, sp *SubjectProgression) error

	// Get returns the progression for a (student, subject) pair, or
	// shared.ErrNotFound if none exists.
	Get(ctx context.Context, studentID, subjectID string) (*SubjectProgression, error)

	// ListByStudent returns all progression rows for a student.
	ListByStudent(ctx context.Context, studentID string) ([]*SubjectProgression, error)
}
