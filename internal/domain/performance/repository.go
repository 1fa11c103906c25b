package performance

import (
	"context"
)

// Repository defines the persistence contract for performance records.
// The implementation lives in the infrastructure layer (PostgreSQL).
//
// The unique constraint on SubmissionID is load-bearing: it serializes
// re-grades of the same submission without explicit locking and guarantees
// exactly one record per submission at any time.
type Repository interface {
	// Upsert inserts or fully replaces the record keyed by submission id.
	Upsert(ctx context.Context, record *Record) error

	// GetBySubmissionID returns the record for a submission, or
	// shared.ErrNotFound if none exists.
	GetBySubmissionID(ctx context.Context, submissionID string) (*Record, error)

	// ListByStudentTopic returns every record for a (student, topic) pair,
	// ordered by graded-at ascending.
	ListByStudentTopic(ctx context.Context, studentID, topicID string) ([]*Record, error)

	// ListByStudentSubject returns every record for a (student, subject)
	// pair, ordered by graded-at ascending.
	ListByStudentSubject(ctx context.Context, studentID, subjectID string) ([]*Record, error)

	// ListRecentByStudent returns the student's most recently graded
	// records, newest first, capped at limit. Seeds the in-memory
	// recent-activity window on a student's first push after a restart.
	ListRecentByStudent(ctx context.Context, studentID string, limit int) ([]*Record, error)

	// DistinctStudentTopics returns every (student, topic) pair that has at
	// least one record. Drives full aggregate rebuilds.
	DistinctStudentTopics(ctx context.Context) ([]StudentTopic, error)

	// DistinctStudentSubjects returns every (student, subject) pair that has
	// at least one record. Drives full aggregate rebuilds.
	DistinctStudentSubjects(ctx context.Context) ([]StudentSubject, error)
}

// StudentTopic is a (student, topic) aggregation key.
type StudentTopic struct {
	StudentID string
	TopicID   string
}

// StudentSubject is a (student, subject) aggregation key.
type StudentSubject struct {
	StudentID string
	SubjectID string
}
