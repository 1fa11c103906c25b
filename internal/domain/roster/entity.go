// Package roster is the engine's read-side view of class enrollment. The
// student-profile system owns this data; the engine only needs enough of it
// to scope rankings to actively enrolled students and to resolve the account
// identifier that dashboard notifications are keyed by.
package roster

import (
	"context"
	"time"
)

// EnrollmentStatus is the student's standing within a class.
type EnrollmentStatus string

const (
	// StatusActive - counted in rankings and notified.
	StatusActive EnrollmentStatus = "active"
	// StatusWithdrawn - excluded from rankings, ledger retained.
	StatusWithdrawn EnrollmentStatus = "withdrawn"
	// StatusGraduated - excluded from rankings, ledger retained.
	StatusGraduated EnrollmentStatus = "graduated"
)

// IsRanked reports whether the status participates in class rankings.
func (s EnrollmentStatus) IsRanked() bool {
	return s == StatusActive
}

// Student is one enrolled student as the engine sees them.
type Student struct {
	ID          string
	AccountID   string
	DisplayName string
	ClassID     string
	CampusID    string
	Status      EnrollmentStatus
	EnrolledAt  time.Time
}

// Repository defines the read-only enrollment lookups the engine performs.
type Repository interface {
	// Get returns a student by id, or shared.ErrNotFound.
	Get(ctx context.Context, studentID string) (*Student, error)

	// ListActiveByClass returns the actively enrolled students of a class.
	ListActiveByClass(ctx context.Context, classID string) ([]*Student, error)

	// ListActiveByCampus returns the actively enrolled students of a campus.
	ListActiveByCampus(ctx context.Context, campusID string) ([]*Student, error)

	// ResolveAccountID maps a student id to the account identifier that
	// dashboard notifications carry.
	ResolveAccountID(ctx context.Context, studentID string) (string, error)

	// ListClassIDs returns every class with at least one active student.
	// Drives full rebuilds.
	ListClassIDs(ctx context.Context) ([]string, error)

	// ListCampusIDs returns every campus with at least one active student.
	ListCampusIDs(ctx context.Context) ([]string, error)
}
