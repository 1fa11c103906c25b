package postgres

import (
	"context"
	"fmt"

	"github.com/learnpulse/mastery-engine/internal/domain/roster"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
)

// RosterRepo implements roster.Repository on PostgreSQL. The students table
// is a read-mostly mirror of the profile system, synced out of band.
type RosterRepo struct {
	conn *Connection
}

// NewRosterRepo creates a new RosterRepo.
func NewRosterRepo(conn *Connection) *RosterRepo {
	return &RosterRepo{conn: conn}
}

const selectStudentSQL = `
	SELECT id, account_id, display_name, class_id, campus_id, status, enrolled_at
	FROM students
`

// Get returns a student by id.
func (r *RosterRepo) Get(ctx context.Context, studentID string) (*roster.Student, error) {
	row := r.conn.QueryRow(ctx, selectStudentSQL+" WHERE id = $1", studentID)
	student, err := scanStudent(row)
	if IsNoRows(err) {
		return nil, shared.NewDomainError("roster", "Get", shared.ErrNotFound,
			"student not enrolled")
	}
	if err != nil {
		return nil, shared.WrapError("roster", "Get", shared.ErrTransientStore,
			"failed to load student", err)
	}
	return student, nil
}

// ListActiveByClass returns the actively enrolled students of a class.
func (r *RosterRepo) ListActiveByClass(ctx context.Context, classID string) ([]*roster.Student, error) {
	return r.list(ctx, selectStudentSQL+" WHERE class_id = $1 AND status = 'active' ORDER BY id", classID)
}

// ListActiveByCampus returns the actively enrolled students of a campus.
func (r *RosterRepo) ListActiveByCampus(ctx context.Context, campusID string) ([]*roster.Student, error) {
	return r.list(ctx, selectStudentSQL+" WHERE campus_id = $1 AND status = 'active' ORDER BY id", campusID)
}

// ResolveAccountID maps a student id to the dashboard account identifier.
func (r *RosterRepo) ResolveAccountID(ctx context.Context, studentID string) (string, error) {
	var accountID string
	err := r.conn.QueryRow(ctx, "SELECT account_id FROM students WHERE id = $1", studentID).Scan(&accountID)
	if IsNoRows(err) {
		return "", shared.NewDomainError("roster", "ResolveAccount", shared.ErrNotFound,
			"student not enrolled")
	}
	if err != nil {
		return "", shared.WrapError("roster", "ResolveAccount", shared.ErrTransientStore,
			"failed to resolve account", err)
	}
	return accountID, nil
}

// ListClassIDs returns every class with at least one active student.
func (r *RosterRepo) ListClassIDs(ctx context.Context) ([]string, error) {
	return r.listIDs(ctx, "SELECT DISTINCT class_id FROM students WHERE status = 'active' ORDER BY class_id")
}

// ListCampusIDs returns every campus with at least one active student.
func (r *RosterRepo) ListCampusIDs(ctx context.Context) ([]string, error) {
	return r.listIDs(ctx, "SELECT DISTINCT campus_id FROM students WHERE status = 'active' AND campus_id <> '' ORDER BY campus_id")
}

func (r *RosterRepo) list(ctx context.Context, sql string, args ...interface{}) ([]*roster.Student, error) {
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, shared.WrapError("roster", "List", shared.ErrTransientStore,
			"failed to query students", err)
	}
	defer rows.Close()

	var out []*roster.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		out = append(out, student)
	}
	return out, rows.Err()
}

func (r *RosterRepo) listIDs(ctx context.Context, sql string) ([]string, error) {
	rows, err := r.conn.Query(ctx, sql)
	if err != nil {
		return nil, shared.WrapError("roster", "ListIDs", shared.ErrTransientStore,
			"failed to query ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanStudent(row rowScanner) (*roster.Student, error) {
	var s roster.Student
	var status string
	err := row.Scan(&s.ID, &s.AccountID, &s.DisplayName, &s.ClassID, &s.CampusID, &status, &s.EnrolledAt)
	if err != nil {
		return nil, err
	}
	s.Status = roster.EnrollmentStatus(status)
	return &s, nil
}
