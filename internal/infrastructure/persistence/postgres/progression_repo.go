package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/learnpulse/mastery-engine/internal/domain/progression"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
	"github.com/learnpulse/mastery-engine/internal/domain/taxonomy"
)

// ProgressionRepo implements progression.Repository on PostgreSQL.
type ProgressionRepo struct {
	conn *Connection
}

// NewProgressionRepo creates a new ProgressionRepo.
func NewProgressionRepo(conn *Connection) *ProgressionRepo {
	return &ProgressionRepo{conn: conn}
}

const replaceProgressionSQL = `
	INSERT INTO subject_progression (
		student_id, subject_id, level_counts, last_demonstrated_level, last_activity_at
	) VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (student_id, subject_id) DO UPDATE SET
		level_counts = EXCLUDED.level_counts,
		last_demonstrated_level = EXCLUDED.last_demonstrated_level,
		last_activity_at = EXCLUDED.last_activity_at
`

// Replace writes the row for its (student, subject) key.
func (r *ProgressionRepo) Replace(ctx context.Context, sp *progression.SubjectProgression) error {
	counts, err := json.Marshal(sp.LevelCounts)
	if err != nil {
		return fmt.Errorf("marshal level counts: %w", err)
	}

	_, err = r.conn.Exec(ctx, replaceProgressionSQL,
		sp.StudentID, sp.SubjectID, counts, sp.LastDemonstratedLevel.String(), sp.LastActivityAt)
	if err != nil {
		return shared.WrapError("progression", "Replace", shared.ErrTransientStore,
			"failed to replace progression row", err)
	}
	return nil
}

const selectProgressionSQL = `
	SELECT student_id, subject_id, level_counts, last_demonstrated_level, last_activity_at
	FROM subject_progression
`

// Get returns the progression for a (student, subject) pair.
func (r *ProgressionRepo) Get(ctx context.Context, studentID, subjectID string) (*progression.SubjectProgression, error) {
	row := r.conn.QueryRow(ctx, selectProgressionSQL+" WHERE student_id = $1 AND subject_id = $2",
		studentID, subjectID)
	sp, err := scanProgression(row)
	if IsNoRows(err) {
		return nil, shared.NewDomainError("progression", "Get", shared.ErrNotFound,
			"no progression row for pair")
	}
	if err != nil {
		return nil, shared.WrapError("progression", "Get", shared.ErrTransientStore,
			"failed to load progression row", err)
	}
	return sp, nil
}

// ListByStudent returns all progression rows for a student.
func (r *ProgressionRepo) ListByStudent(ctx context.Context, studentID string) ([]*progression.SubjectProgression, error) {
	rows, err := r.conn.Query(ctx, selectProgressionSQL+" WHERE student_id = $1 ORDER BY subject_id", studentID)
	if err != nil {
		return nil, shared.WrapError("progression", "List", shared.ErrTransientStore,
			"failed to query progression rows", err)
	}
	defer rows.Close()

	var out []*progression.SubjectProgression
	for rows.Next() {
		sp, err := scanProgression(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progression row: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func scanProgression(row rowScanner) (*progression.SubjectProgression, error) {
	var sp progression.SubjectProgression
	var counts []byte
	var lastLevel string

	err := row.Scan(&sp.StudentID, &sp.SubjectID, &counts, &lastLevel, &sp.LastActivityAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(counts, &sp.LevelCounts); err != nil {
		return nil, fmt.Errorf("unmarshal level counts: %w", err)
	}
	level, err := taxonomy.Parse(lastLevel)
	if err != nil {
		return nil, fmt.Errorf("parse last demonstrated level: %w", err)
	}
	sp.LastDemonstratedLevel = level
	return &sp, nil
}
