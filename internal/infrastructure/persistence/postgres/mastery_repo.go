package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/learnpulse/mastery-engine/internal/domain/mastery"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
	"github.com/learnpulse/mastery-engine/internal/domain/taxonomy"
)

// MasteryRepo implements mastery.Repository on PostgreSQL. Rows are written
// wholesale via upsert; there are no partial updates.
type MasteryRepo struct {
	conn *Connection
}

// NewMasteryRepo creates a new MasteryRepo.
func NewMasteryRepo(conn *Connection) *MasteryRepo {
	return &MasteryRepo{conn: conn}
}

const replaceMasterySQL = `
	INSERT INTO topic_mastery (
		student_id, topic_id, mastery_percentage, mastery_label,
		level_distribution, highest_demonstrated_level,
		activities_completed, total_time_spent_minutes, last_activity_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (student_id, topic_id) DO UPDATE SET
		mastery_percentage = EXCLUDED.mastery_percentage,
		mastery_label = EXCLUDED.mastery_label,
		level_distribution = EXCLUDED.level_distribution,
		highest_demonstrated_level = EXCLUDED.highest_demonstrated_level,
		activities_completed = EXCLUDED.activities_completed,
		total_time_spent_minutes = EXCLUDED.total_time_spent_minutes,
		last_activity_at = EXCLUDED.last_activity_at
`

// Replace writes the aggregate row for its (student, topic) key.
func (r *MasteryRepo) Replace(ctx context.Context, tm *mastery.TopicMastery) error {
	distribution, err := json.Marshal(tm.LevelDistribution)
	if err != nil {
		return fmt.Errorf("marshal level distribution: %w", err)
	}

	_, err = r.conn.Exec(ctx, replaceMasterySQL,
		tm.StudentID, tm.TopicID, tm.MasteryPercentage, string(tm.MasteryLabel),
		distribution, tm.HighestDemonstratedLevel.String(),
		tm.ActivitiesCompleted, tm.TotalTimeSpentMinutes, tm.LastActivityAt,
	)
	if err != nil {
		return shared.WrapError("mastery", "Replace", shared.ErrTransientStore,
			"failed to replace mastery row", err)
	}
	return nil
}

const selectMasterySQL = `
	SELECT student_id, topic_id, mastery_percentage, mastery_label,
		level_distribution, highest_demonstrated_level,
		activities_completed, total_time_spent_minutes, last_activity_at
	FROM topic_mastery
`

// Get returns the aggregate for a (student, topic) pair.
func (r *MasteryRepo) Get(ctx context.Context, studentID, topicID string) (*mastery.TopicMastery, error) {
	row := r.conn.QueryRow(ctx, selectMasterySQL+" WHERE student_id = $1 AND topic_id = $2",
		studentID, topicID)
	tm, err := scanMastery(row)
	if IsNoRows(err) {
		return nil, shared.NewDomainError("mastery", "Get", shared.ErrNotFound,
			"no mastery row for pair")
	}
	if err != nil {
		return nil, shared.WrapError("mastery", "Get", shared.ErrTransientStore,
			"failed to load mastery row", err)
	}
	return tm, nil
}

// ListByStudent returns all topic mastery rows for a student.
func (r *MasteryRepo) ListByStudent(ctx context.Context, studentID string) ([]*mastery.TopicMastery, error) {
	rows, err := r.conn.Query(ctx, selectMasterySQL+" WHERE student_id = $1 ORDER BY topic_id", studentID)
	if err != nil {
		return nil, shared.WrapError("mastery", "List", shared.ErrTransientStore,
			"failed to query mastery rows", err)
	}
	defer rows.Close()

	var out []*mastery.TopicMastery
	for rows.Next() {
		tm, err := scanMastery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mastery row: %w", err)
		}
		out = append(out, tm)
	}
	return out, rows.Err()
}

// Delete removes the aggregate row for a pair.
func (r *MasteryRepo) Delete(ctx context.Context, studentID, topicID string) error {
	tag, err := r.conn.Exec(ctx,
		"DELETE FROM topic_mastery WHERE student_id = $1 AND topic_id = $2",
		studentID, topicID)
	if err != nil {
		return shared.WrapError("mastery", "Delete", shared.ErrTransientStore,
			"failed to delete mastery row", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("mastery", "Delete", shared.ErrNotFound,
			"no mastery row for pair")
	}
	return nil
}

func scanMastery(row rowScanner) (*mastery.TopicMastery, error) {
	var tm mastery.TopicMastery
	var label, highest string
	var distribution []byte

	err := row.Scan(
		&tm.StudentID, &tm.TopicID, &tm.MasteryPercentage, &label,
		&distribution, &highest,
		&tm.ActivitiesCompleted, &tm.TotalTimeSpentMinutes, &tm.LastActivityAt,
	)
	if err != nil {
		return nil, err
	}

	tm.MasteryLabel = mastery.Label(label)
	if err := json.Unmarshal(distribution, &tm.LevelDistribution); err != nil {
		return nil, fmt.Errorf("unmarshal level distribution: %w", err)
	}
	level, err := taxonomy.Parse(highest)
	if err != nil {
		return nil, fmt.Errorf("parse highest demonstrated level: %w", err)
	}
	tm.HighestDemonstratedLevel = level
	return &tm, nil
}
