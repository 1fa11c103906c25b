package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
	"github.com/learnpulse/mastery-engine/internal/domain/taxonomy"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERFORMANCE RECORD REPOSITORY
// The ON CONFLICT upsert on submission_id is what makes re-grades safe: the
// database serializes concurrent writes of the same submission and keeps
// exactly one row per submission at all times.
// ══════════════════════════════════════════════════════════════════════════════

// PerformanceRepo implements performance.Repository on PostgreSQL.
type PerformanceRepo struct {
	conn *Connection
}

// NewPerformanceRepo creates a new PerformanceRepo.
func NewPerformanceRepo(conn *Connection) *PerformanceRepo {
	return &PerformanceRepo{conn: conn}
}

const upsertRecordSQL = `
	INSERT INTO performance_records (
		submission_id, student_id, activity_id, topic_id, subject_id, class_id,
		score, max_score, percentage, time_spent_minutes, engagement_score,
		level_scores, demonstrated_level, submitted_at, graded_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (submission_id) DO UPDATE SET
		student_id = EXCLUDED.student_id,
		activity_id = EXCLUDED.activity_id,
		topic_id = EXCLUDED.topic_id,
		subject_id = EXCLUDED.subject_id,
		class_id = EXCLUDED.class_id,
		score = EXCLUDED.score,
		max_score = EXCLUDED.max_score,
		percentage = EXCLUDED.percentage,
		time_spent_minutes = EXCLUDED.time_spent_minutes,
		engagement_score = EXCLUDED.engagement_score,
		level_scores = EXCLUDED.level_scores,
		demonstrated_level = EXCLUDED.demonstrated_level,
		submitted_at = EXCLUDED.submitted_at,
		graded_at = EXCLUDED.graded_at
`

// Upsert inserts or fully replaces the record keyed by submission id.
func (r *PerformanceRepo) Upsert(ctx context.Context, rec *performance.Record) error {
	levelScores, err := json.Marshal(rec.LevelScores)
	if err != nil {
		return fmt.Errorf("marshal level scores: %w", err)
	}

	_, err = r.conn.Exec(ctx, upsertRecordSQL,
		rec.SubmissionID, rec.StudentID, rec.ActivityID, rec.TopicID, rec.SubjectID, rec.ClassID,
		rec.Score, rec.MaxScore, rec.Percentage, rec.TimeSpentMinutes, rec.EngagementScore,
		levelScores, rec.DemonstratedLevel.String(), rec.SubmittedAt, rec.GradedAt,
	)
	if err != nil {
		return shared.WrapError("performance", "Upsert", shared.ErrTransientStore,
			"failed to upsert record", err)
	}
	return nil
}

const selectRecordSQL = `
	SELECT submission_id, student_id, activity_id, topic_id, subject_id, class_id,
		score, max_score, percentage, time_spent_minutes, engagement_score,
		level_scores, demonstrated_level, submitted_at, graded_at
	FROM performance_records
`

// GetBySubmissionID returns the record for a submission.
func (r *PerformanceRepo) GetBySubmissionID(ctx context.Context, submissionID string) (*performance.Record, error) {
	row := r.conn.QueryRow(ctx, selectRecordSQL+" WHERE submission_id = $1", submissionID)
	rec, err := scanRecord(row)
	if IsNoRows(err) {
		return nil, shared.NewDomainError("performance", "Get", shared.ErrNotFound,
			"no record for submission")
	}
	if err != nil {
		return nil, shared.WrapError("performance", "Get", shared.ErrTransientStore,
			"failed to load record", err)
	}
	return rec, nil
}

// ListByStudentTopic returns every record for a (student, topic) pair.
func (r *PerformanceRepo) ListByStudentTopic(ctx context.Context, studentID, topicID string) ([]*performance.Record, error) {
	return r.list(ctx, selectRecordSQL+" WHERE student_id = $1 AND topic_id = $2 ORDER BY graded_at ASC",
		studentID, topicID)
}

// ListByStudentSubject returns every record for a (student, subject) pair.
func (r *PerformanceRepo) ListByStudentSubject(ctx context.Context, studentID, subjectID string) ([]*performance.Record, error) {
	return r.list(ctx, selectRecordSQL+" WHERE student_id = $1 AND subject_id = $2 ORDER BY graded_at ASC",
		studentID, subjectID)
}

// ListRecentByStudent returns the student's newest records.
func (r *PerformanceRepo) ListRecentByStudent(ctx context.Context, studentID string, limit int) ([]*performance.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.list(ctx, selectRecordSQL+" WHERE student_id = $1 ORDER BY graded_at DESC LIMIT $2",
		studentID, limit)
}

// DistinctStudentTopics returns every (student, topic) pair with records.
func (r *PerformanceRepo) DistinctStudentTopics(ctx context.Context) ([]performance.StudentTopic, error) {
	rows, err := r.conn.Query(ctx,
		"SELECT DISTINCT student_id, topic_id FROM performance_records")
	if err != nil {
		return nil, shared.WrapError("performance", "DistinctTopics", shared.ErrTransientStore,
			"failed to list pairs", err)
	}
	defer rows.Close()

	var pairs []performance.StudentTopic
	for rows.Next() {
		var p performance.StudentTopic
		if err := rows.Scan(&p.StudentID, &p.TopicID); err != nil {
			return nil, fmt.Errorf("scan student-topic pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// DistinctStudentSubjects returns every (student, subject) pair with records.
func (r *PerformanceRepo) DistinctStudentSubjects(ctx context.Context) ([]performance.StudentSubject, error) {
	rows, err := r.conn.Query(ctx,
		"SELECT DISTINCT student_id, subject_id FROM performance_records")
	if err != nil {
		return nil, shared.WrapError("performance", "DistinctSubjects", shared.ErrTransientStore,
			"failed to list pairs", err)
	}
	defer rows.Close()

	var pairs []performance.StudentSubject
	for rows.Next() {
		var p performance.StudentSubject
		if err := rows.Scan(&p.StudentID, &p.SubjectID); err != nil {
			return nil, fmt.Errorf("scan student-subject pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func (r *PerformanceRepo) list(ctx context.Context, sql string, args ...interface{}) ([]*performance.Record, error) {
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, shared.WrapError("performance", "List", shared.ErrTransientStore,
			"failed to query records", err)
	}
	defer rows.Close()

	var recs []*performance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// rowScanner abstracts pgx.Row and pgx.Rows for the shared scan helper.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*performance.Record, error) {
	var rec performance.Record
	var levelScores []byte
	var demonstratedLevel string

	err := row.Scan(
		&rec.SubmissionID, &rec.StudentID, &rec.ActivityID, &rec.TopicID, &rec.SubjectID, &rec.ClassID,
		&rec.Score, &rec.MaxScore, &rec.Percentage, &rec.TimeSpentMinutes, &rec.EngagementScore,
		&levelScores, &demonstratedLevel, &rec.SubmittedAt, &rec.GradedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(levelScores, &rec.LevelScores); err != nil {
		return nil, fmt.Errorf("unmarshal level scores: %w", err)
	}
	level, err := taxonomy.Parse(demonstratedLevel)
	if err != nil {
		return nil, fmt.Errorf("parse demonstrated level: %w", err)
	}
	rec.DemonstratedLevel = level
	return &rec, nil
}
