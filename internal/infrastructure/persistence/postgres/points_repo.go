package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/learnpulse/mastery-engine/internal/domain/points"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// POINTS LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepo implements points.LedgerRepository on PostgreSQL.
type LedgerRepo struct {
	conn *Connection
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(conn *Connection) *LedgerRepo {
	return &LedgerRepo{conn: conn}
}

const upsertEntrySQL = `
	INSERT INTO points_ledger (student_id, source_type, source_id, points, description, earned_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (student_id, source_type, source_id) DO UPDATE SET
		points = EXCLUDED.points,
		description = EXCLUDED.description,
		earned_at = EXCLUDED.earned_at
`

// Upsert writes an entry keyed by (student, source type, source id).
func (r *LedgerRepo) Upsert(ctx context.Context, entry points.Entry) error {
	_, err := r.conn.Exec(ctx, upsertEntrySQL,
		entry.StudentID, string(entry.SourceType), entry.SourceID,
		entry.Points, entry.Description, entry.EarnedAt)
	if err != nil {
		return shared.WrapError("points", "LedgerUpsert", shared.ErrTransientStore,
			"failed to upsert ledger entry", err)
	}
	return nil
}

// ListByStudent returns all ledger entries for a student, oldest first.
func (r *LedgerRepo) ListByStudent(ctx context.Context, studentID string) ([]points.Entry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT student_id, source_type, source_id, points, description, earned_at
		FROM points_ledger WHERE student_id = $1 ORDER BY earned_at ASC`, studentID)
	if err != nil {
		return nil, shared.WrapError("points", "LedgerList", shared.ErrTransientStore,
			"failed to query ledger", err)
	}
	defer rows.Close()

	var entries []points.Entry
	for rows.Next() {
		var e points.Entry
		var sourceType string
		if err := rows.Scan(&e.StudentID, &sourceType, &e.SourceID, &e.Points, &e.Description, &e.EarnedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.SourceType = points.SourceType(sourceType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// POINTS AGGREGATES
// ══════════════════════════════════════════════════════════════════════════════

// AggregateRepo implements points.AggregateRepository on PostgreSQL.
type AggregateRepo struct {
	conn *Connection
}

// NewAggregateRepo creates a new AggregateRepo.
func NewAggregateRepo(conn *Connection) *AggregateRepo {
	return &AggregateRepo{conn: conn}
}

const replaceAggregateSQL = `
	INSERT INTO points_aggregates (
		student_id, class_id, total_points, last_earned_at,
		class_rank, class_percentile, campus_rank, campus_percentile, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (student_id) DO UPDATE SET
		class_id = EXCLUDED.class_id,
		total_points = EXCLUDED.total_points,
		last_earned_at = EXCLUDED.last_earned_at,
		class_rank = EXCLUDED.class_rank,
		class_percentile = EXCLUDED.class_percentile,
		campus_rank = EXCLUDED.campus_rank,
		campus_percentile = EXCLUDED.campus_percentile,
		updated_at = EXCLUDED.updated_at
`

// Replace writes the aggregate row for its student.
func (r *AggregateRepo) Replace(ctx context.Context, agg *points.Aggregate) error {
	_, err := r.conn.Exec(ctx, replaceAggregateSQL,
		agg.StudentID, agg.ClassID, agg.TotalPoints, nullableTime(agg.LastEarnedAt),
		agg.ClassRank, agg.ClassPercentile, agg.CampusRank, agg.CampusPercentile, agg.UpdatedAt)
	if err != nil {
		return shared.WrapError("points", "AggregateReplace", shared.ErrTransientStore,
			"failed to replace aggregate", err)
	}
	return nil
}

const selectAggregateSQL = `
	SELECT student_id, class_id, total_points, last_earned_at,
		class_rank, class_percentile, campus_rank, campus_percentile, updated_at
	FROM points_aggregates
`

// Get returns the aggregate for a student.
func (r *AggregateRepo) Get(ctx context.Context, studentID string) (*points.Aggregate, error) {
	row := r.conn.QueryRow(ctx, selectAggregateSQL+" WHERE student_id = $1", studentID)
	agg, err := scanAggregate(row)
	if IsNoRows(err) {
		return nil, shared.NewDomainError("points", "AggregateGet", shared.ErrNotFound,
			"no aggregate for student")
	}
	if err != nil {
		return nil, shared.WrapError("points", "AggregateGet", shared.ErrTransientStore,
			"failed to load aggregate", err)
	}
	return agg, nil
}

// ListByClass returns the aggregates of every student in a class.
func (r *AggregateRepo) ListByClass(ctx context.Context, classID string) ([]*points.Aggregate, error) {
	return r.list(ctx, selectAggregateSQL+" WHERE class_id = $1", classID)
}

// ListByStudentIDs returns the aggregates for the given students.
func (r *AggregateRepo) ListByStudentIDs(ctx context.Context, studentIDs []string) ([]*points.Aggregate, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	return r.list(ctx, selectAggregateSQL+" WHERE student_id = ANY($1)", studentIDs)
}

func (r *AggregateRepo) list(ctx context.Context, sql string, args ...interface{}) ([]*points.Aggregate, error) {
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, shared.WrapError("points", "AggregateList", shared.ErrTransientStore,
			"failed to query aggregates", err)
	}
	defer rows.Close()

	var out []*points.Aggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

// UpdateClassRanks persists class rank columns for every standing in one
// transaction.
func (r *AggregateRepo) UpdateClassRanks(ctx context.Context, classID string, standings []points.Standing) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, s := range standings {
			_, err := tx.Exec(ctx, `
				UPDATE points_aggregates
				SET class_rank = $1, class_percentile = $2, updated_at = NOW()
				WHERE student_id = $3 AND class_id = $4`,
				s.Rank, s.Percentile, s.StudentID, classID)
			if err != nil {
				return fmt.Errorf("update class rank for %s: %w", s.StudentID, err)
			}
		}
		return nil
	})
	if err != nil {
		return shared.WrapError("points", "UpdateClassRanks", shared.ErrTransientStore,
			"failed to persist class ranks", err)
	}
	return nil
}

// UpdateCampusRanks persists campus rank columns in one transaction.
func (r *AggregateRepo) UpdateCampusRanks(ctx context.Context, campusID string, standings []points.Standing) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, s := range standings {
			_, err := tx.Exec(ctx, `
				UPDATE points_aggregates
				SET campus_rank = $1, campus_percentile = $2, updated_at = NOW()
				WHERE student_id = $3`,
				s.Rank, s.Percentile, s.StudentID)
			if err != nil {
				return fmt.Errorf("update campus rank for %s: %w", s.StudentID, err)
			}
		}
		return nil
	})
	if err != nil {
		return shared.WrapError("points", "UpdateCampusRanks", shared.ErrTransientStore,
			"failed to persist campus ranks", err)
	}
	return nil
}

func scanAggregate(row rowScanner) (*points.Aggregate, error) {
	var agg points.Aggregate
	var lastEarned *time.Time

	err := row.Scan(
		&agg.StudentID, &agg.ClassID, &agg.TotalPoints, &lastEarned,
		&agg.ClassRank, &agg.ClassPercentile, &agg.CampusRank, &agg.CampusPercentile, &agg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastEarned != nil {
		agg.LastEarnedAt = *lastEarned
	}
	return &agg, nil
}

// nullableTime maps the zero time onto SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotRepo implements points.SnapshotRepository on PostgreSQL. Standings
// are stored as a JSONB document; snapshots are read back whole, never
// queried into.
type SnapshotRepo struct {
	conn *Connection
}

// NewSnapshotRepo creates a new SnapshotRepo.
func NewSnapshotRepo(conn *Connection) *SnapshotRepo {
	return &SnapshotRepo{conn: conn}
}

// Save stores a snapshot with its standings.
func (r *SnapshotRepo) Save(ctx context.Context, snapshot *points.Snapshot) error {
	standings, err := json.Marshal(snapshot.Standings)
	if err != nil {
		return fmt.Errorf("marshal standings: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO leaderboard_snapshots (id, class_id, standings, created_at)
		VALUES ($1, $2, $3, $4)`,
		snapshot.ID, snapshot.ClassID, standings, snapshot.CreatedAt)
	if err != nil {
		return shared.WrapError("points", "SnapshotSave", shared.ErrTransientStore,
			"failed to save snapshot", err)
	}
	return nil
}

// GetLatest returns the most recent snapshot for a class.
func (r *SnapshotRepo) GetLatest(ctx context.Context, classID string) (*points.Snapshot, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT id, class_id, standings, created_at
		FROM leaderboard_snapshots
		WHERE class_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, classID)

	var snapshot points.Snapshot
	var standings []byte
	err := row.Scan(&snapshot.ID, &snapshot.ClassID, &standings, &snapshot.CreatedAt)
	if IsNoRows(err) {
		return nil, shared.NewDomainError("points", "SnapshotGet", shared.ErrNotFound,
			"class was never ranked")
	}
	if err != nil {
		return nil, shared.WrapError("points", "SnapshotGet", shared.ErrTransientStore,
			"failed to load snapshot", err)
	}
	if err := json.Unmarshal(standings, &snapshot.Standings); err != nil {
		return nil, fmt.Errorf("unmarshal standings: %w", err)
	}
	return &snapshot, nil
}

// DeleteOlderThan prunes snapshots past the retention window.
func (r *SnapshotRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.conn.Exec(ctx,
		"DELETE FROM leaderboard_snapshots WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, shared.WrapError("points", "SnapshotPrune", shared.ErrTransientStore,
			"failed to prune snapshots", err)
	}
	return int(tag.RowsAffected()), nil
}
