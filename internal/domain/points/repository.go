package points

import (
	"context"
	"time"
)

// LedgerRepository defines the persistence contract for the points ledger.
type LedgerRepository interface {
	// Upsert writes an entry keyed by (student, source type, source id).
	// Re-awarding the same source replaces the prior entry, which is what
	// makes re-grades safe for the ledger.
	Upsert(ctx context.Context, entry Entry) error

	// ListByStudent returns all ledger entries for a student.
	ListByStudent(ctx context.Context, studentID string) ([]Entry, error)
}

// AggregateRepository defines the persistence contract for per-student
// aggregates and class leaderboards.
type AggregateRepository interface {
	// Replace writes the aggregate row for its student, overwriting any
	// previous row.
	Replace(ctx context.Context, agg *Aggregate) error

	// Get returns the aggregate for a student, or shared.ErrNotFound.
	Get(ctx context.Context, studentID string) (*Aggregate, error)

	// ListByClass returns the aggregates of every student in a class.
	ListByClass(ctx context.Context, classID string) ([]*Aggregate, error)

	// ListByStudentIDs returns the aggregates for the given students.
	// Students with no aggregate yet are simply absent from the result.
	ListByStudentIDs(ctx context.Context, studentIDs []string) ([]*Aggregate, error)

	// UpdateClassRanks persists the class rank/percentile columns produced
	// by a class reranking in one transaction, so readers never observe a
	// partially applied ranking.
	UpdateClassRanks(ctx context.Context, classID string, standings []Standing) error

	// UpdateCampusRanks persists the campus rank/percentile columns in one
	// transaction.
	UpdateCampusRanks(ctx context.Context, campusID string, standings []Standing) error
}

// SnapshotRepository persists leaderboard snapshots for rank-movement
// reporting.
type SnapshotRepository interface {
	// Save stores a snapshot with its standings.
	Save(ctx context.Context, snapshot *Snapshot) error

	// GetLatest returns the most recent snapshot for a class, or
	// shared.ErrNotFound when the class was never ranked.
	GetLatest(ctx context.Context, classID string) (*Snapshot, error)

	// DeleteOlderThan prunes snapshots past the retention window and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// LeaderboardCache caches ranked class leaderboards. Separate from the
// repository so implementations can vary (Redis in production, in-memory or
// no-op in tests); always injected, never ambient.
type LeaderboardCache interface {
	// GetStandings returns the cached leaderboard for a class, or nil on a
	// cache miss.
	GetStandings(ctx context.Context, classID string) ([]Standing, error)

	// SetStandings caches the leaderboard with a TTL.
	SetStandings(ctx context.Context, classID string, standings []Standing, ttl time.Duration) error

	// Invalidate drops the cached leaderboard for a class.
	Invalidate(ctx context.Context, classID string) error
}
