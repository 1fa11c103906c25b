package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/learnpulse/mastery-engine/internal/domain/points"
	"github.com/learnpulse/mastery-engine/internal/domain/roster"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
	"github.com/learnpulse/mastery-engine/pkg/keymutex"
)

// ══════════════════════════════════════════════════════════════════════════════
// RERANK CLASS COMMAND
// Rebuilds the full leaderboard of one class: load every active student's
// aggregate, sort into the dense total order, persist ranks transactionally,
// snapshot for rank-movement reporting, refresh the cache. Rerankings of the
// same class serialize on a per-class lock; different classes run in
// parallel.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultLeaderboardTTL bounds staleness of the cached leaderboard when an
// invalidation is lost.
const DefaultLeaderboardTTL = 5 * time.Minute

// RerankClassHandler recomputes class leaderboards.
type RerankClassHandler struct {
	students   roster.Repository
	aggregates points.AggregateRepository
	snapshots  points.SnapshotRepository
	cache      points.LeaderboardCache
	classLocks *keymutex.Map
	lockWait   time.Duration
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// NewRerankClassHandler creates a new RerankClassHandler. cache may be nil
// when leaderboard caching is disabled.
func NewRerankClassHandler(
	students roster.Repository,
	aggregates points.AggregateRepository,
	snapshots points.SnapshotRepository,
	cache points.LeaderboardCache,
	classLocks *keymutex.Map,
	lockWait time.Duration,
	logger *slog.Logger,
) *RerankClassHandler {
	if classLocks == nil {
		classLocks = keymutex.New()
	}
	if lockWait <= 0 {
		lockWait = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RerankClassHandler{
		students:   students,
		aggregates: aggregates,
		snapshots:  snapshots,
		cache:      cache,
		classLocks: classLocks,
		lockWait:   lockWait,
		cacheTTL:   DefaultLeaderboardTTL,
		logger:     logger,
	}
}

// Handle reranks one class and returns the new standings in rank order.
// Students with no ledger activity yet rank at zero points; withdrawn and
// graduated students are absent entirely.
func (h *RerankClassHandler) Handle(ctx context.Context, classID string) ([]points.Standing, error) {
	unlock, err := h.classLocks.LockWithTimeout(ctx, classID, h.lockWait)
	if err != nil {
		return nil, shared.WrapError("points", "RerankClass", shared.ErrAnalyticsDelayed,
			"class lock not acquired", err)
	}
	defer unlock()

	enrolled, err := h.students.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, shared.WrapError("points", "RerankClass", shared.ErrTransientStore,
			"failed to list active students", err)
	}
	if len(enrolled) == 0 {
		h.logger.Debug("skipping rerank of empty class", "class_id", classID)
		return nil, nil
	}

	aggs, err := h.aggregates.ListByClass(ctx, classID)
	if err != nil {
		return nil, shared.WrapError("points", "RerankClass", shared.ErrTransientStore,
			"failed to list class aggregates", err)
	}
	aggByStudent := make(map[string]*points.Aggregate, len(aggs))
	for _, agg := range aggs {
		aggByStudent[agg.StudentID] = agg
	}

	standings := make([]points.Standing, 0, len(enrolled))
	for _, student := range enrolled {
		s := points.Standing{
			StudentID:   student.ID,
			DisplayName: student.DisplayName,
		}
		if agg, ok := aggByStudent[student.ID]; ok {
			s.TotalPoints = agg.TotalPoints
			s.LastEarnedAt = agg.LastEarnedAt
		}
		standings = append(standings, s)
	}

	points.Rerank(standings)

	if prev, err := h.snapshots.GetLatest(ctx, classID); err == nil {
		points.DiffRanks(standings, prev.Standings)
	} else if !shared.IsNotFound(err) {
		return nil, shared.WrapError("points", "RerankClass", shared.ErrTransientStore,
			"failed to load previous snapshot", err)
	}

	if err := h.aggregates.UpdateClassRanks(ctx, classID, standings); err != nil {
		return nil, shared.WrapError("points", "RerankClass", shared.ErrTransientStore,
			"failed to persist class ranks", err)
	}

	snapshot := points.NewSnapshot(uuid.NewString(), classID, standings)
	if err := h.snapshots.Save(ctx, snapshot); err != nil {
		return nil, shared.WrapError("points", "RerankClass", shared.ErrTransientStore,
			"failed to save leaderboard snapshot", err)
	}

	if h.cache != nil {
		if err := h.cache.SetStandings(ctx, classID, standings, h.cacheTTL); err != nil {
			// Cache refresh failure is not a ranking failure; readers fall
			// back to the store until the next rerank.
			h.logger.Warn("leaderboard cache refresh failed",
				"class_id", classID, "error", err)
		}
	}

	h.logger.Info("class reranked",
		"class_id", classID,
		"students", len(standings),
		"snapshot_id", snapshot.ID,
	)

	return standings, nil
}

// HandleCampus reranks every active student of a campus and persists the
// campus rank columns. Campus rankings have no snapshot or cache; dashboards
// read the columns straight off the aggregates. Serialized on a prefixed key
// so campus and class rerankings of unrelated scopes never contend.
func (h *RerankClassHandler) HandleCampus(ctx context.Context, campusID string) ([]points.Standing, error) {
	unlock, err := h.classLocks.LockWithTimeout(ctx, "campus:"+campusID, h.lockWait)
	if err != nil {
		return nil, shared.WrapError("points", "RerankCampus", shared.ErrAnalyticsDelayed,
			"campus lock not acquired", err)
	}
	defer unlock()

	enrolled, err := h.students.ListActiveByCampus(ctx, campusID)
	if err != nil {
		return nil, shared.WrapError("points", "RerankCampus", shared.ErrTransientStore,
			"failed to list active students", err)
	}
	if len(enrolled) == 0 {
		return nil, nil
	}

	ids := make([]string, len(enrolled))
	for i, student := range enrolled {
		ids[i] = student.ID
	}
	aggs, err := h.aggregates.ListByStudentIDs(ctx, ids)
	if err != nil {
		return nil, shared.WrapError("points", "RerankCampus", shared.ErrTransientStore,
			"failed to list campus aggregates", err)
	}
	aggByStudent := make(map[string]*points.Aggregate, len(aggs))
	for _, agg := range aggs {
		aggByStudent[agg.StudentID] = agg
	}

	standings := make([]points.Standing, 0, len(enrolled))
	for _, student := range enrolled {
		s := points.Standing{
			StudentID:   student.ID,
			DisplayName: student.DisplayName,
		}
		if agg, ok := aggByStudent[student.ID]; ok {
			s.TotalPoints = agg.TotalPoints
			s.LastEarnedAt = agg.LastEarnedAt
		}
		standings = append(standings, s)
	}

	points.Rerank(standings)

	if err := h.aggregates.UpdateCampusRanks(ctx, campusID, standings); err != nil {
		return nil, shared.WrapError("points", "RerankCampus", shared.ErrTransientStore,
			"failed to persist campus ranks", err)
	}

	h.logger.Info("campus reranked",
		"campus_id", campusID,
		"students", len(standings),
	)

	return standings, nil
}
