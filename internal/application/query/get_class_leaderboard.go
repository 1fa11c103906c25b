package query

import (
	"context"
	"log/slog"

	"github.com/learnpulse/mastery-engine/internal/domain/points"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS LEADERBOARD QUERY
// Cache-first read of the ranked class standings. The cache is refreshed by
// every reranking; on a miss the query falls back to the latest persisted
// snapshot so readers always see a complete, consistently ordered board.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassLeaderboardHandler serves leaderboard reads.
type GetClassLeaderboardHandler struct {
	snapshots points.SnapshotRepository
	cache     points.LeaderboardCache
	logger    *slog.Logger
}

// NewGetClassLeaderboardHandler creates a new GetClassLeaderboardHandler.
// cache may be nil when leaderboard caching is disabled.
func NewGetClassLeaderboardHandler(snapshots points.SnapshotRepository, cache points.LeaderboardCache, logger *slog.Logger) *GetClassLeaderboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetClassLeaderboardHandler{snapshots: snapshots, cache: cache, logger: logger}
}

// Handle returns the standings of a class in rank order, optionally truncated
// to the top limit entries (limit <= 0 returns all).
func (h *GetClassLeaderboardHandler) Handle(ctx context.Context, classID string, limit int) ([]points.Standing, error) {
	if h.cache != nil {
		standings, err := h.cache.GetStandings(ctx, classID)
		if err != nil {
			// A broken cache degrades to a store read, never to an error.
			h.logger.Warn("leaderboard cache read failed", "class_id", classID, "error", err)
		} else if standings != nil {
			return truncate(standings, limit), nil
		}
	}

	snapshot, err := h.snapshots.GetLatest(ctx, classID)
	if shared.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return truncate(snapshot.Standings, limit), nil
}

// HandleStanding returns one student's standing within their class board, or
// shared.ErrNotFound when the class was never ranked or the student is not on
// the board.
func (h *GetClassLeaderboardHandler) HandleStanding(ctx context.Context, classID, studentID string) (*points.Standing, error) {
	standings, err := h.Handle(ctx, classID, 0)
	if err != nil {
		return nil, err
	}
	for i := range standings {
		if standings[i].StudentID == studentID {
			return &standings[i], nil
		}
	}
	return nil, shared.NewDomainError("points", "GetStanding", shared.ErrNotFound,
		"student not present on class leaderboard")
}

func truncate(standings []points.Standing, limit int) []points.Standing {
	if limit > 0 && len(standings) > limit {
		return standings[:limit]
	}
	return standings
}
