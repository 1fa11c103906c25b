package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/learnpulse/mastery-engine/internal/domain/points"
)

// LeaderboardCache implements points.LeaderboardCache. The full ranked board
// of a class is stored as one JSON document: boards are always read whole
// and rewritten whole by the reranking, so per-member structures buy nothing.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(client *redis.Client) *LeaderboardCache {
	return &LeaderboardCache{cache: NewCache(client)}
}

func leaderboardKey(classID string) string {
	return prefixLeaderboard + classID
}

// GetStandings returns the cached leaderboard for a class, or nil on a miss.
func (c *LeaderboardCache) GetStandings(ctx context.Context, classID string) ([]points.Standing, error) {
	var standings []points.Standing
	err := c.cache.Get(ctx, leaderboardKey(classID), &standings)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return standings, nil
}

// SetStandings caches the leaderboard with a TTL.
func (c *LeaderboardCache) SetStandings(ctx context.Context, classID string, standings []points.Standing, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultLeaderboardTTL
	}
	return c.cache.Set(ctx, leaderboardKey(classID), standings, ttl)
}

// Invalidate drops the cached leaderboard for a class.
func (c *LeaderboardCache) Invalidate(ctx context.Context, classID string) error {
	return c.cache.Delete(ctx, leaderboardKey(classID))
}
