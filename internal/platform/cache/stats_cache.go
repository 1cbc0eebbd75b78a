package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	KeyLeaderboard = "stats:leaderboard"
	KeyTagSummary  = "stats:tag_summary"
)

// StatsCache is a small read-through cache for the hot dashboard queries.
// A nil *StatsCache (or one built over a nil client) is valid and simply
// degrades every call to a no-op, so services never need to nil-check redis.
type StatsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStatsCache(rdb *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{rdb: rdb, ttl: ttl}
}

// GetJSON reports whether key was present and unmarshalled into dest.
func (c *StatsCache) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("stats cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		slog.Warn("stats cache holds unparsable payload, dropping", "key", key, "error", err)
		c.rdb.Del(ctx, key)
		return false
	}
	return true
}

func (c *StatsCache) SetJSON(ctx context.Context, key string, value interface{}) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("stats cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		slog.Warn("stats cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops the derived-stats keys. Called after any submission
// mutation and after a recompute pass.
func (c *StatsCache) Invalidate(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, KeyLeaderboard, KeyTagSummary).Err(); err != nil {
		slog.Warn("stats cache invalidation failed", "error", err)
	}
}
