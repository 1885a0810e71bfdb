// Package cache wraps Redis into the short-lived caches the resolver relies
// on: search pages (tens of seconds) and analytics lookups (~2 minutes).
// Stale entries are simply re-fetched; there is no invalidation protocol.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	SearchTTL    = 45 * time.Second
	AnalyticsTTL = 2 * time.Minute
)

// Cache is a process-wide TTL cache. Values are stored as JSON so callers
// can cache any serializable payload, including nil results (a miss upstream
// is itself worth caching for the TTL window).
type Cache struct {
	rdb *redis.Client
}

// New returns a Cache backed by the given Redis client.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Get unmarshals the cached value for key into dest. The second return is
// false on a miss. Redis errors degrade to a miss: the caller re-fetches.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		slog.Warn("cache get failed", "key", key, "err", err)
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal %q: %w", key, err)
	}
	return true, nil
}

// Set stores value under key for ttl. Failures are logged, not returned:
// a cold cache only costs one extra upstream call.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cache marshal failed", "key", key, "err", err)
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		slog.Warn("cache set failed", "key", key, "err", err)
	}
}

// TryLock acquires a best-effort per-account lock for ttl. It returns true
// when the caller holds the lock. The lock only bounds duplicated upstream
// load from an overlapping manual recheck; correctness does not depend on
// it (last write wins on job state).
func (c *Cache) TryLock(ctx context.Context, accountID int64, scope string, ttl time.Duration) bool {
	key := fmt.Sprintf("lock:%s:%d", scope, accountID)
	ok, err := c.rdb.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		slog.Warn("lock acquire failed", "key", key, "err", err)
		return true // degrade open: a missing lock must not stop the loop
	}
	return ok
}

// Unlock releases a lock taken by TryLock.
func (c *Cache) Unlock(ctx context.Context, accountID int64, scope string) {
	key := fmt.Sprintf("lock:%s:%d", scope, accountID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		slog.Warn("lock release failed", "key", key, "err", err)
	}
}

// SearchKey builds the cache key for one search page.
func SearchKey(query string, page, pageSize int) string {
	return fmt.Sprintf("search:%s:%d:%d", query, page, pageSize)
}

// AnalyticsKey builds the cache key for one analytics position lookup.
func AnalyticsKey(externalID, keyword string) string {
	return fmt.Sprintf("analytics:%s:%s", externalID, keyword)
}
