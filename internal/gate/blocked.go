package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/config"
)

// BlockedStore answers whether an account is blocked.
type BlockedStore interface {
	IsBlocked(ctx context.Context, userID string) (bool, error)
}

// CachedBlockedStore wraps a BlockedStore with a short-lived Redis cache
// so the flag is not re-read from Postgres on every request. Cache misses
// and Redis errors both fall through to the underlying store: a broken
// cache degrades latency, never correctness.
type CachedBlockedStore struct {
	store BlockedStore
	rdb   *redis.Client
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedBlockedStore creates a CachedBlockedStore with the given TTL.
func NewCachedBlockedStore(store BlockedStore, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedBlockedStore {
	return &CachedBlockedStore{
		store: store,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.With().Str("component", "blocked_cache").Logger(),
	}
}

// IsBlocked consults the cache, then the store. A blocked state may be up
// to one TTL stale; unblocking takes effect after the entry expires.
func (c *CachedBlockedStore) IsBlocked(ctx context.Context, userID string) (bool, error) {
	key := config.CacheKey.UserBlockedKey(userID)

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		return cached == "1", nil
	}
	if !errors.Is(err, redis.Nil) {
		c.log.Warn().Err(err).Str("user_id", userID).Msg("blocked cache read failed")
	}

	blocked, err := c.store.IsBlocked(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("read blocked flag: %w", err)
	}

	val := "0"
	if blocked {
		val = "1"
	}
	if err := c.rdb.Set(ctx, key, val, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("user_id", userID).Msg("blocked cache write failed")
	}
	return blocked, nil
}

// Invalidate drops the cached flag for a user, used right after the flag
// is toggled so the change is visible without waiting out the TTL.
func (c *CachedBlockedStore) Invalidate(ctx context.Context, userID string) {
	if err := c.rdb.Del(ctx, config.CacheKey.UserBlockedKey(userID)).Err(); err != nil {
		c.log.Warn().Err(err).Str("user_id", userID).Msg("blocked cache invalidate failed")
	}
}
