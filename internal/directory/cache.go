package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedFinder is a read-through Redis cache in front of another Finder.
// Cache failures are logged and the lookup falls through to the source.
// Missing accounts are never cached.
type CachedFinder struct {
	next Finder
	rdb  *redis.Client
	ttl  time.Duration
	log  *zap.Logger
}

func NewCachedFinder(next Finder, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *CachedFinder {
	return &CachedFinder{next: next, rdb: rdb, ttl: ttl, log: log}
}

func cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("directory:account:%s", id.String())
}

func (c *CachedFinder) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	key := cacheKey(id)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var acc Account
		if jsonErr := json.Unmarshal(raw, &acc); jsonErr == nil {
			return &acc, nil
		}
		c.log.Warn("discarding undecodable cached account", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("account cache read failed", zap.String("key", key), zap.Error(err))
	}

	return c.FindCurrent(ctx, id)
}

// FindCurrent always reads the source and refreshes the cached copy. Checks
// that must not act on a stale is_active flag use it instead of FindByID.
func (c *CachedFinder) FindCurrent(ctx context.Context, id uuid.UUID) (*Account, error) {
	acc, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := cacheKey(id)
	if data, err := json.Marshal(acc); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn("account cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return acc, nil
}
