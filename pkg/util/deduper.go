package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper records "already done" markers in Redis with SETNX.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration) *Deduper {
	return NewDeduperWithLogger(rdb, ttl, nil)
}

// NewDeduperWithLogger creates a deduper with logger support
func NewDeduperWithLogger(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// DedupKey formats the marker key for a scope and id.
func DedupKey(scope, id string) string {
	return fmt.Sprintf("%s:%s", scope, id)
}

// AcquireOnce returns true the first time scope+id is seen within the TTL
// and false for a duplicate. When Redis is unavailable it returns true so
// processing is never blocked by the marker store.
func (d *Deduper) AcquireOnce(ctx context.Context, scope, id string) bool {
	key := DedupKey(scope, id)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("scope", scope),
			zap.String("id", id),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated event",
			zap.String("scope", scope),
			zap.String("id", id),
			zap.String("dedup_key", key),
		)
	}
	return ok
}

// Release drops a marker, e.g. after the guarded action failed.
func (d *Deduper) Release(ctx context.Context, scope, id string) error {
	return d.rdb.Del(ctx, DedupKey(scope, id)).Err()
}
