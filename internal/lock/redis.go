package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "proforma:lock:"

// RedisLocker serializes writers across service instances. The lock expires
// after ttl, so it only narrows the window; the invoice row lock and version
// check remain the authority inside the transaction.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  time.Duration
	log    *zap.Logger
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		log:    log,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lk, err := l.client.Obtain(ctx, keyPrefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retry),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("lock %s not obtained: %w", key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lk.Release(relCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn("failed to release redis lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
