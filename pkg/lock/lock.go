// Package lock provides a best-effort distributed lock used to collapse
// concurrent identical requests onto a single worker.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "lock:"

// RequestLock serializes work on a per-key basis across instances using
// Redis SET NX. It fails open: when Redis is unavailable or no client is
// configured, Acquire always succeeds. Duplicate work costs compute;
// blocking requests on lock infrastructure costs availability.
type RequestLock struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRequestLock(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RequestLock {
	return &RequestLock{
		client: client,
		ttl:    ttl,
		logger: logger.Named("request-lock"),
	}
}

// Acquire attempts to take the lock for key. It returns a release function
// and whether the lock was obtained. The TTL bounds how long a crashed
// holder can block others.
func (l *RequestLock) Acquire(ctx context.Context, key string) (release func(), acquired bool) {
	if l.client == nil {
		return func() {}, true
	}

	redisKey := keyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		l.logger.Warn("Lock acquisition failed, proceeding without lock", zap.Error(err))
		return func() {}, true
	}
	if !ok {
		return func() {}, false
	}

	return func() {
		// Only the holder's token may release; a slow release after TTL
		// expiry must not free a lock some other request now holds.
		val, err := l.client.Get(context.Background(), redisKey).Result()
		if err != nil || val != token {
			return
		}
		if err := l.client.Del(context.Background(), redisKey).Err(); err != nil {
			l.logger.Warn("Lock release failed", zap.String("key", key), zap.Error(err))
		}
	}, true
}

// Wait polls until the lock for key becomes free or the context expires.
// Callers use it after a failed Acquire to piggyback on the winner's work.
func (l *RequestLock) Wait(ctx context.Context, key string, interval time.Duration) error {
	if l.client == nil {
		return nil
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		exists, err := l.client.Exists(ctx, keyPrefix+key).Result()
		if err != nil {
			l.logger.Warn("Lock poll failed, proceeding", zap.Error(err))
			return nil
		}
		if exists == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
