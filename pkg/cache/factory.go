package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backend kinds accepted by SelectBackend.
const (
	KindMemory = "memory"
	KindDisk   = "disk"
	KindRedis  = "redis"
)

// SelectBackend builds the storage backend for the given kind. An empty
// kind picks redis when a client is available and memory otherwise. A redis
// backend that cannot be reached at startup degrades to disk so a Redis
// outage slows the cache down instead of disabling the service.
func SelectBackend(ctx context.Context, kind, dir, prefix string, client *redis.Client, logger *zap.Logger) (Backend, error) {
	if kind == "" {
		if client != nil {
			kind = KindRedis
		} else {
			kind = KindMemory
		}
	}

	switch kind {
	case KindMemory:
		return NewMemoryBackend(), nil
	case KindDisk:
		return NewDiskBackend(dir, logger)
	case KindRedis:
		if client != nil {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := client.Ping(pingCtx).Err()
			cancel()
			if err == nil {
				return NewRedisBackend(client, prefix, logger), nil
			}
			logger.Warn("Redis unreachable, falling back to disk cache", zap.Error(err))
		} else {
			logger.Warn("Redis cache requested but no client configured, falling back to disk cache")
		}
		return NewDiskBackend(dir, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", kind)
	}
}
