package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisBackend struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisBackend stores entries in Redis under the given key prefix.
// Expiry is enforced twice: Redis evicts keys via SET TTL, and Get still
// checks ExpiresAt in case an entry outlives its TTL on a replica or after
// a restore from persistence.
func NewRedisBackend(client *redis.Client, prefix string, logger *zap.Logger) Backend {
	return &redisBackend{
		client: client,
		prefix: prefix,
		logger: logger.Named("redis-cache"),
	}
}

var _ Backend = (*redisBackend)(nil)

func (b *redisBackend) redisKey(key string) string {
	return b.prefix + key
}

func (b *redisBackend) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := b.client.Get(ctx, b.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		b.logger.Warn("Cache entry is corrupt, dropping it", zap.String("key", key), zap.Error(err))
		b.client.Del(ctx, b.redisKey(key))
		return nil, false, nil
	}
	if entry.Expired(time.Now()) {
		b.client.Del(ctx, b.redisKey(key))
		return nil, false, nil
	}
	return &entry, true, nil
}

func (b *redisBackend) Set(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	var ttl time.Duration
	if !entry.ExpiresAt.IsZero() {
		ttl = time.Until(entry.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}
	if err := b.client.Set(ctx, b.redisKey(entry.Key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (b *redisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (b *redisBackend) List(ctx context.Context) ([]*Entry, error) {
	var out []*Entry
	iter := b.client.Scan(ctx, 0, b.prefix+"*", 100).Iterator()
	now := time.Now()
	for iter.Next(ctx) {
		data, err := b.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get failed: %w", err)
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			b.logger.Warn("Skipping corrupt cache entry", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		if entry.Expired(now) {
			continue
		}
		out = append(out, &entry)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}
	return out, nil
}

func (b *redisBackend) Clear(ctx context.Context) error {
	iter := b.client.Scan(ctx, 0, b.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := b.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis delete failed: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	return nil
}

// Stats reads each entry back to apply the same ExpiresAt check Get uses;
// Redis normally evicts on TTL, so ExpiredEntries stays zero unless an
// entry outlived its key TTL.
func (b *redisBackend) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Backend: "redis"}
	now := time.Now()
	iter := b.client.Scan(ctx, 0, b.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := b.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Stats{}, fmt.Errorf("redis get failed: %w", err)
		}
		stats.TotalEntries++
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		if entry.Expired(now) {
			stats.ExpiredEntries++
		}
	}
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("redis scan failed: %w", err)
	}
	stats.ActiveEntries = stats.TotalEntries - stats.ExpiredEntries
	return stats, nil
}
