package database

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client from a URL such as
// "redis://localhost:6379/0". Returns nil when the URL is empty: callers
// treat a nil client as Redis-less operation. The client connects lazily;
// reachability is the caller's concern, so a configured-but-down Redis can
// still drive the cache's disk fallback instead of being dropped here.
func NewRedisClient(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return redis.NewClient(opts), nil
}
