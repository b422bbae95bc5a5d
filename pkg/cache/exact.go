package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	sqlutil "github.com/alesierraalta/SQLAgent/pkg/sql"
)

const previewLength = 100

// QueryCache stores query results keyed by the hash of the normalized SQL,
// so formatting and case differences between equivalent statements share a
// single entry. Backend failures are logged and surface as misses; the
// cache never makes a request fail.
type QueryCache struct {
	backend Backend
	ttl     time.Duration
	logger  *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// QueryCacheStats combines backend state with hit tracking since startup.
type QueryCacheStats struct {
	Stats
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func NewQueryCache(backend Backend, ttl time.Duration, logger *zap.Logger) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		logger:  logger.Named("query-cache"),
	}
}

// Get looks up the cached result for sqlText.
func (c *QueryCache) Get(ctx context.Context, sqlText string) (json.RawMessage, bool) {
	key := Hash(sqlutil.NormalizeSQL(sqlText))
	entry, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Cache lookup failed", zap.Error(err))
		c.misses.Add(1)
		return nil, false
	}
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.Value, true
}

// Set stores a query result under the normalized SQL's hash with the
// configured TTL.
func (c *QueryCache) Set(ctx context.Context, sqlText string, result json.RawMessage) error {
	normalized := sqlutil.NormalizeSQL(sqlText)
	now := time.Now()
	entry := &Entry{
		Key:       Hash(normalized),
		Value:     result,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
		Preview:   truncate(normalized, previewLength),
	}
	if err := c.backend.Set(ctx, entry); err != nil {
		c.logger.Warn("Cache store failed", zap.Error(err))
		return err
	}
	return nil
}

// Invalidate drops the entry for sqlText, if any.
func (c *QueryCache) Invalidate(ctx context.Context, sqlText string) error {
	return c.backend.Delete(ctx, Hash(sqlutil.NormalizeSQL(sqlText)))
}

// Clear removes every entry.
func (c *QueryCache) Clear(ctx context.Context) error {
	return c.backend.Clear(ctx)
}

// Purge reaps expired entries and returns how many live ones remain.
// Backends expire lazily; a periodic purge keeps disk and memory usage
// bounded when keys stop being read.
func (c *QueryCache) Purge(ctx context.Context) (int, error) {
	entries, err := c.backend.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Stats reports backend state plus hit and miss counters.
func (c *QueryCache) Stats(ctx context.Context) (QueryCacheStats, error) {
	backendStats, err := c.backend.Stats(ctx)
	if err != nil {
		return QueryCacheStats{}, err
	}
	hits := c.hits.Load()
	misses := c.misses.Load()
	out := QueryCacheStats{Stats: backendStats, Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		out.HitRate = float64(hits) / float64(total)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
