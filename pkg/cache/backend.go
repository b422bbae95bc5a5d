package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is one cached value together with its expiry metadata. Value is kept
// as raw JSON so backends never need to know the shape of query results.
type Entry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Preview   string          `json:"sql_preview,omitempty"`
}

// Expired reports whether the entry's TTL has elapsed at the given instant.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Stats describes the current state of a backend. Expired entries linger
// until a read or purge reaps them, so total and active can differ.
type Stats struct {
	Backend        string `json:"backend"`
	TotalEntries   int    `json:"total_entries"`
	ActiveEntries  int    `json:"active_entries"`
	ExpiredEntries int    `json:"expired_entries"`
}

// Backend is the storage layer beneath the query and semantic caches.
// Implementations must be safe for concurrent use. Expired entries are
// reaped lazily: a Get that finds an expired entry removes it and reports
// a miss.
type Backend interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]*Entry, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}
