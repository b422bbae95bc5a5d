package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// indexRecord is the per-key metadata held in index.json. The full entry
// lives in its shard file; the index exists so List and Stats can avoid
// reading every shard.
type indexRecord struct {
	ExpiresAt time.Time `json:"expires_at"`
	Preview   string    `json:"sql_preview,omitempty"`
}

type diskBackend struct {
	dir    string
	logger *zap.Logger

	mu    sync.Mutex
	index map[string]indexRecord
}

// NewDiskBackend opens (creating if needed) a file-backed cache rooted at
// dir. Entries are sharded into subdirectories by the first two characters
// of their key, with an index.json alongside them. A missing or corrupt
// index is treated as an empty cache rather than an error.
func NewDiskBackend(dir string, logger *zap.Logger) (Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	b := &diskBackend{
		dir:    dir,
		logger: logger.Named("disk-cache"),
		index:  make(map[string]indexRecord),
	}

	data, err := os.ReadFile(b.indexPath())
	if err == nil {
		if uerr := json.Unmarshal(data, &b.index); uerr != nil {
			b.logger.Warn("Cache index is corrupt, starting empty", zap.Error(uerr))
			b.index = make(map[string]indexRecord)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read cache index: %w", err)
	}

	return b, nil
}

var _ Backend = (*diskBackend)(nil)

func (b *diskBackend) indexPath() string {
	return filepath.Join(b.dir, "index.json")
}

func (b *diskBackend) entryPath(key string) string {
	shard := "xx"
	if len(key) >= 2 {
		shard = key[:2]
	}
	return filepath.Join(b.dir, shard, key+".json")
}

// writeIndex persists the in-memory index. Caller must hold b.mu. The write
// goes through a temp file so a crash never leaves a truncated index behind.
func (b *diskBackend) writeIndex() error {
	data, err := json.Marshal(b.index)
	if err != nil {
		return fmt.Errorf("failed to marshal cache index: %w", err)
	}
	tmp := b.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache index: %w", err)
	}
	return os.Rename(tmp, b.indexPath())
}

// removeLocked deletes an entry's shard file and index record. Caller must
// hold b.mu.
func (b *diskBackend) removeLocked(key string) error {
	if err := os.Remove(b.entryPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	delete(b.index, key)
	return b.writeIndex()
}

func (b *diskBackend) Get(ctx context.Context, key string) (*Entry, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.index[key]
	if !ok {
		return nil, false, nil
	}
	if !rec.ExpiresAt.IsZero() && time.Now().After(rec.ExpiresAt) {
		if err := b.removeLocked(key); err != nil {
			b.logger.Warn("Failed to remove expired cache entry", zap.String("key", key), zap.Error(err))
		}
		return nil, false, nil
	}

	data, err := os.ReadFile(b.entryPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			// Index and shard files drifted apart; heal the index.
			delete(b.index, key)
			if werr := b.writeIndex(); werr != nil {
				b.logger.Warn("Failed to heal cache index", zap.Error(werr))
			}
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		b.logger.Warn("Cache entry is corrupt, dropping it", zap.String("key", key), zap.Error(err))
		if rerr := b.removeLocked(key); rerr != nil {
			b.logger.Warn("Failed to remove corrupt cache entry", zap.Error(rerr))
		}
		return nil, false, nil
	}
	if entry.Expired(time.Now()) {
		if err := b.removeLocked(key); err != nil {
			b.logger.Warn("Failed to remove expired cache entry", zap.String("key", key), zap.Error(err))
		}
		return nil, false, nil
	}
	return &entry, true, nil
}

func (b *diskBackend) Set(ctx context.Context, entry *Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.entryPath(entry.Key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache shard: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	b.index[entry.Key] = indexRecord{ExpiresAt: entry.ExpiresAt, Preview: entry.Preview}
	return b.writeIndex()
}

func (b *diskBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(key)
}

func (b *diskBackend) List(ctx context.Context) ([]*Entry, error) {
	b.mu.Lock()
	keys := make([]string, 0, len(b.index))
	for key := range b.index {
		keys = append(keys, key)
	}
	b.mu.Unlock()

	out := make([]*Entry, 0, len(keys))
	for _, key := range keys {
		entry, ok, err := b.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (b *diskBackend) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key := range b.index {
		if err := os.Remove(b.entryPath(key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}
	b.index = make(map[string]indexRecord)
	return b.writeIndex()
}

func (b *diskBackend) Stats(ctx context.Context) (Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	stats := Stats{Backend: "disk", TotalEntries: len(b.index)}
	for _, rec := range b.index {
		if !rec.ExpiresAt.IsZero() && now.After(rec.ExpiresAt) {
			stats.ExpiredEntries++
		}
	}
	stats.ActiveEntries = stats.TotalEntries - stats.ExpiredEntries
	return stats, nil
}
