package cache

import (
	"context"
	"sync"
	"time"
)

type memoryBackend struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewMemoryBackend returns a process-local backend. Entries do not survive
// restarts; suitable for tests and single-instance deployments.
func NewMemoryBackend() Backend {
	return &memoryBackend{entries: make(map[string]*Entry)}
}

var _ Backend = (*memoryBackend)(nil)

func (m *memoryBackend) Get(ctx context.Context, key string) (*Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.Expired(time.Now()) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return entry, true, nil
}

func (m *memoryBackend) Set(ctx context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Key] = entry
	return nil
}

func (m *memoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *memoryBackend) List(ctx context.Context) ([]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	out := make([]*Entry, 0, len(m.entries))
	for key, entry := range m.entries {
		if entry.Expired(now) {
			delete(m.entries, key)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *memoryBackend) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Entry)
	return nil
}

func (m *memoryBackend) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	stats := Stats{Backend: "memory", TotalEntries: len(m.entries)}
	for _, entry := range m.entries {
		if entry.Expired(now) {
			stats.ExpiredEntries++
		}
	}
	stats.ActiveEntries = stats.TotalEntries - stats.ExpiredEntries
	return stats, nil
}
