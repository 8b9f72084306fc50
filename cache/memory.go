package cache

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps entries in a map. Nothing survives the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Get(_ context.Context, hash string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[hash]
	return e, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, e Entry) error {
	stored := e
	stored.Result = append([]byte(nil), e.Result...)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[e.Hash] = stored
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, hash)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]Entry)
	return nil
}

func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Backend: BackendMemory, Entries: len(m.entries)}
	for _, e := range m.entries {
		stats.Bytes += int64(len(e.Result))
		stats.observe(e.CreatedAt)
	}
	return stats, nil
}

func (m *MemoryStore) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	entries := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	sortNewestFirst(entries)
	return entries, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func sortNewestFirst(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].Hash < entries[j].Hash
	})
}
