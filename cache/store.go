package cache

import (
	"context"
	"encoding/json"
	"time"
)

// SchemaVersion is written into every entry. Readers accept any version;
// fields they do not know are ignored and missing fields take zero values.
const SchemaVersion = 1

// Entry is one persisted result. It is never modified after Put. Result is
// compact JSON and stores return it byte for byte.
type Entry struct {
	Hash          string          `json:"hash"`
	Result        json.RawMessage `json:"result"`
	CreatedAt     time.Time       `json:"created_at"`
	SchemaVersion int             `json:"schema_version"`
}

// Stats summarizes the contents of a store
type Stats struct {
	Backend string    `json:"backend"`
	Entries int       `json:"entries"`
	Bytes   int64     `json:"bytes"`
	Oldest  time.Time `json:"oldest,omitempty"`
	Newest  time.Time `json:"newest,omitempty"`
}

// Store is a durable mapping from content hash to Entry. Implementations
// must be safe for concurrent use and must never expose a partially written
// entry.
type Store interface {
	// Get returns the entry for hash. A missing entry is (Entry{}, false, nil).
	Get(ctx context.Context, hash string) (Entry, bool, error)
	// Put inserts or replaces the entry for e.Hash
	Put(ctx context.Context, e Entry) error
	// Delete removes the entry for hash; deleting a missing entry is not an error
	Delete(ctx context.Context, hash string) error
	// Clear removes every entry
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	// List returns every entry, newest first
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

func (s *Stats) observe(created time.Time) {
	if s.Oldest.IsZero() || created.Before(s.Oldest) {
		s.Oldest = created
	}
	if created.After(s.Newest) {
		s.Newest = created
	}
}
