package store

import (
	"context"
	"encoding/json"
	"time"
)

// CacheEntry maps a normalized search fingerprint to a prior external
// search result. Entries are immutable once written; staleness is managed
// by TTL-based eviction outside this core.
type CacheEntry struct {
	Fingerprint string          `json:"fingerprint"`
	Source      string          `json:"source"`
	Query       string          `json:"query"`
	Result      json.RawMessage `json:"result"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SearchCacheStore defines the interface for the resource search cache.
// Reads are safe without synchronization; concurrent writes of the same
// fingerprint are idempotent because the values are equivalent by
// construction of the fingerprint.
type SearchCacheStore interface {
	// Lookup returns the cached entry for the fingerprint, or ErrNotFound
	// on a miss.
	Lookup(ctx context.Context, fingerprint string) (*CacheEntry, error)

	// Store persists the entry. Writing a fingerprint that already exists
	// is a no-op, not an error.
	Store(ctx context.Context, entry *CacheEntry) error
}
