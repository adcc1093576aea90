package curation

import (
	"context"
	"sync"

	"github.com/planforge/planforge-api/internal/store"
)

// memCacheStore is an in-memory SearchCacheStore with injectable
// failures.
type memCacheStore struct {
	mu        sync.Mutex
	entries   map[string]*store.CacheEntry
	lookupErr error
	storeErr  error
	stores    int
}

func newMemCacheStore() *memCacheStore {
	return &memCacheStore{entries: make(map[string]*store.CacheEntry)}
}

func (s *memCacheStore) Lookup(ctx context.Context, fingerprint string) (*store.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	entry, ok := s.entries[fingerprint]
	if !ok {
		return nil, store.ErrNotFound
	}
	return entry, nil
}

func (s *memCacheStore) Store(ctx context.Context, entry *store.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores++
	if s.storeErr != nil {
		return s.storeErr
	}
	if _, exists := s.entries[entry.Fingerprint]; !exists {
		s.entries[entry.Fingerprint] = entry
	}
	return nil
}

// countingSearcher records every external call it serves.
type countingSearcher struct {
	mu        sync.Mutex
	results   []Resource
	err       error
	calls     int
	lastQuery string
}

func (s *countingSearcher) Search(ctx context.Context, req SearchRequest) ([]Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastQuery = req.Query
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *countingSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubLinkValidator answers from a fixed verdict table.
type stubLinkValidator struct {
	mu       sync.Mutex
	verdicts map[string]bool
	err      error
	calls    int
}

func (v *stubLinkValidator) Validate(ctx context.Context, url string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.err != nil {
		return false, v.err
	}
	return v.verdicts[url], nil
}

func (v *stubLinkValidator) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}
