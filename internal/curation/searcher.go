package curation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/planforge/planforge-api/internal/platform/logger"
	"github.com/planforge/planforge-api/internal/store"
)

// CachedSearcher fronts a curation provider with the resource search
// cache. On a hit the cached result is used verbatim and no external call
// is made; on a miss the provider is called once and the result stored
// before being returned. Entries are immutable once written.
type CachedSearcher struct {
	cache    store.SearchCacheStore
	delegate Searcher
}

// NewCachedSearcher wraps the delegate provider with the cache.
func NewCachedSearcher(cache store.SearchCacheStore, delegate Searcher) *CachedSearcher {
	return &CachedSearcher{
		cache:    cache,
		delegate: delegate,
	}
}

// Search resolves the request through the cache.
func (s *CachedSearcher) Search(ctx context.Context, req SearchRequest) ([]Resource, error) {
	log := logger.FromContext(ctx)
	fp := req.Fingerprint()

	entry, err := s.cache.Lookup(ctx, fp)
	if err == nil {
		var resources []Resource
		if unmarshalErr := json.Unmarshal(entry.Result, &resources); unmarshalErr == nil {
			log.Debug("resource search cache hit",
				"source", req.Source,
				"fingerprint", fp)
			return resources, nil
		}
		// A cached entry that fails to decode is treated as a miss; the
		// rewrite below supersedes it with an equivalent value.
		log.Warn("failed to decode cached search result, refetching",
			"source", req.Source,
			"fingerprint", fp)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}

	resources, err := s.delegate.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("external search failed: %w", err)
	}

	result, err := json.Marshal(resources)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search result: %w", err)
	}

	storeErr := s.cache.Store(ctx, &store.CacheEntry{
		Fingerprint: fp,
		Source:      req.Source,
		Query:       NormalizeQuery(req.Query),
		Result:      result,
		CreatedAt:   time.Now().UTC(),
	})
	if storeErr != nil {
		// The lookup result is still good; a failed cache write only costs
		// a future external call.
		log.Warn("failed to store search result in cache",
			"source", req.Source,
			"fingerprint", fp,
			"error", storeErr)
	}

	return resources, nil
}
