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

// linkCheckResult is the serialized form of a cached validation outcome.
type linkCheckResult struct {
	Valid bool `json:"valid"`
}

// CachedLinkValidator fronts a LinkValidator with the resource search
// cache so a URL is HEAD-checked at most once per cache window.
type CachedLinkValidator struct {
	cache    store.SearchCacheStore
	delegate LinkValidator
}

// NewCachedLinkValidator wraps the delegate validator with the cache.
func NewCachedLinkValidator(cache store.SearchCacheStore, delegate LinkValidator) *CachedLinkValidator {
	return &CachedLinkValidator{
		cache:    cache,
		delegate: delegate,
	}
}

// Validate resolves the check through the cache.
func (v *CachedLinkValidator) Validate(ctx context.Context, url string) (bool, error) {
	log := logger.FromContext(ctx)
	fp := Fingerprint(SourceLinkCheck, url, nil)

	entry, err := v.cache.Lookup(ctx, fp)
	if err == nil {
		var cached linkCheckResult
		if unmarshalErr := json.Unmarshal(entry.Result, &cached); unmarshalErr == nil {
			return cached.Valid, nil
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("cache lookup failed: %w", err)
	}

	valid, err := v.delegate.Validate(ctx, url)
	if err != nil {
		return false, err
	}

	result, err := json.Marshal(linkCheckResult{Valid: valid})
	if err != nil {
		return false, fmt.Errorf("failed to marshal link check result: %w", err)
	}

	storeErr := v.cache.Store(ctx, &store.CacheEntry{
		Fingerprint: fp,
		Source:      SourceLinkCheck,
		Query:       NormalizeQuery(url),
		Result:      result,
		CreatedAt:   time.Now().UTC(),
	})
	if storeErr != nil {
		log.Warn("failed to cache link check result",
			"fingerprint", fp,
			"error", storeErr)
	}

	return valid, nil
}
