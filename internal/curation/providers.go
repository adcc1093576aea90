package curation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Source tags identifying which external provider produced a cached
// result.
const (
	SourceVideo     = "video_search"
	SourceDocs      = "doc_search"
	SourceLinkCheck = "link_check"
)

// Resource is one externally sourced learning resource attached to a
// generated task.
type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Kind  string `json:"kind"`
}

// SearchRequest describes one outbound search to a curation provider.
type SearchRequest struct {
	Source  string
	Query   string
	Filters map[string]string
}

// Fingerprint returns the cache key for this request.
func (r SearchRequest) Fingerprint() string {
	return Fingerprint(r.Source, r.Query, r.Filters)
}

// Searcher is the contract curation providers implement. Both the video
// search API and the document search API are consumed through it.
type Searcher interface {
	// Search performs one external lookup and returns the found resources.
	Search(ctx context.Context, req SearchRequest) ([]Resource, error)
}

// HTTPSearcher queries a JSON search endpoint. The video and document
// providers both speak the same shape: GET with a q parameter plus any
// filters, answering a JSON array of resources.
type HTTPSearcher struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPSearcher creates a searcher against the given endpoint.
func NewHTTPSearcher(endpoint string, timeout time.Duration) *HTTPSearcher {
	return &HTTPSearcher{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

// Search performs the external lookup.
func (s *HTTPSearcher) Search(ctx context.Context, req SearchRequest) ([]Resource, error) {
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}

	q := u.Query()
	q.Set("q", req.Query)
	for k, v := range req.Filters {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}

	resp, err := s.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint answered %d", resp.StatusCode)
	}

	var resources []Resource
	if err := json.NewDecoder(resp.Body).Decode(&resources); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	return resources, nil
}

// LinkValidator checks that a resource URL is reachable.
type LinkValidator interface {
	// Validate reports whether the URL answers a HEAD request with a
	// non-error status.
	Validate(ctx context.Context, url string) (bool, error)
}

// HTTPLinkValidator validates links with a HEAD request through a shared
// HTTP client.
type HTTPLinkValidator struct {
	Client *http.Client
}

// NewHTTPLinkValidator creates a validator with the given per-call timeout.
func NewHTTPLinkValidator(timeout time.Duration) *HTTPLinkValidator {
	return &HTTPLinkValidator{
		Client: &http.Client{Timeout: timeout},
	}
}

// Validate issues a HEAD request to the URL. Transport failures are
// returned as errors; HTTP error statuses simply report the link invalid.
func (v *HTTPLinkValidator) Validate(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build HEAD request: %w", err)
	}

	resp, err := v.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("link validation request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode < http.StatusBadRequest, nil
}
