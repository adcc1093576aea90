// Package curation attaches externally sourced learning resources to
// generated plan tasks. All outbound lookups are funneled through the
// resource search cache so identical requests cost one external call.
package curation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/planforge/planforge-api/internal/domain"
)

// Curator enriches generated tasks with video and document resources,
// dropping links that fail validation. Curation is best-effort: a
// provider failure leaves the task without resources rather than failing
// the generation attempt.
type Curator struct {
	videos  *CachedSearcher
	docs    *CachedSearcher
	links   LinkValidator
	perCall time.Duration
	logger  *slog.Logger
}

// NewCurator creates a Curator. Both searchers must already be
// cache-fronted; the curator never calls a provider directly.
func NewCurator(videos, docs *CachedSearcher, links LinkValidator, perCallTimeout time.Duration, logger *slog.Logger) *Curator {
	return &Curator{
		videos:  videos,
		docs:    docs,
		links:   links,
		perCall: perCallTimeout,
		logger:  logger,
	}
}

// CurateTask looks up resources for a single task and returns them
// serialized for attachment. The topic scopes the search so tasks from
// different plans with the same title still share cache entries when the
// normalized query matches.
func (c *Curator) CurateTask(ctx context.Context, topic string, task *domain.Task) json.RawMessage {
	query := topic + " " + task.Title

	var resources []Resource
	resources = append(resources, c.searchOne(ctx, c.videos, SearchRequest{
		Source: SourceVideo,
		Query:  query,
	})...)
	resources = append(resources, c.searchOne(ctx, c.docs, SearchRequest{
		Source: SourceDocs,
		Query:  query,
	})...)

	valid := resources[:0]
	for _, r := range resources {
		if c.validateLink(ctx, r.URL) {
			valid = append(valid, r)
		}
	}

	if len(valid) == 0 {
		return nil
	}

	out, err := json.Marshal(valid)
	if err != nil {
		c.logger.Error("failed to marshal curated resources",
			"task_id", task.ID,
			"error", err)
		return nil
	}
	return out
}

// searchOne runs a single cache-fronted search under the per-call timeout.
func (c *Curator) searchOne(ctx context.Context, searcher *CachedSearcher, req SearchRequest) []Resource {
	callCtx, cancel := context.WithTimeout(ctx, c.perCall)
	defer cancel()

	resources, err := searcher.Search(callCtx, req)
	if err != nil {
		c.logger.Warn("curation search failed",
			"source", req.Source,
			"error", err)
		return nil
	}
	return resources
}

// validateLink checks one URL under the per-call timeout. Validation
// errors count as invalid rather than aborting curation.
func (c *Curator) validateLink(ctx context.Context, url string) bool {
	callCtx, cancel := context.WithTimeout(ctx, c.perCall)
	defer cancel()

	ok, err := c.links.Validate(callCtx, url)
	if err != nil {
		c.logger.Debug("link validation errored", "url", url, "error", err)
		return false
	}
	return ok
}
