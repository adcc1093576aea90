// Package ratelimit provides the two admission guards for generation
// work: a short-window per-user burst limiter on redis, and the durable
// per-plan attempt cap derived from persisted attempt history.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimitError is returned when a user exceeds the burst window. It
// carries the suggested wait before retrying.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface for RateLimitError.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// BurstLimiter is a fixed-window per-user request limiter backed by a
// shared redis. It is a best-effort burst guard only; the durable attempt
// cap is the source of truth for the cap invariant.
type BurstLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewBurstLimiter creates a limiter allowing limit requests per user per
// window.
func NewBurstLimiter(client *redis.Client, limit int, window time.Duration) *BurstLimiter {
	return &BurstLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow records one request for the user and reports whether it is within
// the window budget. Over budget, a *RateLimitError carries the remaining
// window as the retry hint. Redis unavailability fails open: admission
// control should not take generation down with it.
func (l *BurstLimiter) Allow(ctx context.Context, userID uuid.UUID) error {
	key := fmt.Sprintf("ratelimit:user:%s", userID)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return nil
	}

	if count == 1 {
		// First request in the window owns setting the expiry.
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return nil
		}
	}

	if count > int64(l.limit) {
		ttl, err := l.client.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = l.window
		}
		return &RateLimitError{RetryAfter: ttl}
	}

	return nil
}
