package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*BurstLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewBurstLimiter(client, limit, window), mr
}

func TestBurstLimiterAllowsWithinBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Minute)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Allow(context.Background(), userID))
	}
}

func TestBurstLimiterRejectsOverBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)
	userID := uuid.New()

	require.NoError(t, limiter.Allow(context.Background(), userID))
	require.NoError(t, limiter.Allow(context.Background(), userID))

	err := limiter.Allow(context.Background(), userID)
	require.Error(t, err)

	var rateLimited *RateLimitError
	require.True(t, errors.As(err, &rateLimited))
	assert.Greater(t, rateLimited.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, rateLimited.RetryAfter, time.Minute)
}

func TestBurstLimiterIsolatesUsers(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)

	first := uuid.New()
	second := uuid.New()

	require.NoError(t, limiter.Allow(context.Background(), first))
	require.Error(t, limiter.Allow(context.Background(), first))

	// A different user has an untouched budget.
	require.NoError(t, limiter.Allow(context.Background(), second))
}

func TestBurstLimiterWindowExpiry(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)
	userID := uuid.New()

	require.NoError(t, limiter.Allow(context.Background(), userID))
	require.Error(t, limiter.Allow(context.Background(), userID))

	mr.FastForward(time.Minute + time.Second)

	require.NoError(t, limiter.Allow(context.Background(), userID))
}

func TestBurstLimiterFailsOpen(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)
	userID := uuid.New()

	mr.Close()

	// With redis down, admission falls through rather than blocking all
	// generation traffic.
	require.NoError(t, limiter.Allow(context.Background(), userID))
	require.NoError(t, limiter.Allow(context.Background(), userID))
}
