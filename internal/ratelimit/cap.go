package ratelimit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/store"
)

// AttemptCap enforces the durable per-plan attempt budget. The count is
// derived from persisted generation_attempts rows, never in-memory state,
// so the cap holds across process crashes and restarts.
type AttemptCap struct {
	attempts store.AttemptStore
	max      int
}

// NewAttemptCap creates a cap check with the configured maximum.
func NewAttemptCap(attempts store.AttemptStore, max int) *AttemptCap {
	return &AttemptCap{
		attempts: attempts,
		max:      max,
	}
}

// Reached reports whether the plan is at or beyond the attempt cap.
func (c *AttemptCap) Reached(ctx context.Context, planID uuid.UUID) (bool, error) {
	count, err := c.attempts.CountAttempts(ctx, planID)
	if err != nil {
		return false, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count >= c.max, nil
}

// Max returns the configured cap value.
func (c *AttemptCap) Max() int {
	return c.max
}
