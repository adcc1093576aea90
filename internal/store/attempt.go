package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
)

// AttemptStore defines the interface for generation attempt persistence.
// The attempts relation is append-only: rows are created in_progress and
// finalized exactly once; there is no delete operation on this interface
// and implementations must not expose one.
type AttemptStore interface {
	// CreateAttempt inserts a new attempt row, normally with status
	// in_progress. Returns ErrInvalidEntity if the attempt fails validation.
	CreateAttempt(ctx context.Context, attempt *domain.GenerationAttempt) error

	// FinalizeAttempt writes the terminal status, classification, duration
	// and counts for an attempt. Returns ErrAppendOnly if the row has
	// already reached a terminal status.
	FinalizeAttempt(ctx context.Context, attempt *domain.GenerationAttempt) error

	// CountAttempts returns the number of attempt rows recorded for the
	// plan. The durable attempt cap is derived from this count, so its
	// result must reflect committed rows only.
	CountAttempts(ctx context.Context, planID uuid.UUID) (int, error)

	// HasInProgress reports whether the plan currently has an attempt with
	// status in_progress. Used for the single-flight admission check.
	HasInProgress(ctx context.Context, planID uuid.UUID) (bool, error)

	// LatestAttempt returns the most recently created attempt for the plan.
	// Returns ErrAttemptNotFound if the plan has no attempts.
	LatestAttempt(ctx context.Context, planID uuid.UUID) (*domain.GenerationAttempt, error)

	// WithTx returns an AttemptStore bound to the provided transaction.
	WithTx(tx *sql.Tx) AttemptStore
}
