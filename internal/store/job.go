package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
)

// JobStore defines the interface for the durable job queue.
//
// Claiming must be safe under concurrent workers: only one worker may
// successfully claim a given pending job. Implementations enforce this
// with an atomic pending→processing transition (row locking that skips
// already-locked rows).
type JobStore interface {
	// Enqueue inserts a pending job. For plan-bound jobs, a
	// *JobConflictError is returned if the plan already has a pending or
	// processing job; the error carries the existing job's id.
	Enqueue(ctx context.Context, job *domain.Job) error

	// ClaimNext atomically claims up to limit eligible jobs for the given
	// worker. A job is eligible iff status is pending and scheduled_for is
	// not in the future; eligible jobs are served by priority descending,
	// then scheduled_for ascending. Claimed jobs transition to processing
	// with locked_at/locked_by set and attempts incremented.
	ClaimNext(ctx context.Context, workerID string, limit int) ([]*domain.Job, error)

	// MarkCompleted resolves a job successfully with an optional result
	// payload.
	MarkCompleted(ctx context.Context, jobID uuid.UUID, result json.RawMessage) error

	// MarkFailed records a job failure. When retry is true and the job has
	// attempts remaining, the job returns to pending with scheduled_for
	// pushed forward by backoff; otherwise it terminates failed. The claim
	// marker is released either way.
	MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string, retry bool, backoff time.Duration) error

	// GetJob retrieves a job by ID. Returns ErrJobNotFound if absent.
	GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)

	// FindActiveJobForPlan returns the pending or processing job bound to
	// the plan, or ErrJobNotFound if the plan has no active job.
	FindActiveJobForPlan(ctx context.Context, planID uuid.UUID) (*domain.Job, error)

	// WithTx returns a JobStore bound to the provided transaction.
	WithTx(tx *sql.Tx) JobStore
}
