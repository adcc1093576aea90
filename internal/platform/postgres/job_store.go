package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/platform/logger"
	"github.com/planforge/planforge-api/internal/store"
)

// activeJobConstraint is the partial unique index enforcing one pending
// or processing job per plan. Enqueue maps violations of it to
// *store.JobConflictError.
const activeJobConstraint = "job_queue_one_active_per_plan"

// PostgresJobStore implements the store.JobStore interface using a
// PostgreSQL database as the storage backend. Claims are made safe for
// concurrent workers with row locking that skips already-locked rows, so
// no two workers ever process the same job.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the
// JobStore interface.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// jobColumns is the canonical SELECT column list for job rows.
const jobColumns = `id, plan_id, user_id, job_type, status, priority, attempts, max_attempts,
	payload, result, error_message, locked_at, locked_by, scheduled_for,
	started_at, completed_at, created_at, updated_at`

// Enqueue implements store.JobStore.Enqueue.
// The uniqueness constraint, not this code, is what guarantees that
// racing enqueues for one plan converge on a single active job.
func (s *PostgresJobStore) Enqueue(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO job_queue (id, plan_id, user_id, job_type, status, priority,
			attempts, max_attempts, payload, scheduled_for, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.PlanID,
		job.UserID,
		job.JobType,
		job.Status,
		job.Priority,
		job.Attempts,
		job.MaxAttempts,
		job.Payload,
		job.ScheduledFor,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, activeJobConstraint) && job.PlanID != nil {
			existing, findErr := s.FindActiveJobForPlan(ctx, *job.PlanID)
			if findErr != nil {
				// The conflicting job resolved between the insert and the
				// lookup; report the conflict without an id.
				log.Warn("active job conflict but lookup failed",
					"plan_id", *job.PlanID,
					"error", findErr)
				return &store.JobConflictError{}
			}
			return &store.JobConflictError{ExistingJobID: existing.ID}
		}
		log.Error("failed to enqueue job",
			"job_id", job.ID,
			"job_type", job.JobType,
			"error", err)
		return MapError(err)
	}

	return nil
}

// ClaimNext implements store.JobStore.ClaimNext.
// The subquery selects eligible rows in priority order and locks them
// with SKIP LOCKED; the update transitions them to processing in the same
// statement, so a claim is atomic and mutually exclusive per row.
func (s *PostgresJobStore) ClaimNext(ctx context.Context, workerID string, limit int) ([]*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	query := `
		UPDATE job_queue
		SET status = $1, locked_at = $2, locked_by = $3,
			attempts = attempts + 1, started_at = COALESCE(started_at, $2), updated_at = $2
		WHERE id IN (
			SELECT id FROM job_queue
			WHERE status = $4 AND scheduled_for <= $2
			ORDER BY priority DESC, scheduled_for ASC
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	rows, err := s.db.QueryContext(ctx, query,
		domain.JobStatusProcessing,
		now,
		workerID,
		domain.JobStatusPending,
		limit,
	)
	if err != nil {
		log.Error("failed to claim jobs",
			"worker_id", workerID,
			"error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claimed job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return jobs, nil
}

// MarkCompleted implements store.JobStore.MarkCompleted.
func (s *PostgresJobStore) MarkCompleted(ctx context.Context, jobID uuid.UUID, result json.RawMessage) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	query := `
		UPDATE job_queue
		SET status = $1, result = $2, completed_at = $3, locked_at = NULL, locked_by = NULL, updated_at = $3
		WHERE id = $4 AND status = $5
	`

	res, err := s.db.ExecContext(ctx, query,
		domain.JobStatusCompleted,
		nullableJSON(result),
		now,
		jobID,
		domain.JobStatusProcessing,
	)
	if err != nil {
		log.Error("failed to mark job completed",
			"job_id", jobID,
			"error", err)
		return MapError(err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrJobNotFound
	}

	return nil
}

// MarkFailed implements store.JobStore.MarkFailed.
// With retry, the job returns to pending and its scheduled_for moves
// forward by backoff; the retry is refused if the attempt budget is
// already spent. Without retry the job terminates failed.
func (s *PostgresJobStore) MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string, retry bool, backoff time.Duration) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()

	var query string
	var args []any
	if retry {
		query = `
			UPDATE job_queue
			SET status = $1, error_message = $2, scheduled_for = $3,
				locked_at = NULL, locked_by = NULL, updated_at = $4
			WHERE id = $5 AND status = $6 AND attempts < max_attempts
		`
		args = []any{
			domain.JobStatusPending,
			errMsg,
			now.Add(backoff),
			now,
			jobID,
			domain.JobStatusProcessing,
		}
	} else {
		query = `
			UPDATE job_queue
			SET status = $1, error_message = $2, completed_at = $3,
				locked_at = NULL, locked_by = NULL, updated_at = $3
			WHERE id = $4 AND status = $5
		`
		args = []any{
			domain.JobStatusFailed,
			errMsg,
			now,
			jobID,
			domain.JobStatusProcessing,
		}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to mark job failed",
			"job_id", jobID,
			"retry", retry,
			"error", err)
		return MapError(err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if retry {
			// Budget exhausted between the caller's check and this write;
			// terminate the job instead of leaving it stuck in processing.
			return s.MarkFailed(ctx, jobID, errMsg, false, 0)
		}
		return store.ErrJobNotFound
	}

	return nil
}

// GetJob implements store.JobStore.GetJob.
func (s *PostgresJobStore) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM job_queue WHERE id = $1`

	row := s.db.QueryRowContext(ctx, query, jobID)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}

	return job, nil
}

// FindActiveJobForPlan implements store.JobStore.FindActiveJobForPlan.
func (s *PostgresJobStore) FindActiveJobForPlan(ctx context.Context, planID uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM job_queue
		WHERE plan_id = $1 AND status IN ($2, $3)
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, planID, domain.JobStatusPending, domain.JobStatusProcessing)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}

	return job, nil
}

// WithTx implements store.JobStore.WithTx.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{
		db:     tx,
		logger: s.logger,
	}
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob reads one job row in jobColumns order.
func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var planID uuid.NullUUID
	var result []byte
	var errorMessage sql.NullString
	var lockedBy sql.NullString

	err := row.Scan(
		&job.ID,
		&planID,
		&job.UserID,
		&job.JobType,
		&job.Status,
		&job.Priority,
		&job.Attempts,
		&job.MaxAttempts,
		&job.Payload,
		&result,
		&errorMessage,
		&job.LockedAt,
		&lockedBy,
		&job.ScheduledFor,
		&job.StartedAt,
		&job.CompletedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if planID.Valid {
		id := planID.UUID
		job.PlanID = &id
	}
	job.Result = result
	job.ErrorMessage = errorMessage.String
	job.LockedBy = lockedBy.String

	return &job, nil
}
