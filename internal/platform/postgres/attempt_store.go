package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/platform/logger"
	"github.com/planforge/planforge-api/internal/store"
)

// PostgresAttemptStore implements the store.AttemptStore interface
// using a PostgreSQL database as the storage backend. The backing
// relation is append-only: finalization is guarded so a terminal row can
// never be rewritten, and no delete path exists.
type PostgresAttemptStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAttemptStore creates a new PostgreSQL implementation of the
// AttemptStore interface.
func NewPostgresAttemptStore(db store.DBTX, logger *slog.Logger) *PostgresAttemptStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAttemptStore{
		db:     db,
		logger: logger.With(slog.String("component", "attempt_store")),
	}
}

// Ensure PostgresAttemptStore implements store.AttemptStore interface
var _ store.AttemptStore = (*PostgresAttemptStore)(nil)

// CreateAttempt implements store.AttemptStore.CreateAttempt.
func (s *PostgresAttemptStore) CreateAttempt(ctx context.Context, attempt *domain.GenerationAttempt) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := attempt.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO generation_attempts (id, plan_id, status, classification, duration_ms,
			modules_count, tasks_count, input_truncated, input_normalized,
			prompt_fingerprint, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.PlanID,
		attempt.Status,
		attempt.Classification,
		attempt.DurationMs,
		attempt.ModulesCount,
		attempt.TasksCount,
		attempt.InputTruncated,
		attempt.InputNormalized,
		attempt.PromptFingerprint,
		nullableJSON(attempt.Metadata),
		attempt.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create generation attempt",
			"attempt_id", attempt.ID,
			"plan_id", attempt.PlanID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// FinalizeAttempt implements store.AttemptStore.FinalizeAttempt.
// The WHERE clause restricts the update to rows still in_progress, which
// is what makes the relation effectively append-only: the single writer
// that created the row is the only one that can finalize it, once.
func (s *PostgresAttemptStore) FinalizeAttempt(ctx context.Context, attempt *domain.GenerationAttempt) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := attempt.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	if !attempt.IsTerminal() {
		return fmt.Errorf("%w: finalize requires a terminal status", store.ErrInvalidEntity)
	}

	query := `
		UPDATE generation_attempts
		SET status = $1, classification = $2, duration_ms = $3,
			modules_count = $4, tasks_count = $5, input_truncated = $6,
			input_normalized = $7, prompt_fingerprint = $8, metadata = $9
		WHERE id = $10 AND status = $11
	`

	result, err := s.db.ExecContext(ctx, query,
		attempt.Status,
		attempt.Classification,
		attempt.DurationMs,
		attempt.ModulesCount,
		attempt.TasksCount,
		attempt.InputTruncated,
		attempt.InputNormalized,
		attempt.PromptFingerprint,
		nullableJSON(attempt.Metadata),
		attempt.ID,
		domain.AttemptStatusInProgress,
	)
	if err != nil {
		log.Error("failed to finalize generation attempt",
			"attempt_id", attempt.ID,
			"error", err)
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the row is missing or it already reached a terminal
		// status; distinguish for the caller.
		var exists bool
		checkErr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM generation_attempts WHERE id = $1)`,
			attempt.ID).Scan(&exists)
		if checkErr != nil {
			return MapError(checkErr)
		}
		if exists {
			return store.ErrAppendOnly
		}
		return store.ErrAttemptNotFound
	}

	return nil
}

// CountAttempts implements store.AttemptStore.CountAttempts.
func (s *PostgresAttemptStore) CountAttempts(ctx context.Context, planID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM generation_attempts WHERE plan_id = $1`,
		planID).Scan(&count)
	if err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

// HasInProgress implements store.AttemptStore.HasInProgress.
func (s *PostgresAttemptStore) HasInProgress(ctx context.Context, planID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM generation_attempts WHERE plan_id = $1 AND status = $2)`,
		planID, domain.AttemptStatusInProgress).Scan(&exists)
	if err != nil {
		return false, MapError(err)
	}
	return exists, nil
}

// LatestAttempt implements store.AttemptStore.LatestAttempt.
func (s *PostgresAttemptStore) LatestAttempt(ctx context.Context, planID uuid.UUID) (*domain.GenerationAttempt, error) {
	query := `
		SELECT id, plan_id, status, classification, duration_ms, modules_count,
			tasks_count, input_truncated, input_normalized, prompt_fingerprint,
			metadata, created_at
		FROM generation_attempts
		WHERE plan_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var a domain.GenerationAttempt
	var classification sql.NullString
	var promptFingerprint sql.NullString
	var metadata []byte
	err := s.db.QueryRowContext(ctx, query, planID).Scan(
		&a.ID,
		&a.PlanID,
		&a.Status,
		&classification,
		&a.DurationMs,
		&a.ModulesCount,
		&a.TasksCount,
		&a.InputTruncated,
		&a.InputNormalized,
		&promptFingerprint,
		&metadata,
		&a.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrAttemptNotFound
		}
		return nil, MapError(err)
	}

	if classification.Valid {
		c := domain.Classification(classification.String)
		a.Classification = &c
	}
	a.PromptFingerprint = promptFingerprint.String
	a.Metadata = metadata

	return &a, nil
}

// WithTx implements store.AttemptStore.WithTx.
func (s *PostgresAttemptStore) WithTx(tx *sql.Tx) store.AttemptStore {
	return &PostgresAttemptStore{
		db:     tx,
		logger: s.logger,
	}
}
