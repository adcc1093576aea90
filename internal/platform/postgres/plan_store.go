package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/platform/logger"
	"github.com/planforge/planforge-api/internal/store"
)

// PostgresPlanStore implements the store.PlanStore interface
// using a PostgreSQL database as the storage backend.
type PostgresPlanStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPlanStore creates a new PostgreSQL implementation of the PlanStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresPlanStore(db store.DBTX, logger *slog.Logger) *PostgresPlanStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresPlanStore{
		db:     db,
		logger: logger.With(slog.String("component", "plan_store")),
	}
}

// Ensure PostgresPlanStore implements store.PlanStore interface
var _ store.PlanStore = (*PostgresPlanStore)(nil)

// CreatePlan implements store.PlanStore.CreatePlan.
// It saves a new plan to the database, handling domain validation.
func (s *PostgresPlanStore) CreatePlan(ctx context.Context, plan *domain.Plan) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := plan.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO plans (id, user_id, topic, skill_level, weekly_hours, learning_style,
			start_date, deadline, generation_status, is_quota_eligible, finalized_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.db.ExecContext(ctx, query,
		plan.ID,
		plan.UserID,
		plan.Topic,
		plan.SkillLevel,
		plan.WeeklyHours,
		plan.LearningStyle,
		plan.StartDate,
		plan.Deadline,
		plan.GenerationStatus,
		plan.IsQuotaEligible,
		plan.FinalizedAt,
		plan.CreatedAt,
		plan.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create plan",
			"plan_id", plan.ID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetPlan implements store.PlanStore.GetPlan.
// Returns store.ErrPlanNotFound if the plan does not exist.
func (s *PostgresPlanStore) GetPlan(ctx context.Context, planID uuid.UUID) (*domain.Plan, error) {
	query := `
		SELECT id, user_id, topic, skill_level, weekly_hours, learning_style,
			start_date, deadline, generation_status, is_quota_eligible, finalized_at,
			created_at, updated_at
		FROM plans
		WHERE id = $1
	`

	var plan domain.Plan
	var learningStyle sql.NullString
	err := s.db.QueryRowContext(ctx, query, planID).Scan(
		&plan.ID,
		&plan.UserID,
		&plan.Topic,
		&plan.SkillLevel,
		&plan.WeeklyHours,
		&learningStyle,
		&plan.StartDate,
		&plan.Deadline,
		&plan.GenerationStatus,
		&plan.IsQuotaEligible,
		&plan.FinalizedAt,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrPlanNotFound
		}
		return nil, MapError(err)
	}

	plan.LearningStyle = learningStyle.String
	return &plan, nil
}

// UpdateGenerationStatus implements store.PlanStore.UpdateGenerationStatus.
func (s *PostgresPlanStore) UpdateGenerationStatus(ctx context.Context, planID uuid.UUID, status domain.GenerationStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE plans
		SET generation_status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), planID)
	if err != nil {
		log.Error("failed to update plan generation status",
			"plan_id", planID,
			"status", status,
			"error", err)
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrPlanNotFound
	}

	return nil
}

// FinalizePlan implements store.PlanStore.FinalizePlan.
// It flips the plan to ready, stamps finalized_at, and marks it
// quota-eligible in a single statement.
func (s *PostgresPlanStore) FinalizePlan(ctx context.Context, planID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	query := `
		UPDATE plans
		SET generation_status = $1, is_quota_eligible = TRUE, finalized_at = $2, updated_at = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, domain.GenerationStatusReady, now, planID)
	if err != nil {
		log.Error("failed to finalize plan",
			"plan_id", planID,
			"error", err)
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrPlanNotFound
	}

	return nil
}

// SaveStructure implements store.PlanStore.SaveStructure.
// It replaces the plan's structure: existing modules (and their tasks,
// through ON DELETE CASCADE) are removed before the new rows go in, so
// a regeneration does not collide with the previous generation on the
// (plan_id, position) unique constraint. Callers run this inside a
// transaction together with FinalizePlan via WithTx, so a plan never
// becomes ready without its structure.
func (s *PostgresPlanStore) SaveStructure(ctx context.Context, planID uuid.UUID, modules []*domain.Module) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	deleteQuery := `DELETE FROM plan_modules WHERE plan_id = $1`
	if _, err := s.db.ExecContext(ctx, deleteQuery, planID); err != nil {
		log.Error("failed to clear previous plan structure",
			"plan_id", planID,
			"error", err)
		return MapError(err)
	}

	moduleQuery := `
		INSERT INTO plan_modules (id, plan_id, week, title, description, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	taskQuery := `
		INSERT INTO plan_tasks (id, module_id, title, description, estimated_minutes, position, resources, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, m := range modules {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}

		_, err := s.db.ExecContext(ctx, moduleQuery,
			m.ID, planID, m.Week, m.Title, m.Description, m.Position, m.CreatedAt)
		if err != nil {
			log.Error("failed to insert plan module",
				"plan_id", planID,
				"module_id", m.ID,
				"error", err)
			return MapError(err)
		}

		for _, t := range m.Tasks {
			if err := t.Validate(); err != nil {
				return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
			}

			_, err := s.db.ExecContext(ctx, taskQuery,
				t.ID, m.ID, t.Title, t.Description, t.EstimatedMinutes, t.Position,
				nullableJSON(t.Resources), t.CreatedAt)
			if err != nil {
				log.Error("failed to insert plan task",
					"plan_id", planID,
					"module_id", m.ID,
					"task_id", t.ID,
					"error", err)
				return MapError(err)
			}
		}
	}

	return nil
}

// WithTx implements store.PlanStore.WithTx.
func (s *PostgresPlanStore) WithTx(tx *sql.Tx) store.PlanStore {
	return &PostgresPlanStore{
		db:     tx,
		logger: s.logger,
	}
}

// nullableJSON converts an empty JSON payload to NULL so the column
// doesn't store empty strings.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
