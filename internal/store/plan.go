package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
)

// PlanStore defines the interface for plan data persistence.
type PlanStore interface {
	// CreatePlan saves a new plan to the store.
	// Returns ErrInvalidEntity if the plan fails validation.
	CreatePlan(ctx context.Context, plan *domain.Plan) error

	// GetPlan retrieves a plan by its ID.
	// Returns ErrPlanNotFound if the plan does not exist.
	GetPlan(ctx context.Context, planID uuid.UUID) (*domain.Plan, error)

	// UpdateGenerationStatus transitions the plan's generation status.
	// Returns ErrPlanNotFound if the plan does not exist.
	UpdateGenerationStatus(ctx context.Context, planID uuid.UUID, status domain.GenerationStatus) error

	// FinalizePlan marks the plan ready, stamps finalized_at, and makes it
	// quota-eligible. Intended to run inside the same transaction as
	// SaveStructure via WithTx.
	FinalizePlan(ctx context.Context, planID uuid.UUID) error

	// SaveStructure persists the generated modules and their tasks for a
	// plan. Callers compose this with FinalizePlan in one transaction so a
	// plan never becomes ready without its structure.
	SaveStructure(ctx context.Context, planID uuid.UUID, modules []*domain.Module) error

	// WithTx returns a PlanStore bound to the provided transaction.
	// The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) PlanStore
}
