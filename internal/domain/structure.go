package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for plan structure entities
var (
	ErrEmptyModuleTitle  = errors.New("module title cannot be empty")
	ErrInvalidModuleWeek = errors.New("module week must be positive")
	ErrEmptyTaskTitle    = errors.New("task title cannot be empty")
)

// Module represents one week-sized unit of a generated plan.
// Modules are written transactionally by a successful generation attempt
// and are immutable afterward as far as this core is concerned.
type Module struct {
	ID          uuid.UUID `json:"id"`
	PlanID      uuid.UUID `json:"plan_id"`
	Week        int       `json:"week"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Position    int       `json:"position"`
	Tasks       []*Task   `json:"tasks,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Task represents a single unit of work inside a module. Resources holds
// the externally curated learning resources attached during curation,
// serialized as JSON so the set can evolve without schema churn.
type Task struct {
	ID               uuid.UUID       `json:"id"`
	ModuleID         uuid.UUID       `json:"module_id"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	EstimatedMinutes int             `json:"estimated_minutes"`
	Position         int             `json:"position"`
	Resources        json.RawMessage `json:"resources,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NewModule creates a validated Module belonging to the given plan.
func NewModule(planID uuid.UUID, week int, title string, position int) (*Module, error) {
	m := &Module{
		ID:        uuid.New(),
		PlanID:    planID,
		Week:      week,
		Title:     title,
		Position:  position,
		CreatedAt: time.Now().UTC(),
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// Validate checks if the Module has valid data.
func (m *Module) Validate() error {
	if m.ID == uuid.Nil {
		return ErrInvalidID
	}

	if m.PlanID == uuid.Nil {
		return ErrEmptyPlanID
	}

	if m.Week < 1 {
		return ErrInvalidModuleWeek
	}

	if m.Title == "" {
		return ErrEmptyModuleTitle
	}

	return nil
}

// NewTask creates a validated Task belonging to the given module.
func NewTask(moduleID uuid.UUID, title string, estimatedMinutes, position int) (*Task, error) {
	t := &Task{
		ID:               uuid.New(),
		ModuleID:         moduleID,
		Title:            title,
		EstimatedMinutes: estimatedMinutes,
		Position:         position,
		CreatedAt:        time.Now().UTC(),
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrInvalidID
	}

	if t.ModuleID == uuid.Nil {
		return ErrInvalidID
	}

	if t.Title == "" {
		return ErrEmptyTaskTitle
	}

	return nil
}
