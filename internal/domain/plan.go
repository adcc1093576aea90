package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// GenerationStatus represents the lifecycle state of a plan's generation.
type GenerationStatus string

// Possible generation status values. Generating is the only non-terminal
// state; ready and failed are terminal.
const (
	GenerationStatusGenerating GenerationStatus = "generating"
	GenerationStatusReady      GenerationStatus = "ready"
	GenerationStatusFailed     GenerationStatus = "failed"
)

// SkillLevel describes the user's self-reported proficiency with the topic.
type SkillLevel string

// Possible skill level values.
const (
	SkillLevelBeginner     SkillLevel = "beginner"
	SkillLevelIntermediate SkillLevel = "intermediate"
	SkillLevelAdvanced     SkillLevel = "advanced"
)

// Common validation errors for Plan
var (
	ErrEmptyPlanID        = errors.New("plan ID cannot be empty")
	ErrEmptyPlanUserID    = errors.New("plan user ID cannot be empty")
	ErrEmptyPlanTopic     = errors.New("plan topic cannot be empty")
	ErrInvalidSkillLevel  = errors.New("invalid skill level")
	ErrInvalidWeeklyHours = errors.New("weekly hours must be between 1 and 80")
)

// Plan represents a learning plan owned by a user. It tracks the
// parameters the plan was requested with and the generation lifecycle
// state. The plan's module/task structure is stored separately and only
// written by a successful generation attempt.
type Plan struct {
	ID               uuid.UUID        `json:"id"`
	UserID           uuid.UUID        `json:"user_id"`
	Topic            string           `json:"topic"`
	SkillLevel       SkillLevel       `json:"skill_level"`
	WeeklyHours      int              `json:"weekly_hours"`
	LearningStyle    string           `json:"learning_style,omitempty"`
	StartDate        *time.Time       `json:"start_date,omitempty"`
	Deadline         *time.Time       `json:"deadline,omitempty"`
	GenerationStatus GenerationStatus `json:"generation_status"`
	IsQuotaEligible  bool             `json:"is_quota_eligible"`
	FinalizedAt      *time.Time       `json:"finalized_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// NewPlan creates a new Plan with the given owner and request parameters.
// It generates a new UUID for the plan ID, sets the status to generating,
// and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewPlan(userID uuid.UUID, topic string, skillLevel SkillLevel, weeklyHours int) (*Plan, error) {
	now := time.Now().UTC()
	plan := &Plan{
		ID:               uuid.New(),
		UserID:           userID,
		Topic:            topic,
		SkillLevel:       skillLevel,
		WeeklyHours:      weeklyHours,
		GenerationStatus: GenerationStatusGenerating,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	return plan, nil
}

// Validate checks if the Plan has valid data.
// Returns an error if any field fails validation.
func (p *Plan) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyPlanID
	}

	if p.UserID == uuid.Nil {
		return ErrEmptyPlanUserID
	}

	if p.Topic == "" {
		return ErrEmptyPlanTopic
	}

	if !isValidSkillLevel(p.SkillLevel) {
		return ErrInvalidSkillLevel
	}

	if p.WeeklyHours < 1 || p.WeeklyHours > 80 {
		return ErrInvalidWeeklyHours
	}

	if !isValidGenerationStatus(p.GenerationStatus) {
		return ErrInvalidGenerationStatus
	}

	return nil
}

// IsTerminal reports whether the plan's generation has reached a terminal
// state. Terminal plans are never re-entered by the orchestrator; a
// regeneration request flips the plan back to generating first.
func (p *Plan) IsTerminal() bool {
	return p.GenerationStatus == GenerationStatusReady ||
		p.GenerationStatus == GenerationStatusFailed
}

// UpdateGenerationStatus updates the plan's generation status and the
// UpdatedAt timestamp. Returns an error if the new status is invalid.
func (p *Plan) UpdateGenerationStatus(status GenerationStatus) error {
	if !isValidGenerationStatus(status) {
		return ErrInvalidGenerationStatus
	}

	p.GenerationStatus = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Finalize marks the plan ready, stamps FinalizedAt, and makes it count
// toward the owner's billing quota.
func (p *Plan) Finalize() {
	now := time.Now().UTC()
	p.GenerationStatus = GenerationStatusReady
	p.IsQuotaEligible = true
	p.FinalizedAt = &now
	p.UpdatedAt = now
}

// isValidGenerationStatus checks if the given status is a valid GenerationStatus.
func isValidGenerationStatus(status GenerationStatus) bool {
	switch status {
	case GenerationStatusGenerating, GenerationStatusReady, GenerationStatusFailed:
		return true
	default:
		return false
	}
}

// isValidSkillLevel checks if the given level is a valid SkillLevel.
func isValidSkillLevel(level SkillLevel) bool {
	switch level {
	case SkillLevelBeginner, SkillLevelIntermediate, SkillLevelAdvanced:
		return true
	default:
		return false
	}
}
