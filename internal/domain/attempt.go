package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus represents the state of a single generation attempt.
type AttemptStatus string

// Possible attempt status values.
const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSuccess    AttemptStatus = "success"
	AttemptStatusFailure    AttemptStatus = "failure"
)

// Classification is the taxonomy label assigned to a failed attempt.
// It drives retry and finalization policy in the worker.
type Classification string

// Failure classifications.
const (
	// ClassificationTimeout: the provider did not complete within the
	// attempt deadline. Retryable.
	ClassificationTimeout Classification = "timeout"

	// ClassificationRateLimit: the provider signaled quota/backpressure.
	// Retryable with backoff.
	ClassificationRateLimit Classification = "rate_limit"

	// ClassificationProviderError: transport or unknown provider fault.
	// Retryable.
	ClassificationProviderError Classification = "provider_error"

	// ClassificationValidation: structurally invalid provider output.
	// Not retryable.
	ClassificationValidation Classification = "validation"

	// ClassificationCapped: the durable per-plan attempt budget is
	// exhausted. Terminal.
	ClassificationCapped Classification = "capped"

	// ClassificationInProgress: another attempt is already running for the
	// plan. The caller should poll rather than retry immediately.
	ClassificationInProgress Classification = "in_progress"
)

// Common validation errors for GenerationAttempt
var (
	ErrEmptyAttemptID         = errors.New("attempt ID cannot be empty")
	ErrEmptyAttemptPlanID     = errors.New("attempt plan ID cannot be empty")
	ErrInvalidAttemptStatus   = errors.New("invalid attempt status")
	ErrClassificationMismatch = errors.New("classification must be set iff attempt failed")
)

// GenerationAttempt is an immutable audit record of one orchestration run
// for a plan. Rows are append-only: they are created in_progress (or
// written atomically at completion) and finalized exactly once by the
// single writer that produced them. Deletion is denied at the store layer.
type GenerationAttempt struct {
	ID                uuid.UUID       `json:"id"`
	PlanID            uuid.UUID       `json:"plan_id"`
	Status            AttemptStatus   `json:"status"`
	Classification    *Classification `json:"classification,omitempty"`
	DurationMs        int64           `json:"duration_ms"`
	ModulesCount      int             `json:"modules_count"`
	TasksCount        int             `json:"tasks_count"`
	InputTruncated    bool            `json:"input_truncated"`
	InputNormalized   bool            `json:"input_normalized"`
	PromptFingerprint string          `json:"prompt_fingerprint,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// NewGenerationAttempt creates an in-progress attempt record for the
// given plan. Counts and duration are filled in at finalization.
func NewGenerationAttempt(planID uuid.UUID) (*GenerationAttempt, error) {
	a := &GenerationAttempt{
		ID:        uuid.New(),
		PlanID:    planID,
		Status:    AttemptStatusInProgress,
		CreatedAt: time.Now().UTC(),
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}

	return a, nil
}

// Validate checks if the GenerationAttempt has valid data, including the
// structural invariant that classification is non-null iff the attempt
// failed.
func (a *GenerationAttempt) Validate() error {
	if a.ID == uuid.Nil {
		return ErrEmptyAttemptID
	}

	if a.PlanID == uuid.Nil {
		return ErrEmptyAttemptPlanID
	}

	if !isValidAttemptStatus(a.Status) {
		return ErrInvalidAttemptStatus
	}

	if a.Status == AttemptStatusFailure {
		if a.Classification == nil || !isValidClassification(*a.Classification) {
			return ErrClassificationMismatch
		}
	} else if a.Classification != nil {
		return ErrClassificationMismatch
	}

	return nil
}

// MarkSuccess finalizes the attempt as successful with the persisted
// structure counts and wall-clock duration.
func (a *GenerationAttempt) MarkSuccess(duration time.Duration, modulesCount, tasksCount int) {
	a.Status = AttemptStatusSuccess
	a.Classification = nil
	a.DurationMs = duration.Milliseconds()
	a.ModulesCount = modulesCount
	a.TasksCount = tasksCount
}

// MarkFailure finalizes the attempt as failed with the given
// classification. Counts are always zero on the failure path.
func (a *GenerationAttempt) MarkFailure(c Classification, duration time.Duration) {
	a.Status = AttemptStatusFailure
	a.Classification = &c
	a.DurationMs = duration.Milliseconds()
	a.ModulesCount = 0
	a.TasksCount = 0
}

// IsTerminal reports whether the attempt has reached a final status.
func (a *GenerationAttempt) IsTerminal() bool {
	return a.Status == AttemptStatusSuccess || a.Status == AttemptStatusFailure
}

// Retryable reports whether the attempt's failure classification permits
// an automatic retry by the worker. Success and in-progress attempts are
// never retryable.
func (a *GenerationAttempt) Retryable() bool {
	if a.Status != AttemptStatusFailure || a.Classification == nil {
		return false
	}
	return ClassificationRetryable(*a.Classification)
}

// ClassificationRetryable reports whether the given classification is a
// transient failure the worker may retry.
func ClassificationRetryable(c Classification) bool {
	switch c {
	case ClassificationTimeout, ClassificationRateLimit, ClassificationProviderError:
		return true
	default:
		return false
	}
}

// isValidAttemptStatus checks if the given status is a valid AttemptStatus.
func isValidAttemptStatus(status AttemptStatus) bool {
	switch status {
	case AttemptStatusInProgress, AttemptStatusSuccess, AttemptStatusFailure:
		return true
	default:
		return false
	}
}

// isValidClassification checks if the given value is part of the taxonomy.
func isValidClassification(c Classification) bool {
	switch c {
	case ClassificationTimeout, ClassificationRateLimit, ClassificationProviderError,
		ClassificationValidation, ClassificationCapped, ClassificationInProgress:
		return true
	default:
		return false
	}
}
