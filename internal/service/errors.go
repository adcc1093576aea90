package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Common sentinel errors for PlanService
var (
	// ErrPlanNotFound indicates that the plan does not exist
	ErrPlanNotFound = errors.New("plan not found")

	// ErrNotPlanOwner indicates the plan belongs to a different user
	ErrNotPlanOwner = errors.New("plan does not belong to the requesting user")
)

// JobConflictError indicates a regeneration request was deduplicated
// because the plan already has an active job. It carries the existing
// job's id so clients can poll it instead of retrying.
type JobConflictError struct {
	ExistingJobID uuid.UUID
}

// Error implements the error interface for JobConflictError.
func (e *JobConflictError) Error() string {
	return fmt.Sprintf("plan already has an active job %s", e.ExistingJobID)
}

// PlanServiceError wraps errors from the plan service with context.
type PlanServiceError struct {
	// Operation is the operation that failed (e.g., "submit_generation")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for PlanServiceError.
func (e *PlanServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plan service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("plan service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *PlanServiceError) Unwrap() error {
	return e.Err
}

// NewPlanServiceError creates a new PlanServiceError. Known sentinel
// errors are returned directly without wrapping.
func NewPlanServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrPlanNotFound) || errors.Is(err, ErrNotPlanOwner) {
		return err
	}

	var conflict *JobConflictError
	if errors.As(err, &conflict) {
		return err
	}

	return &PlanServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
