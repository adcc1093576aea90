package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrPlanNotFound, ErrJobNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update operation fails, for example
	// because the entity does not exist or the update violates constraints.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrAppendOnly is returned when a caller tries to mutate or delete a
	// generation attempt after its terminal status has been written.
	ErrAppendOnly = errors.New("generation attempts are append-only")

	// Entity-specific "not found" errors

	// ErrPlanNotFound indicates that the requested plan does not exist in the store.
	ErrPlanNotFound = fmt.Errorf("%w: plan", ErrNotFound)

	// ErrAttemptNotFound indicates that the requested generation attempt does not exist.
	ErrAttemptNotFound = fmt.Errorf("%w: generation attempt", ErrNotFound)

	// ErrJobNotFound indicates that the requested job does not exist in the store.
	ErrJobNotFound = fmt.Errorf("%w: job", ErrNotFound)
)

// JobConflictError is returned when enqueuing a job would violate the
// one-active-job-per-plan constraint. It carries the identifier of the
// already-active job so callers can surface it to the requester.
type JobConflictError struct {
	ExistingJobID uuid.UUID
}

// Error implements the error interface for JobConflictError.
func (e *JobConflictError) Error() string {
	return fmt.Sprintf("an active job already exists for this plan: %s", e.ExistingJobID)
}

// Is makes JobConflictError match ErrDuplicate via errors.Is.
func (e *JobConflictError) Is(target error) bool {
	return target == ErrDuplicate
}

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsJobConflict checks whether the error is an active-job conflict and,
// if so, returns the conflicting job's id.
func IsJobConflict(err error) (uuid.UUID, bool) {
	var conflict *JobConflictError
	if errors.As(err, &conflict) {
		return conflict.ExistingJobID, true
	}
	return uuid.Nil, false
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "plan", "job")
	Operation string // The operation that failed (e.g., "create", "claim")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
