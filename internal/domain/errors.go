package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidGenerationStatus is returned when a plan generation status
	// is not one of the known values.
	ErrInvalidGenerationStatus = errors.New("invalid generation status")

	// ErrInvalidClassification is returned when a failure classification
	// is not part of the taxonomy.
	ErrInvalidClassification = errors.New("invalid failure classification")

	// ErrInvalidJobStatus is returned when a job status is not valid.
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrInvalidJobType is returned when a job type is not recognized.
	ErrInvalidJobType = errors.New("invalid job type")

	// ErrPlanTerminal is returned when an operation requires a plan that is
	// still generating but the plan has already reached a terminal status.
	ErrPlanTerminal = errors.New("plan generation already finalized")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)
