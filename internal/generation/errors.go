package generation

import "errors"

// Common errors returned by plan generation providers. The orchestrator
// maps these directly onto attempt failure classifications.
var (
	// ErrTimeout is returned when the provider did not produce a terminal
	// chunk within the attempt deadline.
	ErrTimeout = errors.New("generation timed out")

	// ErrRateLimited is returned when the provider signals quota exhaustion
	// or backpressure.
	ErrRateLimited = errors.New("generation provider rate limited")

	// ErrTransport is returned for transport-level or otherwise
	// unclassified provider faults.
	ErrTransport = errors.New("generation provider transport error")

	// ErrInvalidResponse is returned when the provider output cannot be
	// parsed or is structurally malformed.
	ErrInvalidResponse = errors.New("invalid response from generation provider")

	// ErrNotImplemented is returned by providers that do not support the
	// requested operation.
	ErrNotImplemented = errors.New("generation operation not implemented")

	// ErrInvalidConfig is returned when a provider configuration is invalid.
	ErrInvalidConfig = errors.New("invalid generator configuration")
)
