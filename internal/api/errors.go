package api

import (
	"errors"
	"net/http"

	"github.com/planforge/planforge-api/internal/ratelimit"
	"github.com/planforge/planforge-api/internal/service"
	"github.com/planforge/planforge-api/internal/service/auth"
	"github.com/planforge/planforge-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status
// codes based on the error type. This prevents leaking internal error
// types or messages to clients.
func MapErrorToStatusCode(err error) int {
	var rateLimited *ratelimit.RateLimitError
	var conflict *service.JobConflictError

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, service.ErrNotPlanOwner):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, store.ErrPlanNotFound),
		errors.Is(err, store.ErrJobNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.As(err, &conflict):
		return http.StatusConflict

	// Rate limiting
	case errors.As(err, &rateLimited):
		return http.StatusTooManyRequests

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal
// details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var rateLimited *ratelimit.RateLimitError
	var conflict *service.JobConflictError

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, service.ErrNotPlanOwner):
		return "You do not own this plan"

	case errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, store.ErrPlanNotFound):
		return "Plan not found"

	case errors.Is(err, store.ErrJobNotFound):
		return "Job not found"

	case errors.As(err, &conflict):
		return "Plan already has an active generation job"

	case errors.As(err, &rateLimited):
		return "Too many requests, please try again later"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}
