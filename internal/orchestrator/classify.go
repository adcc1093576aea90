package orchestrator

import (
	"context"
	"errors"

	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/generation"
)

// Classify maps a provider or validation error onto the attempt failure
// taxonomy. Unknown faults land in provider_error, the retryable bucket,
// so a novel transient failure is retried rather than finalizing the
// plan.
func Classify(err error) domain.Classification {
	switch {
	case errors.Is(err, generation.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return domain.ClassificationTimeout
	case errors.Is(err, generation.ErrRateLimited):
		return domain.ClassificationRateLimit
	case errors.Is(err, generation.ErrInvalidResponse),
		errors.Is(err, ErrInvalidStructure):
		return domain.ClassificationValidation
	default:
		return domain.ClassificationProviderError
	}
}
