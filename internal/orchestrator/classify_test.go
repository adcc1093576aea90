package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/generation"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want domain.Classification
	}{
		{"timeout sentinel", generation.ErrTimeout, domain.ClassificationTimeout},
		{"wrapped timeout", fmt.Errorf("attempt: %w", generation.ErrTimeout), domain.ClassificationTimeout},
		{"context deadline", context.DeadlineExceeded, domain.ClassificationTimeout},
		{"rate limited", generation.ErrRateLimited, domain.ClassificationRateLimit},
		{"invalid response", generation.ErrInvalidResponse, domain.ClassificationValidation},
		{"invalid structure", fmt.Errorf("%w: no modules generated", ErrInvalidStructure), domain.ClassificationValidation},
		{"transport", generation.ErrTransport, domain.ClassificationProviderError},
		{"unknown", errors.New("something else"), domain.ClassificationProviderError},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}
