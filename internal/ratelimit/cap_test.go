package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/store"
)

// countingAttemptStore serves CountAttempts from a fixed table; the rest
// of the interface is unused by the cap check.
type countingAttemptStore struct {
	counts   map[uuid.UUID]int
	countErr error
}

func (s *countingAttemptStore) CountAttempts(ctx context.Context, planID uuid.UUID) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.counts[planID], nil
}

func (s *countingAttemptStore) CreateAttempt(ctx context.Context, attempt *domain.GenerationAttempt) error {
	return nil
}

func (s *countingAttemptStore) FinalizeAttempt(ctx context.Context, attempt *domain.GenerationAttempt) error {
	return nil
}

func (s *countingAttemptStore) HasInProgress(ctx context.Context, planID uuid.UUID) (bool, error) {
	return false, nil
}

func (s *countingAttemptStore) LatestAttempt(ctx context.Context, planID uuid.UUID) (*domain.GenerationAttempt, error) {
	return nil, store.ErrAttemptNotFound
}

func (s *countingAttemptStore) WithTx(tx *sql.Tx) store.AttemptStore { return s }

func TestAttemptCapReached(t *testing.T) {
	t.Parallel()

	planID := uuid.New()
	attempts := &countingAttemptStore{counts: map[uuid.UUID]int{planID: 0}}
	check := NewAttemptCap(attempts, 3)

	for count, want := range map[int]bool{0: false, 2: false, 3: true, 5: true} {
		attempts.counts[planID] = count
		reached, err := check.Reached(context.Background(), planID)
		require.NoError(t, err)
		assert.Equal(t, want, reached, "count=%d", count)
	}
}

func TestAttemptCapCountErrorPropagates(t *testing.T) {
	t.Parallel()

	attempts := &countingAttemptStore{countErr: errors.New("connection reset")}
	check := NewAttemptCap(attempts, 3)

	_, err := check.Reached(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestAttemptCapMax(t *testing.T) {
	t.Parallel()

	check := NewAttemptCap(&countingAttemptStore{}, 7)
	assert.Equal(t, 7, check.Max())
}
