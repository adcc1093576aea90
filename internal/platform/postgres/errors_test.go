package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/planforge/planforge-api/internal/store"
)

func pgError(code, constraint string) *pgconn.PgError {
	return &pgconn.PgError{Code: code, ConstraintName: constraint}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("get plan: %w", sql.ErrNoRows), store.ErrNotFound},
		{"unique violation", pgError("23505", "plans_pkey"), store.ErrDuplicate},
		{"foreign key violation", pgError("23503", "plan_modules_plan_id_fkey"), store.ErrInvalidEntity},
		{"check violation", pgError("23514", "attempt_classification_check"), store.ErrInvalidEntity},
		{"not null violation", pgError("23502", ""), store.ErrInvalidEntity},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := MapError(tc.err)
			if tc.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
		})
	}
}

func TestMapErrorPassesThroughUnknown(t *testing.T) {
	t.Parallel()

	unknown := errors.New("connection reset by peer")
	assert.Equal(t, unknown, MapError(unknown))

	// Serialization failures keep their original identity so callers can
	// decide to retry the transaction.
	serialization := pgError("40001", "")
	assert.Equal(t, error(serialization), MapError(serialization))
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("enqueue: %w", pgError("23505", "job_queue_one_active_per_plan"))

	assert.True(t, isUniqueViolation(err, ""))
	assert.True(t, isUniqueViolation(err, "job_queue_one_active_per_plan"))
	assert.False(t, isUniqueViolation(err, "plans_pkey"))
	assert.False(t, isUniqueViolation(errors.New("other"), ""))
	assert.False(t, isUniqueViolation(pgError("23503", "x"), ""))
}
