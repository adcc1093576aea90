package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge-api/internal/api/shared"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/ratelimit"
	"github.com/planforge/planforge-api/internal/service"
)

// mockPlanService implements service.PlanService with injectable
// functions.
type mockPlanService struct {
	submitFn     func(ctx context.Context, userID uuid.UUID, req service.SubmitRequest) (*domain.Plan, *domain.Job, error)
	regenerateFn func(ctx context.Context, userID, planID uuid.UUID, overrides string) (*domain.Job, error)
	statusFn     func(ctx context.Context, userID, planID uuid.UUID) (*service.GenerationStatus, error)
}

func (m *mockPlanService) SubmitGeneration(ctx context.Context, userID uuid.UUID, req service.SubmitRequest) (*domain.Plan, *domain.Job, error) {
	return m.submitFn(ctx, userID, req)
}

func (m *mockPlanService) RequestRegeneration(ctx context.Context, userID, planID uuid.UUID, overrides string) (*domain.Job, error) {
	return m.regenerateFn(ctx, userID, planID, overrides)
}

func (m *mockPlanService) GetGenerationStatus(ctx context.Context, userID, planID uuid.UUID) (*service.GenerationStatus, error) {
	return m.statusFn(ctx, userID, planID)
}

// newTestRouter mounts the handler the way the server does, with the
// authenticated user injected directly into the request context.
func newTestRouter(svc service.PlanService, userID uuid.UUID) http.Handler {
	handler := NewPlanHandler(svc)

	r := chi.NewRouter()
	if userID != uuid.Nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := context.WithValue(req.Context(), shared.UserIDContextKey, userID)
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
	}

	r.Post("/api/plans", handler.SubmitPlan)
	r.Post("/api/plans/{id}/regenerate", handler.RegeneratePlan)
	r.Get("/api/plans/{id}/status", handler.GetPlanStatus)
	return r
}

func submitBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(SubmitPlanRequest{
		Topic:       "Linear algebra",
		SkillLevel:  "beginner",
		WeeklyHours: 5,
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func testPlanAndJob(t *testing.T, userID uuid.UUID) (*domain.Plan, *domain.Job) {
	t.Helper()
	plan, err := domain.NewPlan(userID, "Linear algebra", domain.SkillLevelBeginner, 5)
	require.NoError(t, err)
	job, err := domain.NewJob(domain.JobTypePlanGeneration, userID, &plan.ID, json.RawMessage(`{}`), domain.DefaultJobPriority, 3)
	require.NoError(t, err)
	return plan, job
}

func TestSubmitPlanAccepted(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	plan, job := testPlanAndJob(t, userID)

	svc := &mockPlanService{
		submitFn: func(ctx context.Context, gotUser uuid.UUID, req service.SubmitRequest) (*domain.Plan, *domain.Job, error) {
			assert.Equal(t, userID, gotUser)
			assert.Equal(t, "Linear algebra", req.Topic)
			assert.Equal(t, domain.SkillLevelBeginner, req.SkillLevel)
			return plan, job, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/plans", submitBody(t))
	newTestRouter(svc, userID).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp PlanSubmittedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, plan.ID.String(), resp.PlanID)
	assert.Equal(t, job.ID.String(), resp.JobID)
	assert.Equal(t, "generating", resp.Status)
}

func TestSubmitPlanValidation(t *testing.T) {
	t.Parallel()

	svc := &mockPlanService{
		submitFn: func(ctx context.Context, userID uuid.UUID, req service.SubmitRequest) (*domain.Plan, *domain.Job, error) {
			t.Fatal("service must not be reached for invalid input")
			return nil, nil, nil
		},
	}
	router := newTestRouter(svc, uuid.New())

	cases := []struct {
		name string
		body string
	}{
		{"missing topic", `{"skill_level":"beginner","weekly_hours":5}`},
		{"bad skill level", `{"topic":"x","skill_level":"expert","weekly_hours":5}`},
		{"zero hours", `{"topic":"x","skill_level":"beginner","weekly_hours":0}`},
		{"excess hours", `{"topic":"x","skill_level":"beginner","weekly_hours":200}`},
		{"malformed json", `{"topic": `},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/plans", bytes.NewBufferString(tc.body))
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSubmitPlanUnauthenticated(t *testing.T) {
	t.Parallel()

	svc := &mockPlanService{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/plans", submitBody(t))
	newTestRouter(svc, uuid.Nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitPlanRateLimited(t *testing.T) {
	t.Parallel()

	svc := &mockPlanService{
		submitFn: func(ctx context.Context, userID uuid.UUID, req service.SubmitRequest) (*domain.Plan, *domain.Job, error) {
			return nil, nil, &ratelimit.RateLimitError{RetryAfter: 42 * time.Second}
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/plans", submitBody(t))
	newTestRouter(svc, uuid.New()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
}

func TestRegeneratePlanConflict(t *testing.T) {
	t.Parallel()

	existingJobID := uuid.New()
	svc := &mockPlanService{
		regenerateFn: func(ctx context.Context, userID, planID uuid.UUID, overrides string) (*domain.Job, error) {
			return nil, &service.JobConflictError{ExistingJobID: existingJobID}
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/plans/"+uuid.NewString()+"/regenerate", nil)
	newTestRouter(svc, uuid.New()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	var resp JobConflictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, existingJobID.String(), resp.ExistingJobID)
	assert.NotEmpty(t, resp.Error)
}

func TestRegeneratePlanWithOverrides(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	planID := uuid.New()
	_, job := testPlanAndJob(t, userID)

	svc := &mockPlanService{
		regenerateFn: func(ctx context.Context, gotUser, gotPlan uuid.UUID, overrides string) (*domain.Job, error) {
			assert.Equal(t, userID, gotUser)
			assert.Equal(t, planID, gotPlan)
			assert.Equal(t, "shorter modules", overrides)
			return job, nil
		},
	}

	body := bytes.NewBufferString(`{"overrides":"shorter modules"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/plans/"+planID.String()+"/regenerate", body)
	newTestRouter(svc, userID).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp PlanSubmittedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, planID.String(), resp.PlanID)
	assert.Equal(t, "generating", resp.Status)
}

func TestRegeneratePlanInvalidID(t *testing.T) {
	t.Parallel()

	svc := &mockPlanService{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/plans/not-a-uuid/regenerate", nil)
	newTestRouter(svc, uuid.New()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPlanStatus(t *testing.T) {
	t.Parallel()

	planID := uuid.New()
	svc := &mockPlanService{
		statusFn: func(ctx context.Context, userID, gotPlan uuid.UUID) (*service.GenerationStatus, error) {
			return &service.GenerationStatus{
				PlanID:            gotPlan,
				Status:            domain.GenerationStatusGenerating,
				Message:           "Your plan is being generated.",
				RetryAfterSeconds: 5,
				AttemptsUsed:      1,
				MaxAttempts:       5,
			}, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/plans/"+planID.String()+"/status", nil)
	newTestRouter(svc, uuid.New()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status service.GenerationStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, planID, status.PlanID)
	assert.Equal(t, domain.GenerationStatusGenerating, status.Status)
	assert.Equal(t, 5, status.RetryAfterSeconds)
}

func TestGetPlanStatusErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", service.ErrPlanNotFound, http.StatusNotFound},
		{"not owner", service.ErrNotPlanOwner, http.StatusForbidden},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &mockPlanService{
				statusFn: func(ctx context.Context, userID, planID uuid.UUID) (*service.GenerationStatus, error) {
					return nil, tc.err
				},
			}

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/plans/"+uuid.NewString()+"/status", nil)
			newTestRouter(svc, uuid.New()).ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
