package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/events"
	"github.com/planforge/planforge-api/internal/store"
)

// passTxRunner executes the function directly without a transaction.
func passTxRunner(ctx context.Context, fn store.TxFn) error {
	return fn(ctx, nil)
}

// failTxRunner rolls everything back with the given error without
// invoking the function.
func failTxRunner(err error) store.TxRunner {
	return func(ctx context.Context, fn store.TxFn) error {
		return err
	}
}

type mockPlanStore struct {
	mu            sync.Mutex
	plans         map[uuid.UUID]*domain.Plan
	statusUpdates map[uuid.UUID][]domain.GenerationStatus
	createErr     error
	getErr        error
}

func newMockPlanStore() *mockPlanStore {
	return &mockPlanStore{
		plans:         make(map[uuid.UUID]*domain.Plan),
		statusUpdates: make(map[uuid.UUID][]domain.GenerationStatus),
	}
}

func (s *mockPlanStore) CreatePlan(ctx context.Context, plan *domain.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	cp := *plan
	s.plans[plan.ID] = &cp
	return nil
}

func (s *mockPlanStore) GetPlan(ctx context.Context, planID uuid.UUID) (*domain.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	plan, ok := s.plans[planID]
	if !ok {
		return nil, store.ErrPlanNotFound
	}
	cp := *plan
	return &cp, nil
}

func (s *mockPlanStore) UpdateGenerationStatus(ctx context.Context, planID uuid.UUID, status domain.GenerationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if plan, ok := s.plans[planID]; ok {
		plan.GenerationStatus = status
	}
	s.statusUpdates[planID] = append(s.statusUpdates[planID], status)
	return nil
}

func (s *mockPlanStore) FinalizePlan(ctx context.Context, planID uuid.UUID) error { return nil }

func (s *mockPlanStore) SaveStructure(ctx context.Context, planID uuid.UUID, modules []*domain.Module) error {
	return nil
}

func (s *mockPlanStore) WithTx(tx *sql.Tx) store.PlanStore { return s }

func (s *mockPlanStore) planCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plans)
}

type mockJobStore struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]*domain.Job
	enqueueErr error
}

func newMockJobStore() *mockJobStore {
	return &mockJobStore{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (s *mockJobStore) Enqueue(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *mockJobStore) ClaimNext(ctx context.Context, workerID string, limit int) ([]*domain.Job, error) {
	return nil, nil
}

func (s *mockJobStore) MarkCompleted(ctx context.Context, jobID uuid.UUID, result json.RawMessage) error {
	return nil
}

func (s *mockJobStore) MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string, retry bool, backoff time.Duration) error {
	return nil
}

func (s *mockJobStore) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return job, nil
}

func (s *mockJobStore) FindActiveJobForPlan(ctx context.Context, planID uuid.UUID) (*domain.Job, error) {
	return nil, store.ErrJobNotFound
}

func (s *mockJobStore) WithTx(tx *sql.Tx) store.JobStore { return s }

func (s *mockJobStore) jobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

type mockAttemptStore struct {
	mu       sync.Mutex
	count    int
	countErr error
	latest   *domain.GenerationAttempt
}

func (s *mockAttemptStore) CreateAttempt(ctx context.Context, attempt *domain.GenerationAttempt) error {
	return nil
}

func (s *mockAttemptStore) FinalizeAttempt(ctx context.Context, attempt *domain.GenerationAttempt) error {
	return nil
}

func (s *mockAttemptStore) CountAttempts(ctx context.Context, planID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.count, nil
}

func (s *mockAttemptStore) HasInProgress(ctx context.Context, planID uuid.UUID) (bool, error) {
	return false, nil
}

func (s *mockAttemptStore) LatestAttempt(ctx context.Context, planID uuid.UUID) (*domain.GenerationAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, store.ErrAttemptNotFound
	}
	return s.latest, nil
}

func (s *mockAttemptStore) WithTx(tx *sql.Tx) store.AttemptStore { return s }

// mockLimiter admits everything unless an error is injected.
type mockLimiter struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (l *mockLimiter) Allow(ctx context.Context, userID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.err
}

// recordingEmitter captures emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.PlanEvent
	err    error
}

func (e *recordingEmitter) EmitEvent(ctx context.Context, event *events.PlanEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.err
}

func (e *recordingEmitter) emitted() []*events.PlanEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*events.PlanEvent(nil), e.events...)
}
