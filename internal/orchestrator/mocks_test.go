package orchestrator

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/generation"
	"github.com/planforge/planforge-api/internal/store"
)

// fakePlanStore is an in-memory PlanStore with injectable overrides.
type fakePlanStore struct {
	mu    sync.Mutex
	plans map[uuid.UUID]*domain.Plan

	saved          map[uuid.UUID][]*domain.Module
	finalizedPlans []uuid.UUID
	statusUpdates  map[uuid.UUID][]domain.GenerationStatus

	finalizePlanFn  func(ctx context.Context, planID uuid.UUID) error
	saveStructureFn func(ctx context.Context, planID uuid.UUID, modules []*domain.Module) error
}

func newFakePlanStore() *fakePlanStore {
	return &fakePlanStore{
		plans:         make(map[uuid.UUID]*domain.Plan),
		saved:         make(map[uuid.UUID][]*domain.Module),
		statusUpdates: make(map[uuid.UUID][]domain.GenerationStatus),
	}
}

func (s *fakePlanStore) CreatePlan(ctx context.Context, plan *domain.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = plan
	return nil
}

func (s *fakePlanStore) GetPlan(ctx context.Context, planID uuid.UUID) (*domain.Plan, error) {
	// Like database/sql, a cancelled context fails the call.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[planID]
	if !ok {
		return nil, store.ErrPlanNotFound
	}
	copied := *plan
	return &copied, nil
}

func (s *fakePlanStore) UpdateGenerationStatus(ctx context.Context, planID uuid.UUID, status domain.GenerationStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[planID]
	if !ok {
		return store.ErrPlanNotFound
	}
	plan.GenerationStatus = status
	s.statusUpdates[planID] = append(s.statusUpdates[planID], status)
	return nil
}

func (s *fakePlanStore) FinalizePlan(ctx context.Context, planID uuid.UUID) error {
	if s.finalizePlanFn != nil {
		return s.finalizePlanFn(ctx, planID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[planID]
	if !ok {
		return store.ErrPlanNotFound
	}
	plan.Finalize()
	s.finalizedPlans = append(s.finalizedPlans, planID)
	return nil
}

func (s *fakePlanStore) SaveStructure(ctx context.Context, planID uuid.UUID, modules []*domain.Module) error {
	if s.saveStructureFn != nil {
		return s.saveStructureFn(ctx, planID, modules)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Replace semantics, mirroring the Postgres store's delete-then-insert.
	s.saved[planID] = modules
	return nil
}

func (s *fakePlanStore) WithTx(tx *sql.Tx) store.PlanStore { return s }

// fakeAttemptStore is an in-memory append-only AttemptStore.
type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts []*domain.GenerationAttempt

	createAttemptFn   func(ctx context.Context, attempt *domain.GenerationAttempt) error
	finalizeAttemptFn func(ctx context.Context, attempt *domain.GenerationAttempt) error
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{}
}

func (s *fakeAttemptStore) CreateAttempt(ctx context.Context, attempt *domain.GenerationAttempt) error {
	if s.createAttemptFn != nil {
		return s.createAttemptFn(ctx, attempt)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *attempt
	s.attempts = append(s.attempts, &copied)
	return nil
}

func (s *fakeAttemptStore) FinalizeAttempt(ctx context.Context, attempt *domain.GenerationAttempt) error {
	if s.finalizeAttemptFn != nil {
		return s.finalizeAttemptFn(ctx, attempt)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.attempts {
		if existing.ID == attempt.ID {
			if existing.IsTerminal() {
				return store.ErrAppendOnly
			}
			copied := *attempt
			s.attempts[i] = &copied
			return nil
		}
	}
	return store.ErrAttemptNotFound
}

func (s *fakeAttemptStore) CountAttempts(ctx context.Context, planID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, a := range s.attempts {
		if a.PlanID == planID {
			count++
		}
	}
	return count, nil
}

func (s *fakeAttemptStore) HasInProgress(ctx context.Context, planID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.PlanID == planID && a.Status == domain.AttemptStatusInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeAttemptStore) LatestAttempt(ctx context.Context, planID uuid.UUID) (*domain.GenerationAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.GenerationAttempt
	for _, a := range s.attempts {
		if a.PlanID == planID {
			latest = a
		}
	}
	if latest == nil {
		return nil, store.ErrAttemptNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *fakeAttemptStore) WithTx(tx *sql.Tx) store.AttemptStore { return s }

func (s *fakeAttemptStore) forPlan(planID uuid.UUID) []*domain.GenerationAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.GenerationAttempt
	for _, a := range s.attempts {
		if a.PlanID == planID {
			out = append(out, a)
		}
	}
	return out
}

// fakeStream replays a fixed chunk sequence.
type fakeStream struct {
	ch        chan generation.Chunk
	err       error
	mu        sync.Mutex
	closed    bool
	closeHook func()
}

func newFakeStream(chunks []generation.Chunk, err error) *fakeStream {
	s := &fakeStream{
		ch:  make(chan generation.Chunk, len(chunks)),
		err: err,
	}
	for _, c := range chunks {
		s.ch <- c
	}
	close(s.ch)
	return s
}

func (s *fakeStream) Chunks() <-chan generation.Chunk { return s.ch }

func (s *fakeStream) Err() error { return s.err }

func (s *fakeStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.closeHook != nil {
		s.closeHook()
	}
}

// fakeGenerator delegates to an injectable Generate function.
type fakeGenerator struct {
	generateFn func(ctx context.Context, input generation.Input) (generation.Stream, generation.Metadata, error)
	calls      int
	mu         sync.Mutex
}

func (g *fakeGenerator) Generate(ctx context.Context, input generation.Input) (generation.Stream, generation.Metadata, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return g.generateFn(ctx, input)
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// passTxRunner invokes fn directly with a nil transaction.
func passTxRunner(ctx context.Context, fn store.TxFn) error {
	return fn(ctx, nil)
}
