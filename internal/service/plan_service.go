package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/events"
	"github.com/planforge/planforge-api/internal/store"
	"github.com/planforge/planforge-api/internal/worker"
)

// RateLimiter admits or rejects a user action against a burst budget.
// Implementations return a *ratelimit.RateLimitError when the budget is
// exhausted.
type RateLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID) error
}

// SubmitRequest carries the parameters of a new plan generation request.
type SubmitRequest struct {
	Topic         string
	SkillLevel    domain.SkillLevel
	WeeklyHours   int
	LearningStyle string
}

// GenerationStatus is the client-facing projection of a plan's
// generation state. Message is always a templated safe string; raw
// provider errors never appear here.
type GenerationStatus struct {
	PlanID            uuid.UUID               `json:"plan_id"`
	Status            domain.GenerationStatus `json:"status"`
	Message           string                  `json:"message"`
	RetryAfterSeconds int                     `json:"retry_after_seconds,omitempty"`
	AttemptsUsed      int                     `json:"attempts_used"`
	MaxAttempts       int                     `json:"max_attempts"`
}

// PlanService provides plan-related operations.
type PlanService interface {
	// SubmitGeneration creates a plan in generating state and enqueues a
	// generation job for it in the same transaction.
	SubmitGeneration(ctx context.Context, userID uuid.UUID, req SubmitRequest) (*domain.Plan, *domain.Job, error)

	// RequestRegeneration enqueues a regeneration job for an existing plan
	// and flips the plan back to generating. If the plan already has an
	// active job the request is deduplicated and a *JobConflictError
	// carrying the existing job id is returned.
	RequestRegeneration(ctx context.Context, userID, planID uuid.UUID, overrides string) (*domain.Job, error)

	// GetGenerationStatus projects the plan and its latest attempt into a
	// client-safe status.
	GetGenerationStatus(ctx context.Context, userID, planID uuid.UUID) (*GenerationStatus, error)
}

// planServiceImpl implements the PlanService interface.
type planServiceImpl struct {
	runTx           store.TxRunner
	plans           store.PlanStore
	jobs            store.JobStore
	attempts        store.AttemptStore
	limiter         RateLimiter
	eventEmitter    events.EventEmitter
	jobMaxAttempts  int
	planMaxAttempts int
	logger          *slog.Logger
}

// NewPlanService creates a new PlanService.
// It returns an error if any of the required dependencies are nil.
func NewPlanService(
	runTx store.TxRunner,
	plans store.PlanStore,
	jobs store.JobStore,
	attempts store.AttemptStore,
	limiter RateLimiter,
	eventEmitter events.EventEmitter,
	jobMaxAttempts int,
	planMaxAttempts int,
	logger *slog.Logger,
) (PlanService, error) {
	if runTx == nil {
		return nil, &PlanServiceError{Operation: "create_service", Message: "runTx cannot be nil"}
	}
	if plans == nil {
		return nil, &PlanServiceError{Operation: "create_service", Message: "plans cannot be nil"}
	}
	if jobs == nil {
		return nil, &PlanServiceError{Operation: "create_service", Message: "jobs cannot be nil"}
	}
	if attempts == nil {
		return nil, &PlanServiceError{Operation: "create_service", Message: "attempts cannot be nil"}
	}
	if limiter == nil {
		return nil, &PlanServiceError{Operation: "create_service", Message: "limiter cannot be nil"}
	}
	if eventEmitter == nil {
		return nil, &PlanServiceError{Operation: "create_service", Message: "eventEmitter cannot be nil"}
	}
	if jobMaxAttempts < 1 {
		jobMaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &planServiceImpl{
		runTx:           runTx,
		plans:           plans,
		jobs:            jobs,
		attempts:        attempts,
		limiter:         limiter,
		eventEmitter:    eventEmitter,
		jobMaxAttempts:  jobMaxAttempts,
		planMaxAttempts: planMaxAttempts,
		logger:          logger.With("component", "plan_service"),
	}, nil
}

// SubmitGeneration creates a plan and its generation job atomically. The
// burst limit is checked first so rejected requests leave no rows behind.
func (s *planServiceImpl) SubmitGeneration(
	ctx context.Context,
	userID uuid.UUID,
	req SubmitRequest,
) (*domain.Plan, *domain.Job, error) {
	if err := s.limiter.Allow(ctx, userID); err != nil {
		return nil, nil, err
	}

	plan, err := domain.NewPlan(userID, req.Topic, req.SkillLevel, req.WeeklyHours)
	if err != nil {
		return nil, nil, NewPlanServiceError("submit_generation", "invalid plan parameters", err)
	}
	plan.LearningStyle = req.LearningStyle

	payload, err := json.Marshal(worker.GenerationPayload{
		Topic:         req.Topic,
		SkillLevel:    string(req.SkillLevel),
		WeeklyHours:   req.WeeklyHours,
		LearningStyle: req.LearningStyle,
	})
	if err != nil {
		return nil, nil, NewPlanServiceError("submit_generation", "failed to encode job payload", err)
	}

	job, err := domain.NewJob(
		domain.JobTypePlanGeneration,
		userID,
		&plan.ID,
		payload,
		domain.DefaultJobPriority,
		s.jobMaxAttempts,
	)
	if err != nil {
		return nil, nil, NewPlanServiceError("submit_generation", "failed to create job", err)
	}

	err = s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.plans.WithTx(tx).CreatePlan(ctx, plan); err != nil {
			return NewPlanServiceError("submit_generation", "failed to save plan", err)
		}
		if err := s.jobs.WithTx(tx).Enqueue(ctx, job); err != nil {
			return NewPlanServiceError("submit_generation", "failed to enqueue job", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("plan generation submitted",
		"plan_id", plan.ID,
		"job_id", job.ID,
		"user_id", userID)

	s.emit(ctx, events.TypeGenerationQueued, plan.ID, userID, job.ID)

	return plan, job, nil
}

// RequestRegeneration enqueues a regeneration job for the plan. Dedup is
// enforced by the queue's one active job per plan constraint, not by a
// pre-check, so concurrent requests converge on one job.
func (s *planServiceImpl) RequestRegeneration(
	ctx context.Context,
	userID, planID uuid.UUID,
	overrides string,
) (*domain.Job, error) {
	if err := s.limiter.Allow(ctx, userID); err != nil {
		return nil, err
	}

	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, store.ErrPlanNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, NewPlanServiceError("request_regeneration", "failed to load plan", err)
	}
	if plan.UserID != userID {
		return nil, ErrNotPlanOwner
	}

	payload, err := json.Marshal(worker.GenerationPayload{
		Topic:         plan.Topic,
		SkillLevel:    string(plan.SkillLevel),
		WeeklyHours:   plan.WeeklyHours,
		LearningStyle: plan.LearningStyle,
		Overrides:     overrides,
	})
	if err != nil {
		return nil, NewPlanServiceError("request_regeneration", "failed to encode job payload", err)
	}

	job, err := domain.NewJob(
		domain.JobTypePlanRegeneration,
		userID,
		&plan.ID,
		payload,
		domain.DefaultJobPriority,
		s.jobMaxAttempts,
	)
	if err != nil {
		return nil, NewPlanServiceError("request_regeneration", "failed to create job", err)
	}

	err = s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.jobs.WithTx(tx).Enqueue(ctx, job); err != nil {
			return err
		}
		return s.plans.WithTx(tx).UpdateGenerationStatus(ctx, planID, domain.GenerationStatusGenerating)
	})
	if err != nil {
		if existingID, ok := store.IsJobConflict(err); ok {
			s.logger.Info("regeneration deduplicated against active job",
				"plan_id", planID,
				"existing_job_id", existingID)
			return nil, &JobConflictError{ExistingJobID: existingID}
		}
		return nil, NewPlanServiceError("request_regeneration", "failed to enqueue job", err)
	}

	s.logger.Info("plan regeneration submitted",
		"plan_id", planID,
		"job_id", job.ID,
		"user_id", userID)

	s.emit(ctx, events.TypeRegenerationQueued, planID, userID, job.ID)

	return job, nil
}

// GetGenerationStatus projects the plan and its latest attempt into a
// safe status for clients.
func (s *planServiceImpl) GetGenerationStatus(
	ctx context.Context,
	userID, planID uuid.UUID,
) (*GenerationStatus, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, store.ErrPlanNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, NewPlanServiceError("get_generation_status", "failed to load plan", err)
	}
	if plan.UserID != userID {
		return nil, ErrNotPlanOwner
	}

	used, err := s.attempts.CountAttempts(ctx, planID)
	if err != nil {
		return nil, NewPlanServiceError("get_generation_status", "failed to count attempts", err)
	}

	status := &GenerationStatus{
		PlanID:       plan.ID,
		Status:       plan.GenerationStatus,
		AttemptsUsed: used,
		MaxAttempts:  s.planMaxAttempts,
	}

	switch plan.GenerationStatus {
	case domain.GenerationStatusGenerating:
		status.Message = "Your plan is being generated."
		status.RetryAfterSeconds = 5
		return status, nil
	case domain.GenerationStatusReady:
		status.Message = "Your plan is ready."
		return status, nil
	}

	latest, err := s.attempts.LatestAttempt(ctx, planID)
	if err != nil {
		if errors.Is(err, store.ErrAttemptNotFound) {
			status.Message = "Plan generation failed."
			return status, nil
		}
		return nil, NewPlanServiceError("get_generation_status", "failed to load latest attempt", err)
	}

	status.Message, status.RetryAfterSeconds = describeFailure(latest.Classification)
	return status, nil
}

// describeFailure maps a failure classification to a templated client
// message and a suggested retry delay in seconds. Zero means retrying is
// not useful.
func describeFailure(c *domain.Classification) (string, int) {
	if c == nil {
		return "Plan generation failed.", 0
	}

	switch *c {
	case domain.ClassificationTimeout:
		return "Generation took too long and was stopped. You can request a regeneration.", 30
	case domain.ClassificationRateLimit:
		return "Generation is paused due to provider limits. Please try again shortly.", 60
	case domain.ClassificationProviderError:
		return "The generation provider had a temporary problem. You can request a regeneration.", 30
	case domain.ClassificationValidation:
		return "The generated plan was invalid and could not be saved. Try adjusting your topic.", 0
	case domain.ClassificationCapped:
		return "This plan has reached its generation attempt limit.", 0
	default:
		return "Plan generation failed.", 0
	}
}

// emit publishes a lifecycle event. Emission is best-effort: the durable
// queue is the source of truth, so a failed emit is logged and dropped.
func (s *planServiceImpl) emit(ctx context.Context, eventType string, planID, userID, jobID uuid.UUID) {
	event, err := events.NewPlanEvent(eventType, planID, userID, map[string]uuid.UUID{"job_id": jobID})
	if err != nil {
		s.logger.Error("failed to create plan event", "error", err, "plan_id", planID)
		return
	}
	if err := s.eventEmitter.EmitEvent(ctx, event); err != nil {
		s.logger.Error("failed to emit plan event",
			"error", err,
			"event_id", event.ID,
			"plan_id", planID)
	}
}
