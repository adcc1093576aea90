// Package worker polls the durable job queue, claims eligible jobs, and
// drives each one through the generation orchestrator under a bounded
// concurrency limit. It maps attempt outcomes onto job resolution:
// retryable failures go back to pending with backoff, terminal ones
// finalize the job (and, through the orchestrator, the plan).
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/generation"
	"github.com/planforge/planforge-api/internal/orchestrator"
	"github.com/planforge/planforge-api/internal/store"
)

// maxBackoff caps exponential retry backoff.
const maxBackoff = 10 * time.Minute

// AttemptRunner is the slice of the orchestrator the worker depends on.
type AttemptRunner interface {
	RunAttempt(ctx context.Context, req orchestrator.Request) (*orchestrator.Outcome, error)
}

// Config holds configuration for the worker.
type Config struct {
	// PollInterval is how often the queue is polled for eligible jobs.
	PollInterval time.Duration

	// Concurrency bounds the number of attempts in flight at once.
	Concurrency int

	// ShutdownGrace is how long Stop lets in-flight attempts run before
	// cancelling them. Cancelled attempts still finalize their records
	// and resolve their jobs back to pending.
	ShutdownGrace time.Duration

	// BackoffBase is the base for exponential retry backoff.
	BackoffBase time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:  time.Second,
		Concurrency:   4,
		ShutdownGrace: 30 * time.Second,
		BackoffBase:   5 * time.Second,
	}
}

// GenerationPayload is the job payload for plan_generation and
// plan_regeneration jobs.
type GenerationPayload struct {
	Topic         string `json:"topic"`
	SkillLevel    string `json:"skill_level"`
	WeeklyHours   int    `json:"weekly_hours"`
	LearningStyle string `json:"learning_style,omitempty"`
	Overrides     string `json:"overrides,omitempty"`
}

// Worker runs the poll/claim/execute loop.
type Worker struct {
	jobs   store.JobStore
	runner AttemptRunner
	cfg    Config
	logger *slog.Logger
	id     string
	sem    chan struct{}
	wake   chan struct{}

	// pollCancel stops new claims; attemptCancel aborts in-flight
	// attempts and fires only after the shutdown grace window expires.
	pollCancel    context.CancelFunc
	attemptCancel context.CancelFunc

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// New creates a Worker with a process-unique identity used as the claim
// marker on locked jobs.
func New(jobs store.JobStore, runner AttemptRunner, cfg Config, logger *slog.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	id := fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), uuid.NewString()[:8])

	return &Worker{
		jobs:   jobs,
		runner: runner,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "worker"), slog.String("worker_id", id)),
		id:     id,
		sem:    make(chan struct{}, cfg.Concurrency),
		wake:   make(chan struct{}, 1),
	}
}

// ID returns the worker's claim identity.
func (w *Worker) ID() string {
	return w.id
}

// Start launches the poll loop. It returns immediately; processing
// happens on background goroutines until Stop is called.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return errors.New("worker already started")
	}
	w.started = true

	pollCtx, pollCancel := context.WithCancel(context.Background())
	attemptCtx, attemptCancel := context.WithCancel(context.Background())
	w.pollCancel = pollCancel
	w.attemptCancel = attemptCancel

	w.wg.Add(1)
	go w.pollLoop(pollCtx, attemptCtx)

	w.logger.Info("worker started",
		"poll_interval", w.cfg.PollInterval,
		"concurrency", w.cfg.Concurrency)
	return nil
}

// Stop gracefully shuts the worker down: no new claims are made, and
// in-flight attempts run undisturbed until the shutdown grace deadline.
// Only past the deadline are they cancelled; the orchestrator finalizes
// their attempt records even then, so no row is left in_progress.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started || w.pollCancel == nil {
		w.mu.Unlock()
		return
	}
	pollCancel := w.pollCancel
	attemptCancel := w.attemptCancel
	w.mu.Unlock()

	pollCancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped, all in-flight attempts finished")
	case <-time.After(w.cfg.ShutdownGrace):
		w.logger.Warn("shutdown grace expired, abandoning in-flight attempts")
		attemptCancel()
		<-done
	}
	attemptCancel()
}

// Notify nudges the poll loop to check the queue immediately instead of
// waiting out the current poll interval. Safe to call from any
// goroutine; a nudge while one is already pending is coalesced.
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// pollLoop claims and dispatches jobs until the poll context is
// cancelled. Dispatched attempts run on attemptCtx, which outlives the
// poll context by the shutdown grace window.
func (w *Worker) pollLoop(pollCtx, attemptCtx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pollCtx.Done():
			return
		case <-w.wake:
			w.claimAndDispatch(pollCtx, attemptCtx)
		case <-ticker.C:
			w.claimAndDispatch(pollCtx, attemptCtx)
		}
	}
}

// claimAndDispatch claims up to the number of free concurrency slots and
// dispatches each claimed job.
func (w *Worker) claimAndDispatch(pollCtx, attemptCtx context.Context) {
	free := cap(w.sem) - len(w.sem)
	if free <= 0 {
		return
	}

	jobs, err := w.jobs.ClaimNext(pollCtx, w.id, free)
	if err != nil {
		if pollCtx.Err() == nil {
			w.logger.Error("failed to claim jobs", "error", err)
		}
		return
	}

	for _, job := range jobs {
		select {
		case w.sem <- struct{}{}:
		case <-pollCtx.Done():
			// Claimed but shutting down; leave the job processing for the
			// stale-claim sweep.
			return
		}

		w.wg.Add(1)
		go func(job *domain.Job) {
			defer w.wg.Done()
			defer func() { <-w.sem }()
			w.process(attemptCtx, job)
		}(job)
	}
}

// process runs one claimed job through the orchestrator and resolves it.
func (w *Worker) process(ctx context.Context, job *domain.Job) {
	log := w.logger.With(
		"job_id", job.ID,
		"job_type", job.JobType,
		"attempt", job.Attempts,
		"max_attempts", job.MaxAttempts,
	)
	log.Info("processing job")

	if job.PlanID == nil {
		log.Error("job has no plan reference, failing permanently")
		w.resolveFailed(ctx, job, "job has no plan reference", false, log)
		return
	}

	var payload GenerationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		log.Error("job payload is malformed, failing permanently", "error", err)
		w.resolveFailed(ctx, job, fmt.Sprintf("malformed payload: %v", err), false, log)
		return
	}

	req := orchestrator.Request{
		PlanID: *job.PlanID,
		JobID:  job.ID,
		Input: generation.Input{
			Topic:         payload.Topic,
			SkillLevel:    payload.SkillLevel,
			WeeklyHours:   payload.WeeklyHours,
			LearningStyle: payload.LearningStyle,
			Overrides:     payload.Overrides,
		},
		FinalAttempt: !job.AttemptsRemaining(),
	}

	outcome, err := w.runner.RunAttempt(ctx, req)
	// Resolution writes must land even when shutdown cancelled the
	// attempt mid-flight.
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		w.resolveAdmissionError(ctx, job, err, log)
		return
	}

	if outcome.Status == domain.AttemptStatusSuccess {
		result, marshalErr := json.Marshal(map[string]any{
			"attempt_id":    outcome.AttemptID,
			"modules_count": outcome.ModulesCount,
			"tasks_count":   outcome.TasksCount,
		})
		if marshalErr != nil {
			result = nil
		}
		if err := w.jobs.MarkCompleted(ctx, job.ID, result); err != nil {
			log.Error("failed to mark job completed", "error", err)
		}
		log.Info("job completed",
			"modules_count", outcome.ModulesCount,
			"tasks_count", outcome.TasksCount)
		return
	}

	classification := domain.ClassificationProviderError
	if outcome.Classification != nil {
		classification = *outcome.Classification
	}

	retry := outcome.Retryable && job.AttemptsRemaining()
	w.resolveFailed(ctx, job, string(classification), retry, log)
}

// resolveAdmissionError handles orchestrator errors that produced no
// attempt row. In-progress conflicts reschedule the job a poll ahead;
// terminal plans complete the job as a no-op; anything else retries
// within budget.
func (w *Worker) resolveAdmissionError(ctx context.Context, job *domain.Job, err error, log *slog.Logger) {
	switch {
	case errors.Is(err, orchestrator.ErrPlanTerminal):
		log.Info("plan already finalized, completing job without attempt")
		if markErr := w.jobs.MarkCompleted(ctx, job.ID, nil); markErr != nil {
			log.Error("failed to mark job completed", "error", markErr)
		}

	case errors.Is(err, orchestrator.ErrAttemptInProgress):
		log.Warn("another attempt in progress, rescheduling job")
		w.resolveFailed(ctx, job, err.Error(), true, log)

	default:
		log.Error("attempt failed before admission", "error", err)
		w.resolveFailed(ctx, job, err.Error(), job.AttemptsRemaining(), log)
	}
}

// resolveFailed marks the job failed, returning it to pending with
// backoff when retry is set.
func (w *Worker) resolveFailed(ctx context.Context, job *domain.Job, errMsg string, retry bool, log *slog.Logger) {
	backoff := w.backoffFor(job.Attempts)
	if err := w.jobs.MarkFailed(ctx, job.ID, errMsg, retry, backoff); err != nil {
		log.Error("failed to mark job failed", "retry", retry, "error", err)
		return
	}

	if retry {
		log.Info("job returned to queue for retry", "backoff", backoff)
	} else {
		log.Warn("job failed permanently", "error_message", errMsg)
	}
}

// backoffFor computes exponential backoff for the given attempt number,
// capped at maxBackoff.
func (w *Worker) backoffFor(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	backoff := time.Duration(float64(w.cfg.BackoffBase) * math.Pow(2, float64(attempts-1)))
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	return backoff
}
