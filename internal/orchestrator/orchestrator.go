// Package orchestrator runs one plan generation attempt end to end: it
// admits the attempt (single-flight, durable attempt cap), drives the
// provider stream under a deadline, validates and persists the generated
// structure, classifies failures, and accounts for every accepted attempt
// with exactly one generation_attempts row.
package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/curation"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/generation"
	"github.com/planforge/planforge-api/internal/ratelimit"
	"github.com/planforge/planforge-api/internal/store"
)

// Admission errors. These are reported synchronously to the caller and
// never produce an attempt row.
var (
	// ErrAttemptInProgress is returned when the plan already has a live
	// attempt. Callers should poll rather than retry immediately.
	ErrAttemptInProgress = errors.New("an attempt is already in progress for this plan")

	// ErrPlanTerminal is returned when the plan has already reached a
	// terminal generation status.
	ErrPlanTerminal = errors.New("plan generation is already finalized")
)

// ErrInvalidStructure is returned when the provider stream completed but
// the assembled plan structure is unusable (no modules, missing fields,
// truncated stream).
var ErrInvalidStructure = errors.New("generated plan structure is invalid")

// Config bounds a single attempt.
type Config struct {
	// BaseTimeout is the deadline for the provider call.
	BaseTimeout time.Duration

	// Extension is added to the deadline once, after the stream produces
	// its first chunk. A stream that has started producing earns the
	// extension; a silent one does not. Zero disables it.
	Extension time.Duration
}

// Request describes one attempt the worker wants run.
type Request struct {
	PlanID uuid.UUID
	Input  generation.Input

	// FinalAttempt tells the orchestrator the owning job has no retry
	// budget left, so even a retryable failure must finalize the plan as
	// failed.
	FinalAttempt bool

	// JobID is recorded in the attempt metadata for audit correlation.
	JobID uuid.UUID
}

// Outcome is the terminal result of one accepted attempt.
type Outcome struct {
	AttemptID      uuid.UUID
	Status         domain.AttemptStatus
	Classification *domain.Classification
	ModulesCount   int
	TasksCount     int
	Duration       time.Duration

	// Retryable reports whether the worker may re-run the job for this
	// outcome.
	Retryable bool
}

// Orchestrator executes generation attempts. All shared mutable state
// lives in the stores, so the orchestrator is safe for concurrent use
// across distinct plans; within one plan the admission check enforces at
// most one in-progress attempt.
type Orchestrator struct {
	plans      store.PlanStore
	attempts   store.AttemptStore
	generator  generation.PlanGenerator
	curator    *curation.Curator
	attemptCap *ratelimit.AttemptCap
	runTx      store.TxRunner
	cfg        Config
	logger     *slog.Logger
}

// New creates an Orchestrator. The curator may be nil, in which case
// tasks are persisted without attached resources.
func New(
	plans store.PlanStore,
	attempts store.AttemptStore,
	generator generation.PlanGenerator,
	curator *curation.Curator,
	attemptCap *ratelimit.AttemptCap,
	runTx store.TxRunner,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		plans:      plans,
		attempts:   attempts,
		generator:  generator,
		curator:    curator,
		attemptCap: attemptCap,
		runTx:      runTx,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "orchestrator")),
	}
}

// RunAttempt executes one generation attempt for the plan.
//
// Admission violations (terminal plan, concurrent attempt) return an
// error without writing an attempt row. Every accepted attempt writes
// exactly one row: in_progress at start (or terminal at completion for
// the capped short-circuit), finalized exactly once on every path.
func (o *Orchestrator) RunAttempt(ctx context.Context, req Request) (*Outcome, error) {
	log := o.logger.With("plan_id", req.PlanID, "job_id", req.JobID)
	started := time.Now()

	// Admission: the plan must still be generating and must not have a
	// live attempt.
	plan, err := o.plans.GetPlan(ctx, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if plan.IsTerminal() {
		log.Warn("attempt rejected, plan already terminal",
			"generation_status", plan.GenerationStatus)
		return nil, ErrPlanTerminal
	}

	inProgress, err := o.attempts.HasInProgress(ctx, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to check in-progress attempts: %w", err)
	}
	if inProgress {
		log.Warn("attempt rejected, another attempt is in progress")
		return nil, ErrAttemptInProgress
	}

	// Durable cap: at or beyond the budget the provider is never
	// contacted. The cap derives from persisted rows, so it holds across
	// restarts.
	capped, err := o.attemptCap.Reached(ctx, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to check attempt cap: %w", err)
	}
	if capped {
		return o.recordCapped(ctx, req, started, log)
	}

	attempt, err := domain.NewGenerationAttempt(req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to build attempt: %w", err)
	}
	attempt.Metadata = attemptMetadata(req, "")
	if err := o.attempts.CreateAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to record attempt start: %w", err)
	}

	log.Info("generation attempt started", "attempt_id", attempt.ID)

	modules, meta, genErr := o.generate(ctx, req.PlanID, req.Input)
	attempt.InputTruncated = meta.InputTruncated
	attempt.InputNormalized = meta.InputNormalized
	attempt.PromptFingerprint = meta.PromptFingerprint

	if genErr != nil {
		return o.finalizeFailure(ctx, req, attempt, started, genErr, log)
	}

	// Curation is best-effort enrichment: every lookup funnels through
	// the resource search cache, and a provider failure leaves the task
	// without resources instead of failing the attempt.
	if o.curator != nil {
		for _, m := range modules {
			for _, t := range m.Tasks {
				t.Resources = o.curator.CurateTask(ctx, req.Input.Topic, t)
			}
		}
	}

	modulesCount, tasksCount := countStructure(modules)
	attempt.MarkSuccess(time.Since(started), modulesCount, tasksCount)

	// Structure insert, plan finalization, and attempt finalization
	// commit together: a plan never becomes ready without its structure
	// or without its audit row. The transaction runs detached from the
	// caller's cancellation; a fully generated structure is persisted
	// even when shutdown lands between the stream end and the commit.
	err = o.runTx(context.WithoutCancel(ctx), func(txCtx context.Context, tx *sql.Tx) error {
		plans := o.plans
		attempts := o.attempts
		if tx != nil {
			plans = plans.WithTx(tx)
			attempts = attempts.WithTx(tx)
		}

		if err := plans.SaveStructure(txCtx, req.PlanID, modules); err != nil {
			return fmt.Errorf("failed to save plan structure: %w", err)
		}
		if err := plans.FinalizePlan(txCtx, req.PlanID); err != nil {
			return fmt.Errorf("failed to finalize plan: %w", err)
		}
		return attempts.FinalizeAttempt(txCtx, attempt)
	})
	if err != nil {
		// The transaction rolled back, so the attempt row is still
		// in_progress; account it as a retryable failure.
		return o.finalizeFailure(ctx, req, attempt, started,
			fmt.Errorf("%w: persistence failed: %v", generation.ErrTransport, err), log)
	}

	log.Info("generation attempt succeeded",
		"attempt_id", attempt.ID,
		"modules_count", modulesCount,
		"tasks_count", tasksCount,
		"duration_ms", attempt.DurationMs)

	return &Outcome{
		AttemptID:    attempt.ID,
		Status:       domain.AttemptStatusSuccess,
		ModulesCount: modulesCount,
		TasksCount:   tasksCount,
		Duration:     time.Since(started),
	}, nil
}

// generate invokes the provider and assembles domain modules from the
// chunk stream under the attempt deadline.
func (o *Orchestrator) generate(ctx context.Context, planID uuid.UUID, input generation.Input) ([]*domain.Module, generation.Metadata, error) {
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, meta, err := o.generator.Generate(genCtx, input)
	if err != nil {
		return nil, meta, err
	}
	defer stream.Close()

	deadline := time.Now().Add(o.cfg.BaseTimeout)
	timer := time.NewTimer(o.cfg.BaseTimeout)
	defer timer.Stop()
	extended := false

	var modules []*domain.Module
	var current *domain.Module
	sawTerminal := false

	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				if streamErr := stream.Err(); streamErr != nil {
					return nil, meta, streamErr
				}
				if !sawTerminal {
					return nil, meta, fmt.Errorf("%w: stream ended without terminal chunk", ErrInvalidStructure)
				}
				if len(modules) == 0 {
					return nil, meta, fmt.Errorf("%w: no modules generated", ErrInvalidStructure)
				}
				return modules, meta, nil
			}

			if !extended && o.cfg.Extension > 0 {
				extended = true
				deadline = deadline.Add(o.cfg.Extension)
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(time.Until(deadline))
			}

			switch chunk.Kind {
			case generation.ChunkModule:
				week := chunk.Week
				if week <= 0 {
					week = len(modules) + 1
				}
				m, err := domain.NewModule(planID, week, chunk.ModuleTitle, len(modules))
				if err != nil {
					return nil, meta, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
				}
				m.Description = chunk.ModuleDescription
				modules = append(modules, m)
				current = m

			case generation.ChunkTask:
				if current == nil {
					return nil, meta, fmt.Errorf("%w: task emitted before any module", ErrInvalidStructure)
				}
				t, err := domain.NewTask(current.ID, chunk.TaskTitle, chunk.EstimatedMinutes, len(current.Tasks))
				if err != nil {
					return nil, meta, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
				}
				t.Description = chunk.TaskDescription
				current.Tasks = append(current.Tasks, t)

			case generation.ChunkTerminal:
				sawTerminal = true
			}

		case <-timer.C:
			// Abandon the exchange; the provider call is cancelled via the
			// stream's context so the underlying resources are released.
			stream.Close()
			return nil, meta, generation.ErrTimeout

		case <-ctx.Done():
			stream.Close()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, meta, generation.ErrTimeout
			}
			return nil, meta, fmt.Errorf("%w: attempt cancelled: %v", generation.ErrTransport, ctx.Err())
		}
	}
}

// finalizeFailure writes the terminal failure row and, for non-retryable
// outcomes, finalizes the plan as failed.
func (o *Orchestrator) finalizeFailure(
	ctx context.Context,
	req Request,
	attempt *domain.GenerationAttempt,
	started time.Time,
	cause error,
	log *slog.Logger,
) (*Outcome, error) {
	// The caller's context may already be cancelled, typically by worker
	// shutdown. The terminal row and plan status must still land; a row
	// left in_progress would reject every later attempt for the plan.
	ctx = context.WithoutCancel(ctx)

	classification := Classify(cause)
	attempt.MarkFailure(classification, time.Since(started))
	attempt.Metadata = attemptMetadata(req, cause.Error())

	if err := o.attempts.FinalizeAttempt(ctx, attempt); err != nil {
		log.Error("failed to finalize attempt record",
			"attempt_id", attempt.ID,
			"classification", classification,
			"error", err)
		return nil, fmt.Errorf("failed to finalize attempt: %w", err)
	}

	retryable := domain.ClassificationRetryable(classification) && !req.FinalAttempt
	if !retryable {
		if err := o.plans.UpdateGenerationStatus(ctx, req.PlanID, domain.GenerationStatusFailed); err != nil {
			log.Error("failed to finalize plan as failed", "error", err)
		}
	}

	log.Warn("generation attempt failed",
		"attempt_id", attempt.ID,
		"classification", classification,
		"retryable", retryable,
		"error", cause)

	c := classification
	return &Outcome{
		AttemptID:      attempt.ID,
		Status:         domain.AttemptStatusFailure,
		Classification: &c,
		Duration:       time.Since(started),
		Retryable:      retryable,
	}, nil
}

// recordCapped writes the failure/capped row at completion without ever
// invoking the provider, and finalizes the plan as failed.
func (o *Orchestrator) recordCapped(ctx context.Context, req Request, started time.Time, log *slog.Logger) (*Outcome, error) {
	attempt, err := domain.NewGenerationAttempt(req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to build attempt: %w", err)
	}
	attempt.MarkFailure(domain.ClassificationCapped, time.Since(started))
	attempt.Metadata = attemptMetadata(req, fmt.Sprintf("attempt cap of %d reached", o.attemptCap.Max()))

	if err := o.attempts.CreateAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to record capped attempt: %w", err)
	}

	if err := o.plans.UpdateGenerationStatus(ctx, req.PlanID, domain.GenerationStatusFailed); err != nil {
		log.Error("failed to finalize capped plan as failed", "error", err)
	}

	log.Warn("attempt capped, provider not invoked",
		"attempt_id", attempt.ID,
		"cap", o.attemptCap.Max())

	c := domain.ClassificationCapped
	return &Outcome{
		AttemptID:      attempt.ID,
		Status:         domain.AttemptStatusFailure,
		Classification: &c,
		Duration:       time.Since(started),
		Retryable:      false,
	}, nil
}

// attemptMetadata serializes the audit context recorded on the attempt
// row. Marshal cannot fail for this shape.
func attemptMetadata(req Request, errMsg string) json.RawMessage {
	meta := map[string]any{
		"job_id": req.JobID,
		"topic":  req.Input.Topic,
	}
	if errMsg != "" {
		meta["error"] = errMsg
	}
	out, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return out
}

// countStructure totals the modules and tasks to be persisted.
func countStructure(modules []*domain.Module) (int, int) {
	tasks := 0
	for _, m := range modules {
		tasks += len(m.Tasks)
	}
	return len(modules), tasks
}
