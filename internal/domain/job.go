package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a durable queue job.
type JobStatus string

// Possible job status values.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobType identifies the kind of work a job carries.
type JobType string

// Job type values.
const (
	JobTypePlanGeneration   JobType = "plan_generation"
	JobTypePlanRegeneration JobType = "plan_regeneration"
)

// DefaultJobPriority is the priority assigned to jobs that do not request
// one explicitly. Higher priorities are served first.
const DefaultJobPriority = 0

// Common validation errors for Job
var (
	ErrEmptyJobID         = errors.New("job ID cannot be empty")
	ErrEmptyJobUserID     = errors.New("job user ID cannot be empty")
	ErrInvalidJobAttempts = errors.New("job max attempts must be positive")
)

// Job represents one durable queue entry. A job is eligible for claiming
// iff status is pending and ScheduledFor is not in the future; once
// claimed, LockedBy identifies the owning worker until the job is
// resolved. Completed and failed rows are retained for a bounded window
// and purged by external housekeeping.
type Job struct {
	ID           uuid.UUID       `json:"id"`
	PlanID       *uuid.UUID      `json:"plan_id,omitempty"`
	UserID       uuid.UUID       `json:"user_id"`
	JobType      JobType         `json:"job_type"`
	Status       JobStatus       `json:"status"`
	Priority     int             `json:"priority"`
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"max_attempts"`
	Payload      json.RawMessage `json:"payload"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error,omitempty"`
	LockedAt     *time.Time      `json:"locked_at,omitempty"`
	LockedBy     string          `json:"locked_by,omitempty"`
	ScheduledFor time.Time       `json:"scheduled_for"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewJob creates a pending job of the given type for a user. If planID is
// non-nil the job is bound to that plan and participates in the one
// active job per plan constraint.
func NewJob(jobType JobType, userID uuid.UUID, planID *uuid.UUID, payload json.RawMessage, priority, maxAttempts int) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:           uuid.New(),
		PlanID:       planID,
		UserID:       userID,
		JobType:      jobType,
		Status:       JobStatusPending,
		Priority:     priority,
		MaxAttempts:  maxAttempts,
		Payload:      payload,
		ScheduledFor: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.UserID == uuid.Nil {
		return ErrEmptyJobUserID
	}

	if !isValidJobType(j.JobType) {
		return ErrInvalidJobType
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if j.MaxAttempts < 1 {
		return ErrInvalidJobAttempts
	}

	return nil
}

// IsTerminal reports whether the job has been resolved.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// AttemptsRemaining reports whether the job still has retry budget.
func (j *Job) AttemptsRemaining() bool {
	return j.Attempts < j.MaxAttempts
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// isValidJobType checks if the given type is a valid JobType.
func isValidJobType(t JobType) bool {
	switch t {
	case JobTypePlanGeneration, JobTypePlanRegeneration:
		return true
	default:
		return false
	}
}
