package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobState represents the lifecycle state of a job.
type JobState string

// Possible job state values. A job is created in JobStateQueued and only
// moves along the edges queued -> processing -> completed|failed, plus the
// explicit retry edge failed -> queued.
const (
	JobStateQueued     JobState = "queued"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// Common validation errors for Job
var (
	ErrEmptyJobID             = errors.New("job ID cannot be empty")
	ErrEmptyTaskType          = errors.New("job task type cannot be empty")
	ErrInvalidJobState        = errors.New("invalid job state")
	ErrInvalidStateTransition = errors.New("invalid job state transition")
)

// JobError is the structured failure description persisted on a failed job.
type JobError struct {
	TaskType string `json:"task_type"`
	Attempt  int    `json:"attempt"`
	Message  string `json:"message"`
}

// Job represents a unit of asynchronous work. ID, TaskType and Payload are
// immutable after creation; retries reuse the same ID and increment Attempt.
type Job struct {
	ID        uuid.UUID       `json:"id"`
	TaskType  string          `json:"task_type"`
	Payload   json.RawMessage `json:"payload"`
	State     JobState        `json:"state"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *JobError       `json:"error,omitempty"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewJob creates a new Job in the queued state with attempt 1.
// Returns an error if validation fails.
func NewJob(taskType string, payload json.RawMessage) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New(),
		TaskType:  taskType,
		Payload:   payload,
		State:     JobStateQueued,
		Attempt:   1,
		CreatedAt: now,
		UpdatedAt: now,
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

	if j.TaskType == "" {
		return ErrEmptyTaskType
	}

	if !j.State.IsValid() {
		return ErrInvalidJobState
	}

	return nil
}

// MarkProcessing transitions the job from queued to processing.
func (j *Job) MarkProcessing() error {
	if j.State != JobStateQueued {
		return ErrInvalidStateTransition
	}

	j.State = JobStateProcessing
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete transitions the job from processing to completed and stores the
// handler's result. Result and Error are mutually exclusive by construction:
// this is the only path that sets Result.
func (j *Job) Complete(result json.RawMessage) error {
	if j.State != JobStateProcessing {
		return ErrInvalidStateTransition
	}

	j.State = JobStateCompleted
	j.Result = result
	j.Error = nil
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail transitions the job from processing to failed and records a
// structured error capturing the task type, attempt number and cause.
func (j *Job) Fail(cause string) error {
	if j.State != JobStateProcessing {
		return ErrInvalidStateTransition
	}

	j.State = JobStateFailed
	j.Result = nil
	j.Error = &JobError{
		TaskType: j.TaskType,
		Attempt:  j.Attempt,
		Message:  cause,
	}
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// ResetForRetry transitions a failed job back to queued, incrementing the
// attempt counter and clearing the stored error. Retries never create a new
// job; the same ID is re-enqueued.
func (j *Job) ResetForRetry() error {
	if j.State != JobStateFailed {
		return ErrInvalidStateTransition
	}

	j.State = JobStateQueued
	j.Error = nil
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Terminal reports whether the job has reached a terminal state.
// completed is always terminal; failed is terminal until an explicit retry.
func (j *Job) Terminal() bool {
	return j.State == JobStateCompleted || j.State == JobStateFailed
}

// IsValid checks if the state is one of the known JobState values.
func (s JobState) IsValid() bool {
	switch s {
	case JobStateQueued, JobStateProcessing, JobStateCompleted, JobStateFailed:
		return true
	default:
		return false
	}
}
