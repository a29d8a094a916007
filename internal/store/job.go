package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mochilabs/mochi-analytics/internal/domain"
)

// JobFilter narrows a job listing. Zero values mean "no filter"; Limit of
// zero falls back to the implementation default.
type JobFilter struct {
	State    domain.JobState
	TaskType string
	Limit    int
	Offset   int
}

// JobStore defines the interface for persisting jobs. The persisted job row
// is the single source of truth for job state; the in-memory queue holds only
// job identifiers while work is pending.
//
// All transition methods are guarded: they update a row only when it is in
// the expected source state, and return ErrInvalidTransition otherwise. This
// makes every state write safe under concurrent access without any locking
// above the store.
type JobStore interface {
	// CreateJob persists a newly submitted job in the queued state.
	CreateJob(ctx context.Context, job *domain.Job) error

	// GetJob retrieves a job by ID, or ErrJobNotFound.
	GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// MarkProcessing transitions queued -> processing. This write happens
	// before handler execution begins so concurrent status queries never
	// observe a stale queued state for a running job.
	MarkProcessing(ctx context.Context, id uuid.UUID) error

	// MarkCompleted transitions processing -> completed and stores the result.
	MarkCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage) error

	// MarkFailed transitions processing -> failed and stores the structured error.
	MarkFailed(ctx context.Context, id uuid.UUID, jobErr domain.JobError) error

	// ResetForRetry transitions failed -> queued, incrementing the attempt
	// counter and clearing the error, and returns the updated job. Returns
	// ErrJobNotFound for unknown IDs and ErrInvalidTransition when the job
	// is not currently failed.
	ResetForRetry(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// ListJobs returns a page of jobs matching the filter, newest first,
	// along with the total number of matching jobs.
	ListJobs(ctx context.Context, filter JobFilter) ([]*domain.Job, int, error)
}
