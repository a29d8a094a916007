// Package service contains application services coordinating domain logic,
// persistence and the job queue.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mochilabs/mochi-analytics/internal/domain"
	"github.com/mochilabs/mochi-analytics/internal/store"
	"github.com/mochilabs/mochi-analytics/internal/task"
)

// JobService is the submission/query façade consumed by the HTTP API and the
// scheduler. It owns the submit -> persist -> enqueue path and the
// caller-initiated retry transition; workers own every other transition.
type JobService struct {
	jobs     store.JobStore
	queue    *task.Queue
	registry *task.Registry
	logger   *slog.Logger
}

// NewJobService creates a new JobService.
func NewJobService(
	jobs store.JobStore,
	queue *task.Queue,
	registry *task.Registry,
	logger *slog.Logger,
) *JobService {
	return &JobService{
		jobs:     jobs,
		queue:    queue,
		registry: registry,
		logger:   logger,
	}
}

// Submit validates the task type and payload, persists a new job in the
// queued state and enqueues it. Validation failures wrap
// domain.ErrValidation and never create a job.
func (s *JobService) Submit(
	ctx context.Context,
	taskType string,
	payload json.RawMessage,
) (*domain.Job, error) {
	handler, err := s.registry.Resolve(taskType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := handler.ValidatePayload(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	job, err := domain.NewJob(taskType, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	if err := s.queue.Enqueue(job.ID); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.logger.Info("job submitted",
		"job_id", job.ID,
		"task_type", taskType)

	return job, nil
}

// GetJob returns a snapshot of the job, or store.ErrJobNotFound.
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return s.jobs.GetJob(ctx, id)
}

// Retry transitions a failed job back to queued (attempt += 1, error
// cleared) and re-enqueues it under the same ID. Returns
// store.ErrJobNotFound for unknown IDs and store.ErrInvalidTransition when
// the job is not currently failed; in the latter case the job is unchanged.
func (s *JobService) Retry(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := s.jobs.ResetForRetry(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(job.ID); err != nil {
		return nil, fmt.Errorf("failed to re-enqueue job: %w", err)
	}

	s.logger.Info("job retried",
		"job_id", job.ID,
		"task_type", job.TaskType,
		"attempt", job.Attempt)

	return job, nil
}

// ListJobs returns a page of job snapshots matching the filter plus the
// total matching count.
func (s *JobService) ListJobs(
	ctx context.Context,
	filter store.JobFilter,
) ([]*domain.Job, int, error) {
	return s.jobs.ListJobs(ctx, filter)
}
