package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/mochilabs/mochi-analytics/internal/domain"
	"github.com/mochilabs/mochi-analytics/internal/store"
)

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start.
	// If zero or negative, defaults to 1.
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
	}
}

// WorkerPool manages a fixed-size set of worker goroutines that pull job
// identifiers from the queue, resolve a handler via the registry, execute it,
// and persist the resulting state transition. Handler failures, including
// panics, are captured into the job record and never crash a worker.
type WorkerPool struct {
	queue       *Queue
	registry    *Registry
	jobs        store.JobStore
	workerCount int
	logger      *slog.Logger

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorkerPool creates a new worker pool with the specified configuration.
func NewWorkerPool(
	queue *Queue,
	registry *Registry,
	jobs store.JobStore,
	config WorkerPoolConfig,
	logger *slog.Logger,
) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queue:       queue,
		registry:    registry,
		jobs:        jobs,
		workerCount: workerCount,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the worker goroutines. The registry is sealed first so no
// registration can race with handler resolution.
func (p *WorkerPool) Start() {
	p.registry.Seal()

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Info("worker pool started",
		"worker_count", p.workerCount,
		"task_types", p.registry.Types())
}

// Stop cancels the workers and waits for in-flight jobs to finish. A handler
// that is already executing runs to completion; there is no preemption.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker pulls job identifiers from the queue until the pool is stopped or
// the queue is closed and drained.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)

	for {
		jobID, err := p.queue.Dequeue(p.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrQueueClosed) {
				p.logger.Debug("stopping worker", "worker_id", id)
				return
			}
			p.logger.Error("dequeue failed", "worker_id", id, "error", err)
			return
		}

		p.processJob(jobID, id)
	}
}

// processJob handles execution of a single job: load the record, write the
// processing transition before the handler runs, execute, then persist
// exactly one terminal outcome. Worker-boundary errors are logged, never
// propagated.
func (p *WorkerPool) processJob(jobID uuid.UUID, workerID int) {
	// Workers deliberately outlive pool shutdown for the job in hand, so
	// state transitions use a fresh context rather than the pool's.
	ctx := context.Background()

	job, err := p.jobs.GetJob(ctx, jobID)
	if err != nil {
		p.logger.Error("failed to load dequeued job",
			"job_id", jobID,
			"worker_id", workerID,
			"error", err)
		return
	}

	logger := p.logger.With(
		"job_id", job.ID,
		"task_type", job.TaskType,
		"attempt", job.Attempt,
		"worker_id", workerID,
	)

	if err := p.jobs.MarkProcessing(ctx, job.ID); err != nil {
		// Guarded transition: another path already moved this job on.
		logger.Error("failed to transition job to processing", "error", err)
		return
	}

	logger.Info("processing job")

	handler, err := p.registry.Resolve(job.TaskType)
	if err != nil {
		// Should be unreachable when submissions are validated, but a
		// registry miss is a job failure, not a process fault.
		p.failJob(ctx, logger, job.ID, job.TaskType, job.Attempt, err.Error())
		return
	}

	result, execErr := p.execute(ctx, handler, job.Payload)
	if execErr != nil {
		logger.Error("job execution failed", "error", execErr)
		p.failJob(ctx, logger, job.ID, job.TaskType, job.Attempt, execErr.Error())
		return
	}

	if err := p.jobs.MarkCompleted(ctx, job.ID, result); err != nil {
		logger.Error("failed to transition job to completed", "error", err)
		return
	}

	logger.Info("job completed")
}

// execute runs the handler, converting a panic into an ordinary error so a
// faulty handler cannot take down its worker.
func (p *WorkerPool) execute(
	ctx context.Context,
	handler Handler,
	payload []byte,
) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler.Execute(ctx, payload)
}

// failJob persists the failed transition with a structured error.
func (p *WorkerPool) failJob(
	ctx context.Context,
	logger *slog.Logger,
	jobID uuid.UUID,
	taskType string,
	attempt int,
	cause string,
) {
	jobErr := domain.JobError{
		TaskType: taskType,
		Attempt:  attempt,
		Message:  cause,
	}
	if err := p.jobs.MarkFailed(ctx, jobID, jobErr); err != nil {
		logger.Error("failed to transition job to failed", "error", err)
	}
}
