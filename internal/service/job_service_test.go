package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochilabs/mochi-analytics/internal/domain"
	"github.com/mochilabs/mochi-analytics/internal/store"
	"github.com/mochilabs/mochi-analytics/internal/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeJobStore is an in-memory JobStore tracking calls for façade tests.
type fakeJobStore struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]*domain.Job
	createErr error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (s *fakeJobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *fakeJobStore) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *fakeJobStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return s.apply(id, func(j *domain.Job) error { return j.MarkProcessing() })
}

func (s *fakeJobStore) MarkCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	return s.apply(id, func(j *domain.Job) error { return j.Complete(result) })
}

func (s *fakeJobStore) MarkFailed(ctx context.Context, id uuid.UUID, jobErr domain.JobError) error {
	return s.apply(id, func(j *domain.Job) error { return j.Fail(jobErr.Message) })
}

func (s *fakeJobStore) ResetForRetry(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	if err := job.ResetForRetry(); err != nil {
		return nil, store.ErrInvalidTransition
	}
	cp := *job
	return &cp, nil
}

func (s *fakeJobStore) ListJobs(
	ctx context.Context,
	filter store.JobFilter,
) ([]*domain.Job, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Job
	for _, job := range s.jobs {
		if filter.State != "" && job.State != filter.State {
			continue
		}
		if filter.TaskType != "" && job.TaskType != filter.TaskType {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (s *fakeJobStore) apply(id uuid.UUID, fn func(*domain.Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if err := fn(job); err != nil {
		return store.ErrInvalidTransition
	}
	return nil
}

// acceptAllHandler validates every payload; rejectingHandler rejects them.
type acceptAllHandler struct{ taskType string }

func (h *acceptAllHandler) Type() string                            { return h.taskType }
func (h *acceptAllHandler) ValidatePayload(_ json.RawMessage) error { return nil }
func (h *acceptAllHandler) Execute(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

type rejectingHandler struct{ taskType string }

func (h *rejectingHandler) Type() string { return h.taskType }
func (h *rejectingHandler) ValidatePayload(_ json.RawMessage) error {
	return errors.New("org_id is required")
}
func (h *rejectingHandler) Execute(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

func newTestService(t *testing.T, handlers ...task.Handler) (*JobService, *fakeJobStore, *task.Queue) {
	t.Helper()
	jobs := newFakeJobStore()
	queue := task.NewQueue(testLogger())
	registry := task.NewRegistry()
	for _, h := range handlers {
		require.NoError(t, registry.Register(h))
	}
	return NewJobService(jobs, queue, registry, testLogger()), jobs, queue
}

func TestSubmitCreatesQueuedJob(t *testing.T) {
	svc, jobs, queue := newTestService(t, &acceptAllHandler{taskType: "analysis"})

	job, err := svc.Submit(context.Background(), "analysis", json.RawMessage(`{"x":1}`))
	require.NoError(t, err)

	assert.Equal(t, domain.JobStateQueued, job.State)
	assert.Equal(t, 1, job.Attempt)
	assert.Equal(t, 1, queue.Len())

	stored, err := jobs.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateQueued, stored.State)
}

func TestSubmitUnknownTaskType(t *testing.T) {
	svc, jobs, queue := newTestService(t)

	_, err := svc.Submit(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	// A rejected submission never creates a job.
	assert.Equal(t, 0, queue.Len())
	assert.Empty(t, jobs.jobs)
}

func TestSubmitInvalidPayload(t *testing.T) {
	svc, jobs, queue := newTestService(t, &rejectingHandler{taskType: "daily-digest"})

	_, err := svc.Submit(context.Background(), "daily-digest", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "org_id is required")

	assert.Equal(t, 0, queue.Len())
	assert.Empty(t, jobs.jobs)
}

func TestSubmitStoreFailure(t *testing.T) {
	svc, jobs, queue := newTestService(t, &acceptAllHandler{taskType: "analysis"})
	jobs.createErr = errors.New("connection refused")

	_, err := svc.Submit(context.Background(), "analysis", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, queue.Len())
}

func TestGetJobNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestRetryFailedJob(t *testing.T) {
	svc, jobs, queue := newTestService(t, &acceptAllHandler{taskType: "analysis"})

	job, err := svc.Submit(context.Background(), "analysis", nil)
	require.NoError(t, err)

	// Drain the submit enqueue, then drive the job to failed.
	_, err = queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.NoError(t, jobs.MarkProcessing(context.Background(), job.ID))
	require.NoError(t, jobs.MarkFailed(context.Background(), job.ID,
		domain.JobError{TaskType: "analysis", Attempt: 1, Message: "boom"}))

	retried, err := svc.Retry(context.Background(), job.ID)
	require.NoError(t, err)

	// Same ID, incremented attempt, cleared error, re-enqueued.
	assert.Equal(t, job.ID, retried.ID)
	assert.Equal(t, domain.JobStateQueued, retried.State)
	assert.Equal(t, 2, retried.Attempt)
	assert.Nil(t, retried.Error)
	assert.Equal(t, 1, queue.Len())
}

func TestRetryNonFailedJob(t *testing.T) {
	svc, _, queue := newTestService(t, &acceptAllHandler{taskType: "analysis"})

	job, err := svc.Submit(context.Background(), "analysis", nil)
	require.NoError(t, err)
	_, err = queue.Dequeue(context.Background())
	require.NoError(t, err)

	_, err = svc.Retry(context.Background(), job.ID)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
	assert.Equal(t, 0, queue.Len())
}

func TestRetryUnknownJob(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Retry(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestListJobsFilters(t *testing.T) {
	svc, jobs, _ := newTestService(t,
		&acceptAllHandler{taskType: "analysis"},
		&acceptAllHandler{taskType: "daily-digest"})

	a, err := svc.Submit(context.Background(), "analysis", nil)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), "daily-digest", nil)
	require.NoError(t, err)
	require.NoError(t, jobs.MarkProcessing(context.Background(), a.ID))

	listed, total, err := svc.ListJobs(context.Background(), store.JobFilter{TaskType: "analysis"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, listed, 1)
	assert.Equal(t, a.ID, listed[0].ID)

	listed, total, err = svc.ListJobs(context.Background(), store.JobFilter{State: domain.JobStateQueued})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, listed, 1)
	assert.Equal(t, "daily-digest", listed[0].TaskType)
}
