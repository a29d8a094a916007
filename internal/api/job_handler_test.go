package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochilabs/mochi-analytics/internal/domain"
	"github.com/mochilabs/mochi-analytics/internal/service"
	"github.com/mochilabs/mochi-analytics/internal/store"
	"github.com/mochilabs/mochi-analytics/internal/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubJobStore backs the handler tests with in-memory jobs.
type stubJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job
}

func newStubJobStore() *stubJobStore {
	return &stubJobStore{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (s *stubJobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *stubJobStore) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *stubJobStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return s.apply(id, func(j *domain.Job) error { return j.MarkProcessing() })
}

func (s *stubJobStore) MarkCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	return s.apply(id, func(j *domain.Job) error { return j.Complete(result) })
}

func (s *stubJobStore) MarkFailed(ctx context.Context, id uuid.UUID, jobErr domain.JobError) error {
	return s.apply(id, func(j *domain.Job) error { return j.Fail(jobErr.Message) })
}

func (s *stubJobStore) ResetForRetry(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
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

func (s *stubJobStore) ListJobs(
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

func (s *stubJobStore) apply(id uuid.UUID, fn func(*domain.Job) error) error {
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

type passthroughHandler struct{ taskType string }

func (h *passthroughHandler) Type() string                            { return h.taskType }
func (h *passthroughHandler) ValidatePayload(_ json.RawMessage) error { return nil }
func (h *passthroughHandler) Execute(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

// newTestRouter wires the job routes the same way the server does.
func newTestRouter(t *testing.T) (chi.Router, *stubJobStore) {
	t.Helper()

	jobs := newStubJobStore()
	registry := task.NewRegistry()
	require.NoError(t, registry.Register(&passthroughHandler{taskType: "analysis"}))

	svc := service.NewJobService(jobs, task.NewQueue(testLogger()), registry, testLogger())
	handler := NewJobHandler(svc)

	r := chi.NewRouter()
	r.Post("/api/jobs", handler.SubmitJob)
	r.Get("/api/jobs", handler.ListJobs)
	r.Get("/api/jobs/{id}", handler.GetJob)
	r.Post("/api/jobs/{id}/retry", handler.RetryJob)
	return r, jobs
}

func TestSubmitJobEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"task_type":"analysis","payload":{"conversations":[]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "analysis", resp.TaskType)
	assert.Equal(t, "queued", resp.State)
	assert.Equal(t, 1, resp.Attempt)
}

func TestSubmitJobUnknownTaskType(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"task_type":"ghost"}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitJobMissingTaskType(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitJobMalformedBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString(`{`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobEndpoint(t *testing.T) {
	router, jobs := newTestRouter(t)

	job, err := domain.NewJob("analysis", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, jobs.CreateJob(context.Background(), job))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, job.ID.String(), resp.ID)
	assert.Equal(t, "queued", resp.State)
}

func TestGetJobNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobInvalidID(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetryJobEndpoint(t *testing.T) {
	router, jobs := newTestRouter(t)

	job, err := domain.NewJob("analysis", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, jobs.CreateJob(context.Background(), job))
	require.NoError(t, jobs.MarkProcessing(context.Background(), job.ID))
	require.NoError(t, jobs.MarkFailed(context.Background(), job.ID,
		domain.JobError{TaskType: "analysis", Attempt: 1, Message: "boom"}))

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+job.ID.String()+"/retry", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, job.ID.String(), resp.ID)
	assert.Equal(t, "queued", resp.State)
	assert.Equal(t, 2, resp.Attempt)
	assert.Nil(t, resp.Error)
}

func TestRetryJobNotFailed(t *testing.T) {
	router, jobs := newTestRouter(t)

	job, err := domain.NewJob("analysis", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, jobs.CreateJob(context.Background(), job))

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+job.ID.String()+"/retry", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRetryJobNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+uuid.NewString()+"/retry", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobsEndpoint(t *testing.T) {
	router, jobs := newTestRouter(t)

	queued, err := domain.NewJob("analysis", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, jobs.CreateJob(context.Background(), queued))

	processing, err := domain.NewJob("analysis", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, jobs.CreateJob(context.Background(), processing))
	require.NoError(t, jobs.MarkProcessing(context.Background(), processing.ID))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?state=queued", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListJobsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, queued.ID.String(), resp.Jobs[0].ID)
}

func TestListJobsInvalidState(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?state=bogus", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListJobsInvalidLimit(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?limit=-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
