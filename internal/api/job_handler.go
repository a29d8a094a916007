package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mochilabs/mochi-analytics/internal/api/shared"
	"github.com/mochilabs/mochi-analytics/internal/domain"
	"github.com/mochilabs/mochi-analytics/internal/service"
	"github.com/mochilabs/mochi-analytics/internal/store"
)

// SubmitJobRequest represents the request body for submitting a new job.
type SubmitJobRequest struct {
	TaskType string          `json:"task_type" validate:"required"`
	Payload  json.RawMessage `json:"payload"`
}

// JobErrorResponse describes the failure recorded on a failed job.
type JobErrorResponse struct {
	TaskType string `json:"task_type"`
	Attempt  int    `json:"attempt"`
	Message  string `json:"message"`
}

// JobResponse represents the response data for a job.
type JobResponse struct {
	ID        string            `json:"id"`
	TaskType  string            `json:"task_type"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
	State     string            `json:"state"`
	Result    json.RawMessage   `json:"result,omitempty"`
	Error     *JobErrorResponse `json:"error,omitempty"`
	Attempt   int               `json:"attempt"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ListJobsResponse is the paged listing envelope.
type ListJobsResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Total int           `json:"total"`
}

// JobHandler handles job-related HTTP requests.
type JobHandler struct {
	jobService *service.JobService
	validator  *validator.Validate
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobService *service.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		validator:  validator.New(),
	}
}

// SubmitJob handles POST /api/jobs requests. Processing happens
// asynchronously, so a valid submission returns 202 Accepted with the
// queued job snapshot.
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	job, err := h.jobService.Submit(r.Context(), req.TaskType, req.Payload)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToDTOResponse(job))
}

// GetJob handles GET /api/jobs/{id} requests.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobIDFromRequest(w, r)
	if !ok {
		return
	}

	job, err := h.jobService.GetJob(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobToDTOResponse(job))
}

// RetryJob handles POST /api/jobs/{id}/retry requests. Only failed jobs can
// be retried; anything else answers 409 Conflict.
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobIDFromRequest(w, r)
	if !ok {
		return
	}

	job, err := h.jobService.Retry(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToDTOResponse(job))
}

// ListJobs handles GET /api/jobs requests with optional state, task_type,
// limit and offset query parameters.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilterFromQuery(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	jobs, total, err := h.jobService.ListJobs(r.Context(), filter)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	response := ListJobsResponse{
		Jobs:  make([]JobResponse, 0, len(jobs)),
		Total: total,
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, jobToDTOResponse(job))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// jobIDFromRequest parses the {id} path parameter, responding with 400 on a
// malformed UUID.
func (h *JobHandler) jobIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return uuid.Nil, false
	}
	return id, true
}

// listFilterFromQuery builds a store.JobFilter from query parameters.
func listFilterFromQuery(r *http.Request) (store.JobFilter, error) {
	var filter store.JobFilter

	if raw := r.URL.Query().Get("state"); raw != "" {
		state := domain.JobState(raw)
		if !state.IsValid() {
			return filter, &invalidQueryError{param: "state", value: raw}
		}
		filter.State = state
	}

	filter.TaskType = r.URL.Query().Get("task_type")

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, &invalidQueryError{param: "limit", value: raw}
		}
		filter.Limit = limit
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, &invalidQueryError{param: "offset", value: raw}
		}
		filter.Offset = offset
	}

	return filter, nil
}

type invalidQueryError struct {
	param string
	value string
}

func (e *invalidQueryError) Error() string {
	return "Invalid query parameter " + e.param + ": " + e.value
}

// jobToDTOResponse converts a domain.Job to a JobResponse.
func jobToDTOResponse(job *domain.Job) JobResponse {
	resp := JobResponse{
		ID:        job.ID.String(),
		TaskType:  job.TaskType,
		Payload:   job.Payload,
		State:     string(job.State),
		Result:    job.Result,
		Attempt:   job.Attempt,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.Error != nil {
		resp.Error = &JobErrorResponse{
			TaskType: job.Error.TaskType,
			Attempt:  job.Error.Attempt,
			Message:  job.Error.Message,
		}
	}
	return resp
}
