package api

import (
	"errors"
	"net/http"

	"github.com/mochilabs/mochi-analytics/internal/domain"
	"github.com/mochilabs/mochi-analytics/internal/store"
	"github.com/mochilabs/mochi-analytics/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Validation errors (bad payload, unknown task type, bad schedule data)
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, task.ErrUnknownTaskType):
		return http.StatusBadRequest

	// Not found errors
	case errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, store.ErrScheduleNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors: retry on a job that is not failed
	case errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidStateTransition):
		return http.StatusConflict

	// The queue only closes during shutdown
	case errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, task.ErrUnknownTaskType):
		return "Unknown task type"

	case errors.Is(err, domain.ErrValidation):
		return "Invalid request: " + err.Error()

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid job ID"

	case errors.Is(err, store.ErrJobNotFound):
		return "Job not found"

	case errors.Is(err, store.ErrScheduleNotFound):
		return "Organization schedule not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidStateTransition):
		return "Job is not in a retryable state"

	case errors.Is(err, task.ErrQueueClosed):
		return "Service is shutting down"

	default:
		return "An unexpected error occurred"
	}
}
