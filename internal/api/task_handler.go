package api

import (
	"net/http"

	"github.com/mochilabs/mochi-analytics/internal/api/shared"
	"github.com/mochilabs/mochi-analytics/internal/scheduler"
)

// TaskHandler exposes operational task endpoints, currently just the manual
// digest scheduler tick.
type TaskHandler struct {
	scheduler *scheduler.DigestScheduler
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(sched *scheduler.DigestScheduler) *TaskHandler {
	return &TaskHandler{scheduler: sched}
}

// DailyUpdates handles POST /api/tasks/daily-updates requests. It runs one
// scheduler tick synchronously and reports how many digest jobs were
// enqueued. The jobs themselves still run on the worker pool.
func (h *TaskHandler) DailyUpdates(w http.ResponseWriter, r *http.Request) {
	result, err := h.scheduler.RunTick(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), "Failed to run scheduler tick", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}
