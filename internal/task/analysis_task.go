package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mochilabs/mochi-analytics/internal/analysis"
)

// AnalysisPayload is the payload for an ad-hoc analysis job: a batch of
// conversations plus the reporting window they cover.
type AnalysisPayload struct {
	Conversations []analysis.Conversation `json:"conversations" validate:"required,min=1"`
	StartDate     string                  `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate       string                  `json:"end_date,omitempty"   validate:"omitempty,datetime=2006-01-02"`
}

// AnalysisHandler runs the simplified conversation analysis over a submitted
// batch and stores the result on the job.
type AnalysisHandler struct {
	logger *slog.Logger
}

// NewAnalysisHandler creates the analysis handler.
func NewAnalysisHandler(logger *slog.Logger) (*AnalysisHandler, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &AnalysisHandler{
		logger: logger.With("task_type", TaskTypeAnalysis),
	}, nil
}

// Type returns the task type identifier.
func (h *AnalysisHandler) Type() string {
	return TaskTypeAnalysis
}

// ValidatePayload checks an analysis payload at submission time.
func (h *AnalysisHandler) ValidatePayload(payload json.RawMessage) error {
	var p AnalysisPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("malformed analysis payload: %w", err)
	}
	return validate.Struct(p)
}

// Execute summarizes the submitted conversations and returns the result.
func (h *AnalysisHandler) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p AnalysisPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("malformed analysis payload: %w", err)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid analysis payload: %w", err)
	}

	result := analysis.Summarize(p.Conversations)
	result.StartDate = p.StartDate
	result.EndDate = p.EndDate

	h.logger.Info("analysis complete",
		"conversations", result.Summary.TotalConversations)

	return json.Marshal(result)
}
