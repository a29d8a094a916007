package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mochilabs/mochi-analytics/internal/analysis"
	"github.com/mochilabs/mochi-analytics/internal/generation"
	"github.com/mochilabs/mochi-analytics/internal/store"
)

// Common dependency errors
var (
	ErrNilScheduleStore      = errors.New("schedule store cannot be nil")
	ErrNilConversationSource = errors.New("conversation source cannot be nil")
	ErrNilDigestSender       = errors.New("digest sender cannot be nil")
	ErrNilLogger             = errors.New("logger cannot be nil")
)

// validate is the shared payload validator for task handlers.
var validate = validator.New()

// ConversationSource fetches an organization's conversations for a date
// range (ISO dates, inclusive). It is an opaque external collaborator: the
// only contract is "return conversations, or fail with a described cause".
type ConversationSource interface {
	FetchConversations(ctx context.Context, orgID, dateFrom, dateTo string) ([]analysis.Conversation, error)
}

// DigestMessage is the content handed to the digest sender.
type DigestMessage struct {
	OrgName   string
	DateRange string
	Result    analysis.Result
	Narrative string
}

// DigestSender delivers a formatted daily digest to a messaging channel.
type DigestSender interface {
	SendDailyDigest(ctx context.Context, channel string, msg DigestMessage) error
}

// DigestPayload is the payload for a daily-digest job: the organization and
// the local calendar date (in the organization's timezone) the digest fires
// on. The digest itself reports the previous local day.
type DigestPayload struct {
	OrgID string `json:"org_id" validate:"required"`
	Date  string `json:"date"  validate:"required,datetime=2006-01-02"`
}

// digestResult is the structured result stored on a completed digest job.
type digestResult struct {
	OrgID         string `json:"org_id"`
	Date          string `json:"date"`
	ReportDate    string `json:"report_date"`
	Conversations int    `json:"conversations"`
	Sent          bool   `json:"sent"`
}

// DailyDigestHandler sends an organization's daily Slack digest. On success
// it records the digest date on the organization's schedule, which is what
// keeps subsequent scheduler ticks from re-firing for the same local day.
type DailyDigestHandler struct {
	schedules     store.ScheduleStore
	conversations ConversationSource
	sender        DigestSender
	narrator      generation.Generator
	logger        *slog.Logger
}

// NewDailyDigestHandler creates the daily-digest handler. narrator is
// optional: when nil the digest is sent without a generated narrative.
func NewDailyDigestHandler(
	schedules store.ScheduleStore,
	conversations ConversationSource,
	sender DigestSender,
	narrator generation.Generator,
	logger *slog.Logger,
) (*DailyDigestHandler, error) {
	if schedules == nil {
		return nil, ErrNilScheduleStore
	}
	if conversations == nil {
		return nil, ErrNilConversationSource
	}
	if sender == nil {
		return nil, ErrNilDigestSender
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &DailyDigestHandler{
		schedules:     schedules,
		conversations: conversations,
		sender:        sender,
		narrator:      narrator,
		logger:        logger.With("task_type", TaskTypeDailyDigest),
	}, nil
}

// Type returns the task type identifier.
func (h *DailyDigestHandler) Type() string {
	return TaskTypeDailyDigest
}

// ValidatePayload checks a digest payload at submission time.
func (h *DailyDigestHandler) ValidatePayload(payload json.RawMessage) error {
	var p DigestPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("malformed digest payload: %w", err)
	}
	return validate.Struct(p)
}

// Execute fetches the previous local day's conversations, summarizes them,
// sends the Slack digest, and marks the digest date sent. A day with no
// conversations completes without sending but still marks the date, so the
// scheduler does not keep re-firing an empty digest.
func (h *DailyDigestHandler) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p DigestPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("malformed digest payload: %w", err)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid digest payload: %w", err)
	}

	logger := h.logger.With("org_id", p.OrgID, "date", p.Date)

	sched, err := h.schedules.GetSchedule(ctx, p.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization schedule: %w", err)
	}

	reportDate, err := previousDate(p.Date)
	if err != nil {
		return nil, err
	}

	conversations, err := h.conversations.FetchConversations(ctx, p.OrgID, reportDate, reportDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversations: %w", err)
	}

	result := digestResult{
		OrgID:      p.OrgID,
		Date:       p.Date,
		ReportDate: reportDate,
	}

	if len(conversations) == 0 {
		logger.Info("no conversations for report date, skipping send")
	} else {
		summary := analysis.Summarize(conversations)
		result.Conversations = summary.Summary.TotalConversations

		msg := DigestMessage{
			OrgName:   sched.Name,
			DateRange: reportDate,
			Result:    summary,
		}

		if h.narrator != nil {
			narrative, genErr := h.narrator.GenerateDigestNarrative(ctx, sched.Name, summary)
			if genErr != nil {
				// The narrative is decoration; the digest still goes out.
				logger.Warn("narrative generation failed", "error", genErr)
			} else {
				msg.Narrative = narrative
			}
		}

		if err := h.sender.SendDailyDigest(ctx, sched.SlackChannel, msg); err != nil {
			return nil, fmt.Errorf("failed to send digest: %w", err)
		}
		result.Sent = true
		logger.Info("digest sent", "channel", sched.SlackChannel, "conversations", result.Conversations)
	}

	// Recorded only after a successful pass so a failed send stays eligible
	// on the next scheduler tick of the same local day.
	if err := h.schedules.MarkDigestSent(ctx, p.OrgID, p.Date); err != nil {
		return nil, fmt.Errorf("failed to record digest date: %w", err)
	}

	return json.Marshal(result)
}

// previousDate returns the ISO date one calendar day before date.
func previousDate(date string) (string, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return day.AddDate(0, 0, -1).Format("2006-01-02"), nil
}
