// Package slack delivers daily digest messages through the Slack Web API.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mochilabs/mochi-analytics/internal/analysis"
	"github.com/mochilabs/mochi-analytics/internal/task"
)

// Common errors returned by the Slack client
var (
	ErrMissingBotToken = errors.New("slack bot token is required")
	ErrAPIError        = errors.New("slack API error")
)

// Client posts messages to Slack via chat.postMessage.
type Client struct {
	baseURL    string
	botToken   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Slack client. baseURL defaults to the public Slack API
// when empty.
func NewClient(baseURL, botToken string, logger *slog.Logger) (*Client, error) {
	if botToken == "" {
		return nil, ErrMissingBotToken
	}
	if baseURL == "" {
		baseURL = "https://slack.com/api"
	}

	return &Client{
		baseURL:  baseURL,
		botToken: botToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

// block is a minimal Block Kit block.
type block struct {
	Type   string       `json:"type"`
	Text   *textObject  `json:"text,omitempty"`
	Fields []textObject `json:"fields,omitempty"`
}

type textObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// postMessageRequest is the chat.postMessage payload.
type postMessageRequest struct {
	Channel string  `json:"channel"`
	Text    string  `json:"text,omitempty"`
	Blocks  []block `json:"blocks,omitempty"`
}

// postMessageResponse is the subset of the Slack response we care about.
type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SendDailyDigest formats and posts a digest message to the given channel.
// It implements task.DigestSender.
func (c *Client) SendDailyDigest(ctx context.Context, channel string, msg task.DigestMessage) error {
	req := postMessageRequest{
		Channel: channel,
		Text:    fmt.Sprintf("Daily update for %s (%s)", msg.OrgName, msg.DateRange),
		Blocks:  digestBlocks(msg),
	}

	if err := c.postMessage(ctx, req); err != nil {
		return err
	}

	c.logger.Info("digest posted to slack",
		"channel", channel,
		"org_name", msg.OrgName)
	return nil
}

// postMessage calls chat.postMessage and surfaces both transport and
// API-level failures.
func (c *Client) postMessage(ctx context.Context, payload postMessageRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode slack message: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build slack request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.botToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrAPIError, resp.StatusCode)
	}

	var apiResp postMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("failed to decode slack response: %w", err)
	}
	if !apiResp.OK {
		return fmt.Errorf("%w: %s", ErrAPIError, apiResp.Error)
	}

	return nil
}

// digestBlocks renders the digest as Block Kit blocks: a header, the core
// metrics, an optional narrative, and a per-setter breakdown.
func digestBlocks(msg task.DigestMessage) []block {
	summary := msg.Result.Summary

	blocks := []block{
		{
			Type: "header",
			Text: &textObject{
				Type: "plain_text",
				Text: fmt.Sprintf("%s — Daily Update (%s)", msg.OrgName, msg.DateRange),
			},
		},
		{
			Type: "section",
			Fields: []textObject{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Conversations:*\n%d", summary.TotalConversations)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Messages sent:*\n%d", summary.TotalMessagesSent)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Replies received:*\n%d", summary.TotalMessagesReceived)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Stage changes:*\n%s", formatStages(summary.StageChanges))},
			},
		},
	}

	if msg.Narrative != "" {
		blocks = append(blocks, block{
			Type: "section",
			Text: &textObject{Type: "mrkdwn", Text: msg.Narrative},
		})
	}

	if len(msg.Result.BySetter) > 0 {
		blocks = append(blocks, block{
			Type: "section",
			Text: &textObject{Type: "mrkdwn", Text: formatSetters(msg.Result.BySetter)},
		})
	}

	return blocks
}

// formatStages renders stage counts as "stage: n" lines.
func formatStages(stages map[string]int) string {
	if len(stages) == 0 {
		return "none"
	}

	var buf bytes.Buffer
	for _, stage := range sortedKeys(stages) {
		fmt.Fprintf(&buf, "%s: %d\n", stage, stages[stage])
	}
	return buf.String()
}

// formatSetters renders the per-setter breakdown.
func formatSetters(setters map[string]analysis.SetterMetrics) string {
	var buf bytes.Buffer
	buf.WriteString("*Setters:*\n")
	for _, name := range sortedSetterKeys(setters) {
		m := setters[name]
		fmt.Fprintf(&buf, "• %s — %d conversations, %d messages sent\n",
			name, m.TotalConversations, m.TotalMessagesSent)
	}
	return buf.String()
}
