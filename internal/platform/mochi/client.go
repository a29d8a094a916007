// Package mochi is the REST client for the Mochi conversation API, the
// source of the conversations the digest and analysis tasks report on.
package mochi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mochilabs/mochi-analytics/internal/analysis"
)

// Common errors returned by the Mochi client
var (
	ErrMissingBaseURL = errors.New("mochi base URL is required")
	ErrAPIError       = errors.New("mochi API error")
)

// Client fetches conversations from the Mochi API. It implements
// task.ConversationSource.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Mochi API client.
func NewClient(baseURL, apiKey string, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}, nil
}

// conversationsResponse is the API envelope for conversation listings.
type conversationsResponse struct {
	Conversations []analysis.Conversation `json:"conversations"`
}

// FetchConversations returns the organization's conversations within the
// inclusive ISO date range.
func (c *Client) FetchConversations(
	ctx context.Context,
	orgID, dateFrom, dateTo string,
) ([]analysis.Conversation, error) {
	query := url.Values{}
	query.Set("org_id", orgID)
	query.Set("date_from", dateFrom)
	query.Set("date_to", dateTo)

	endpoint := fmt.Sprintf("%s/api/conversations?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build mochi request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mochi request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrAPIError, resp.StatusCode)
	}

	var payload conversationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode mochi response: %w", err)
	}

	c.logger.Debug("fetched conversations",
		"org_id", orgID,
		"date_from", dateFrom,
		"date_to", dateTo,
		"count", len(payload.Conversations))

	return payload.Conversations, nil
}
