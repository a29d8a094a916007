// Package gemini implements the generation.Generator interface using
// Google's Gemini API to write digest narratives.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"google.golang.org/genai"

	"github.com/mochilabs/mochi-analytics/internal/analysis"
	"github.com/mochilabs/mochi-analytics/internal/config"
	"github.com/mochilabs/mochi-analytics/internal/generation"
)

// promptTemplate frames the day's metrics for the model. Kept deliberately
// short: the narrative is a single conversational line in a Slack digest.
const promptTemplate = `You are writing one short, friendly sentence for a daily sales digest.
Organization: {{.OrgName}}
Conversations: {{.Total}}
Messages sent: {{.Sent}}
Replies received: {{.Received}}
Stages: {{.Stages}}

Summarize the day in at most two sentences. Plain text only, no markdown.`

// Generator produces digest narratives via the Gemini API.
type Generator struct {
	logger *slog.Logger
	client *genai.Client
	model  string
	prompt *template.Template
}

// NewGenerator creates a Gemini-backed narrative generator.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	prompt, err := template.New("digest").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v",
			generation.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &Generator{
		logger: logger,
		client: client,
		model:  cfg.ModelName,
		prompt: prompt,
	}, nil
}

// GenerateDigestNarrative asks the model for a short summary of the day.
func (g *Generator) GenerateDigestNarrative(
	ctx context.Context,
	orgName string,
	result analysis.Result,
) (string, error) {
	prompt, err := g.buildPrompt(orgName, result)
	if err != nil {
		return "", err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", generation.ErrEmptyResponse
	}

	g.logger.Debug("generated digest narrative", "org_name", orgName)
	return text, nil
}

// buildPrompt renders the prompt template with the day's metrics.
func (g *Generator) buildPrompt(orgName string, result analysis.Result) (string, error) {
	stages := make([]string, 0, len(result.Summary.StageChanges))
	for stage, count := range result.Summary.StageChanges {
		stages = append(stages, fmt.Sprintf("%s=%d", stage, count))
	}

	data := struct {
		OrgName  string
		Total    int
		Sent     int
		Received int
		Stages   string
	}{
		OrgName:  orgName,
		Total:    result.Summary.TotalConversations,
		Sent:     result.Summary.TotalMessagesSent,
		Received: result.Summary.TotalMessagesReceived,
		Stages:   strings.Join(stages, ", "),
	}

	var buf bytes.Buffer
	if err := g.prompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: failed to render prompt: %v",
			generation.ErrGenerationFailed, err)
	}
	return buf.String(), nil
}
