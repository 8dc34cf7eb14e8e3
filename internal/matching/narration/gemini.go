package narration

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/models"
)

// GeminiClient narrates through Google Gemini in JSON response mode.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger logger.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, model string, log logger.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  model,
		logger: log.WithFields(map[string]interface{}{"component": "narration", "provider": "gemini"}),
	}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) Annotate(ctx context.Context, profile models.UserProfile, listings []models.ScoredListing) (map[string]string, error) {
	if len(listings) == 0 {
		return map[string]string{}, nil
	}

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.2)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(buildPrompt(profile, listings)))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return nil, err
	}
	return parseNotes(text, listings)
}

func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}
