package narration

import (
	"context"
	"errors"
	"strings"
	"time"

	commonhttp "resource-matcher/internal/common/http"
	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/models"
)

var ErrEmptyNotes = errors.New("NARRATION_EMPTY")

// GenAIConfig configures the in-house generation service client.
type GenAIConfig struct {
	BaseURL           string
	APIKey            string
	MaxRetries        int
	RequestsPerSecond float64
	MaxTokens         int
	Temperature       float64
}

// GenAIClient calls POST {base}/api/ai/generate. The service may answer with
// {"notes": {...}} directly or with {"text": "<notes JSON>"}.
type GenAIClient struct {
	config GenAIConfig
	client *commonhttp.Client
	logger logger.Logger
}

func NewGenAIClient(cfg GenAIConfig, log logger.Logger) *GenAIClient {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 800
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}

	opts := []commonhttp.Option{
		commonhttp.WithRetries(cfg.MaxRetries, 100*time.Millisecond),
		commonhttp.WithRateLimit(cfg.RequestsPerSecond, 1),
	}
	if cfg.APIKey != "" {
		opts = append(opts, commonhttp.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}

	return &GenAIClient{
		config: cfg,
		// No client timeout; the assembler bounds each call through ctx.
		client: commonhttp.NewClient(0, opts...),
		logger: log.WithFields(map[string]interface{}{"component": "narration", "provider": "genai"}),
	}
}

func (c *GenAIClient) Name() string { return "genai" }

func (c *GenAIClient) Annotate(ctx context.Context, profile models.UserProfile, listings []models.ScoredListing) (map[string]string, error) {
	if len(listings) == 0 {
		return map[string]string{}, nil
	}

	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}

	requestBody := map[string]interface{}{
		"prompt": buildPrompt(profile, listings),
		"context": map[string]interface{}{
			"listing_ids": ids,
			"purpose":     "resource_match_notes",
		},
		"response_format": "json",
		"max_tokens":      c.config.MaxTokens,
		"temperature":     c.config.Temperature,
	}

	var apiResponse struct {
		Notes map[string]string `json:"notes"`
		Text  string            `json:"text"`
	}
	url := strings.TrimRight(c.config.BaseURL, "/") + "/api/ai/generate"
	if err := c.client.PostJSON(ctx, url, requestBody, &apiResponse); err != nil {
		return nil, err
	}

	var notes map[string]string
	switch {
	case apiResponse.Notes != nil:
		notes = filterNotes(apiResponse.Notes, listings)
	case strings.TrimSpace(apiResponse.Text) != "":
		parsed, err := parseNotes(apiResponse.Text, listings)
		if err != nil {
			return nil, err
		}
		notes = parsed
	default:
		return nil, ErrEmptyNotes
	}

	c.logger.Debug("narration received", map[string]interface{}{
		"requested": len(listings),
		"returned":  len(notes),
	})
	return notes, nil
}
