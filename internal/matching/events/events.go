// Package events publishes a notification after every successful match.
package events

import (
	"context"
	"time"

	commonaws "resource-matcher/internal/common/aws"
	apperrors "resource-matcher/internal/common/errors"
	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/common/metrics"
	"resource-matcher/internal/models"
)

const (
	EventMatchCompleted = "resource.match.completed"
	PublishTimeout      = 2 * time.Second
)

// MatchCompleted is the event body.
type MatchCompleted struct {
	RequestID          string         `json:"request_id"`
	Transport          string         `json:"transport"`
	Categories         []string       `json:"categories"`
	Counts             map[string]int `json:"counts"`
	FallbackCategories []string       `json:"fallback_categories"`
	FailedCategories   []string       `json:"failed_categories,omitempty"`
	DurationMs         int64          `json:"duration_ms"`
	Timestamp          time.Time      `json:"timestamp"`
}

// NewMatchCompleted summarizes a result. Counts include every resolved
// category, zero when it was omitted from the response.
func NewMatchCompleted(requestID, transport string, result *models.MatchResult, duration time.Duration) MatchCompleted {
	ev := MatchCompleted{
		RequestID:          requestID,
		Transport:          transport,
		Categories:         append([]string{}, result.Categories...),
		Counts:             make(map[string]int, len(result.Categories)),
		FallbackCategories: []string{},
		DurationMs:         duration.Milliseconds(),
		Timestamp:          time.Now().UTC(),
	}
	for _, c := range result.Categories {
		ev.Counts[c] = len(result.Matches[c])
	}
	for _, s := range result.Stats {
		if s.FallbackUsed && s.Kept > 0 {
			ev.FallbackCategories = append(ev.FallbackCategories, s.Category)
		}
		if s.Failed {
			ev.FailedCategories = append(ev.FailedCategories, s.Category)
		}
	}
	return ev
}

type Publisher interface {
	PublishMatchCompleted(ctx context.Context, ev MatchCompleted) error
}

// NopPublisher drops events; used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) PublishMatchCompleted(context.Context, MatchCompleted) error { return nil }

type SNSPublisher struct {
	client   *commonaws.SNSClient
	topicARN string
	logger   logger.Logger
}

func NewSNSPublisher(client *commonaws.SNSClient, topicARN string, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "events", "topic": topicARN}),
	}
}

// PublishMatchCompleted is bounded by PublishTimeout. Callers treat the
// returned error as informational.
func (p *SNSPublisher) PublishMatchCompleted(ctx context.Context, ev MatchCompleted) error {
	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	msgID, err := p.client.PublishJSON(ctx, p.topicARN, EventMatchCompleted, ev)
	if err != nil {
		metrics.EventsPublished.WithLabelValues("failed").Inc()
		stdErr := apperrors.NewEventPublishFailedError(err).WithMetadata("request_id", ev.RequestID)
		p.logger.Warn("match event not published", map[string]interface{}{
			"request_id": ev.RequestID,
			"error":      stdErr.Error(),
		})
		return stdErr
	}

	metrics.EventsPublished.WithLabelValues("published").Inc()
	p.logger.Debug("match event published", map[string]interface{}{
		"request_id": ev.RequestID,
		"message_id": msgID,
	})
	return nil
}
