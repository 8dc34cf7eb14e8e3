// Package matching ties the matcher, the response assembler and the event
// publisher together behind one call shared by every transport.
package matching

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "resource-matcher/internal/common/errors"
	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/common/metrics"
	"resource-matcher/internal/common/observability"
	"resource-matcher/internal/common/validation"
	"resource-matcher/internal/matching/assembler"
	"resource-matcher/internal/matching/events"
	"resource-matcher/internal/matching/orchestrator"
	"resource-matcher/internal/models"
)

// Transports label metrics and events.
const (
	TransportHTTP   = "http"
	TransportWorker = "worker"
	TransportCLI    = "cli"
)

const DefaultRequestTimeout = 10 * time.Second

// Outcome labels on match_requests_total.
const (
	outcomeSuccess     = "success"
	outcomeInvalid     = "invalid"
	outcomeUnavailable = "unavailable"
	outcomeTimeout     = "timeout"
	outcomeError       = "error"
)

type Service struct {
	matcher   orchestrator.Matcher
	assembler *assembler.Assembler
	publisher events.Publisher
	obs       *observability.Observability
	timeout   time.Duration
	logger    logger.Logger

	pending sync.WaitGroup
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithObservability(obs *observability.Observability) Option {
	return func(s *Service) { s.obs = obs }
}

// WithRequestTimeout bounds each match. Zero keeps the default.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewService(matcher orchestrator.Matcher, asm *assembler.Assembler, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		matcher:   matcher,
		assembler: asm,
		publisher: events.NopPublisher{},
		timeout:   DefaultRequestTimeout,
		logger:    log.WithFields(map[string]interface{}{"component": "match-service"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MatchRaw validates a JSON request body before matching it.
func (s *Service) MatchRaw(ctx context.Context, raw []byte, transport string) (*models.MatchResponse, error) {
	req, err := validation.DecodeMatchRequest(raw)
	if err != nil {
		ctx = ensureRequestID(ctx)
		metrics.MatchRequests.WithLabelValues(transport, outcomeInvalid).Inc()
		logger.FromContext(ctx, s.logger).Info("match request rejected", map[string]interface{}{
			"transport": transport,
			"error":     err.Error(),
		})
		return nil, err
	}
	return s.Match(ctx, req, transport)
}

// Match runs one request end to end. Only user-visible errors are returned;
// narration and event failures are absorbed.
func (s *Service) Match(ctx context.Context, req models.MatchRequest, transport string) (*models.MatchResponse, error) {
	start := time.Now()
	ctx = ensureRequestID(ctx)
	requestID := logger.RequestID(ctx)
	log := logger.FromContext(ctx, s.logger).WithFields(map[string]interface{}{"transport": transport})

	matchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.matcher.Match(matchCtx, req.Profile(), req.Categories)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			err = apperrors.NewMatchTimeoutError(err)
		}
		s.record(ctx, transport, outcomeFor(err), start)
		log.Error("match failed", map[string]interface{}{
			"error":    err.Error(),
			"duration": time.Since(start).Milliseconds(),
		})
		return nil, err
	}

	resp := s.assembler.Assemble(ctx, result, req)
	duration := time.Since(start)
	s.record(ctx, transport, outcomeSuccess, start)

	counts := make(map[string]int, len(result.Categories))
	for _, c := range result.Categories {
		counts[c] = len(result.Matches[c])
	}
	log.Info("match completed", map[string]interface{}{
		"categories": result.Categories,
		"counts":     counts,
		"duration":   duration.Milliseconds(),
	})

	s.publish(ctx, events.NewMatchCompleted(requestID, transport, result, duration))
	return resp, nil
}

// Close waits for in-flight event publishes.
func (s *Service) Close() {
	s.pending.Wait()
}

// publish runs detached from the request so a slow bus never delays the
// response; the publisher bounds its own duration.
func (s *Service) publish(ctx context.Context, ev events.MatchCompleted) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		_ = s.publisher.PublishMatchCompleted(context.WithoutCancel(ctx), ev)
	}()
}

func (s *Service) record(ctx context.Context, transport, outcome string, start time.Time) {
	d := time.Since(start)
	metrics.MatchRequests.WithLabelValues(transport, outcome).Inc()
	metrics.MatchDuration.WithLabelValues(transport).Observe(d.Seconds())
	s.obs.RecordMatch(ctx, transport, outcome, d)
}

func outcomeFor(err error) string {
	switch apperrors.AsStandardError(err).Code {
	case apperrors.ErrCodeInvalidProfile:
		return outcomeInvalid
	case apperrors.ErrCodeCatalogUnavailable:
		return outcomeUnavailable
	case apperrors.ErrCodeMatchTimeout:
		return outcomeTimeout
	default:
		return outcomeError
	}
}

func ensureRequestID(ctx context.Context) context.Context {
	if logger.RequestID(ctx) != "" {
		return ctx
	}
	return logger.WithRequestID(ctx, uuid.New().String())
}
