// Package server exposes the match service over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"resource-matcher/internal/common/config"
	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/matching"
)

// MaxBodyBytes caps POST /match bodies.
const MaxBodyBytes = 64 << 10

// Pinger reports whether the listing catalog is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	httpServer *http.Server
	service    *matching.Service
	catalog    Pinger
	limiter    *clientLimiter
	logger     logger.Logger
}

func New(cfg config.ServerConfig, rl config.RateLimitConfig, svc *matching.Service, catalog Pinger, log logger.Logger) *Server {
	s := &Server{
		service: svc,
		catalog: catalog,
		logger:  log.WithFields(map[string]interface{}{"component": "http"}),
	}
	if rl.Enabled {
		s.limiter = newClientLimiter(rl.RequestsPerSecond, rl.Burst)
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  millis(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: millis(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  millis(cfg.IdleTimeout, 60*time.Second),
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /match", s.handleMatch)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.withRecover(s.withRequestID(s.withLogging(s.withRateLimit(mux))))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", map[string]interface{}{"addr": s.httpServer.Addr})
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.service.Close()
	return nil
}

func millis(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}
