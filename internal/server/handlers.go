package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	apperrors "resource-matcher/internal/common/errors"
	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/matching"
	"resource-matcher/internal/matching/assembler"
	"resource-matcher/internal/models"
)

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.jsonResponse(w, http.StatusRequestEntityTooLarge, &models.MatchResponse{
				Success: false,
				Error:   "request body too large",
			})
			return
		}
		s.errorResponse(w, apperrors.NewInvalidProfileError("unreadable request body"))
		return
	}

	resp, err := s.service.MatchRaw(r.Context(), body, matching.TransportHTTP)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.catalog.Ping(ctx); err != nil {
		logger.FromContext(r.Context(), s.logger).Warn("catalog not ready", map[string]interface{}{"error": err.Error()})
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  apperrors.AsStandardError(err).Message,
		})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	s.jsonResponse(w, apperrors.HTTPStatus(err), assembler.Failure(err))
}
