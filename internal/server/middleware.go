package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/models"
)

const requestIDHeader = "X-Request-ID"

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.FromContext(r.Context(), s.logger).Info("request completed", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"remote":   clientID(r),
			"duration": time.Since(start).Milliseconds(),
		})
	})
}

func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("panic serving request", map[string]interface{}{
					"path":        r.URL.Path,
					"panic":       v,
					"headersSent": rec.wroteHeader,
				})
				// The status line is already out; a second one would be ignored
				// and the body would be corrupted.
				if rec.wroteHeader {
					return
				}
				s.jsonResponse(w, http.StatusInternalServerError, &models.MatchResponse{Success: false, Error: "internal error"})
			}
		}()
		next.ServeHTTP(rec, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || r.URL.Path != "/match" {
			next.ServeHTTP(w, r)
			return
		}
		if !s.limiter.allow(clientID(r)) {
			w.Header().Set("Retry-After", "1")
			s.jsonResponse(w, http.StatusTooManyRequests, &models.MatchResponse{
				Success: false,
				Error:   "rate limit exceeded",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientID is the remote IP. Forwarding headers are not trusted.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

type clientLimiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	clients map[string]*clientEntry
	lastGC  time.Time
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const clientIdleTTL = 10 * time.Minute

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = int(rps * 2)
	}
	return &clientLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientEntry),
		lastGC:  time.Now(),
	}
}

func (c *clientLimiter) allow(client string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Sub(c.lastGC) > clientIdleTTL {
		for k, e := range c.clients {
			if now.Sub(e.lastSeen) > clientIdleTTL {
				delete(c.clients, k)
			}
		}
		c.lastGC = now
	}

	e, ok := c.clients[client]
	if !ok {
		e = &clientEntry{limiter: rate.NewLimiter(c.rps, c.burst)}
		c.clients[client] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
