package server

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/sitekeeper/sitekeeper/pkg/errors"
	"github.com/sitekeeper/sitekeeper/pkg/logging"
)

// corsMiddleware adds CORS headers based on allowed origins configuration.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if allowed, wildcard := s.isOriginAllowed(origin); allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				if !wildcard {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) isOriginAllowed(origin string) (bool, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false, false
	}
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if allowed == "*" {
			return true, true
		}
		if strings.EqualFold(allowed, origin) {
			return true, false
		}
	}
	return false, false
}

// securityHeadersMiddleware adds standard security headers to responses.
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// requireAdmin rejects requests without a valid admin or session token.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			s.logger.Warn(logging.CategoryServer, "auth_denied", "unauthorized request", map[string]any{
				"path":   r.URL.Path,
				"method": r.Method,
			})
			respondError(w, apperrors.New(apperrors.ErrCodeAuthRequired, "authorization required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware counts requests and observes latency per route pattern.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metricHTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		metricHTTPDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
