package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/example/room-reservations/internal/application"
)

// Authenticator verifies Basic credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (application.Principal, error)
}

// RequireBasicAuth resolves the caller from HTTP Basic credentials and
// stores the principal in the request context.
func RequireBasicAuth(auth Authenticator, logger *slog.Logger) mux.MiddlewareFunc {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, password, ok := r.BasicAuth()
			if !ok || strings.TrimSpace(email) == "" {
				w.Header().Set("WWW-Authenticate", `Basic realm="reservations"`)
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingCredentials)
				return
			}

			principal, err := auth.Authenticate(r.Context(), email, password)
			if err != nil {
				if !errors.Is(err, application.ErrInvalidCredentials) {
					responder.loggerFor(r.Context()).ErrorContext(r.Context(), "authentication failed", "error", err)
				}
				responder.handleServiceError(r.Context(), w, err)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			if logger := LoggerFromContext(ctx); logger != nil {
				ctx = ContextWithLogger(ctx, logger.With("principal", principal.Username))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger assigns a request id, echoes it in X-Request-ID and logs
// request start and completion.
func RequestLogger(base *slog.Logger) mux.MiddlewareFunc {
	base = defaultLogger(base)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)

			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(ContextWithRequestID(r.Context(), id), logger)
			rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(rec, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", rec.status, "duration", time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusWriter) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (s *statusWriter) Flush() {
	if flusher, ok := s.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
