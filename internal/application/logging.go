package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/room-reservations/internal/logging"
	"github.com/example/room-reservations/internal/persistence"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable label used in
// logs, metrics, and transport error codes.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrLastAdmin):
		return "last_admin"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, persistence.ErrStorage):
		return "storage"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}

// logOutcome logs the result of a service call and reports failures to the
// recorder.
func logOutcome(ctx context.Context, logger *slog.Logger, recorder Recorder, operation string, err error, message string, attrs ...any) {
	if err != nil {
		kind := ErrorKind(err)
		level := slog.LevelError
		switch kind {
		case "validation", "not_found", "permission_denied", "illegal_transition", "conflict", "duplicate", "last_admin", "invalid_credentials":
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "failed to "+message, "error", err, "error_kind", kind)
		if recorder != nil {
			recorder.RecordFailure(operation, kind)
		}
		return
	}
	logger.InfoContext(ctx, message+" succeeded", attrs...)
}
