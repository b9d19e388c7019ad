package notify

import (
	"context"
	"log/slog"

	"github.com/example/room-reservations/internal/application"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging through logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("sink", "log")}
}

// Name implements Sink.
func (s *LogSink) Name() string { return "log" }

// Deliver implements Sink.
func (s *LogSink) Deliver(ctx context.Context, event application.Event) error {
	s.logger.InfoContext(ctx, "reservation event",
		"kind", event.Kind,
		"reservation_id", event.Reservation.ID,
		"username", event.Reservation.Username,
		"room", event.Reservation.RoomName,
		"window", event.Reservation.Window.String(),
		"status", event.Reservation.Status,
		"actor", event.Actor.Username,
	)
	return nil
}
