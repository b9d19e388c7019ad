package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/room-reservations/internal/notify"
)

type eventSource interface {
	Subscribe() (<-chan notify.Payload, func())
}

// EventsHandler streams reservation events as server-sent events.
// Non-admin callers only see events for their own reservations.
type EventsHandler struct {
	source    eventSource
	heartbeat time.Duration
	responder responder
	logger    *slog.Logger
}

func NewEventsHandler(source eventSource, logger *slog.Logger) *EventsHandler {
	base := defaultLogger(logger)
	return &EventsHandler{source: source, heartbeat: 30 * time.Second, responder: newResponder(base), logger: base}
}

func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "EventsHandler", "Stream")

	// The server write timeout would otherwise end long-lived streams.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	events, cancel := h.source.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	logger.InfoContext(r.Context(), "event stream opened")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.InfoContext(r.Context(), "event stream closed")
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case payload, open := <-events:
			if !open {
				return
			}
			if !principal.IsAdmin() && payload.Reservation.Username != principal.Username {
				continue
			}
			data, err := json.Marshal(payload)
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", payload.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
