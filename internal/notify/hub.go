package notify

import (
	"log/slog"
	"sync"

	"github.com/example/room-reservations/internal/application"
)

// Hub broadcasts events to in-process subscribers such as the HTTP event
// stream. Slow subscribers lose events rather than stall the broadcaster.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Payload]struct{}
	buffer      int
	logger      *slog.Logger
}

// NewHub returns a hub whose subscriber channels hold buffer events.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[chan Payload]struct{}),
		buffer:      buffer,
		logger:      logger.With("component", "hub"),
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Payload, func()) {
	ch := make(chan Payload, h.buffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Notify implements application.Notifier.
func (h *Hub) Notify(event application.Event) {
	payload := NewPayload(event)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- payload:
		default:
			h.logger.Warn("subscriber buffer full; event skipped", "kind", payload.Kind, "reservation_id", payload.Reservation.ID)
		}
	}
}

var _ application.Notifier = (*Hub)(nil)
