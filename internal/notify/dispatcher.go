// Package notify delivers reservation lifecycle events to e-mail, webhooks,
// logs and in-process subscribers without blocking the services that emit
// them.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/room-reservations/internal/application"
)

// Sink delivers one event. Deliver may block; the dispatcher bounds it with
// a per-event timeout.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event application.Event) error
}

// FailureRecorder receives delivery accounting. *metrics.Metrics satisfies it.
type FailureRecorder interface {
	RecordNotificationFailure(sink string)
	RecordNotificationDropped()
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize bounds the number of pending events.
func WithQueueSize(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queueSize = size
		}
	}
}

// WithDeliveryTimeout bounds each Deliver call.
func WithDeliveryTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithFailureRecorder reports failed and dropped deliveries.
func WithFailureRecorder(recorder FailureRecorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = recorder }
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Dispatcher queues events and hands them to its sinks from a single worker
// goroutine, so events reach each sink in emission order. Notify never
// blocks: when the queue is full the event is dropped and counted.
type Dispatcher struct {
	sinks     []Sink
	queueSize int
	timeout   time.Duration
	recorder  FailureRecorder
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan application.Event
	done   chan struct{}
}

// NewDispatcher starts the worker. Call Close to drain and stop it.
func NewDispatcher(sinks []Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sinks:     sinks,
		queueSize: 256,
		timeout:   10 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.logger = d.logger.With("component", "notify")
	d.queue = make(chan application.Event, d.queueSize)
	d.done = make(chan struct{})

	go d.run()
	return d
}

// Notify implements application.Notifier.
func (d *Dispatcher) Notify(event application.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("notification after close dropped", "kind", event.Kind, "reservation_id", event.Reservation.ID)
		return
	}

	select {
	case d.queue <- event:
	default:
		d.logger.Warn("notification queue full; event dropped",
			"kind", event.Kind,
			"reservation_id", event.Reservation.ID,
			"queue_size", d.queueSize,
		)
		if d.recorder != nil {
			d.recorder.RecordNotificationDropped()
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered,
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event application.Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := sink.Deliver(ctx, event)
		cancel()
		if err == nil {
			continue
		}
		d.logger.Error("notification delivery failed",
			"sink", sink.Name(),
			"kind", event.Kind,
			"reservation_id", event.Reservation.ID,
			"error", err,
		)
		if d.recorder != nil {
			d.recorder.RecordNotificationFailure(sink.Name())
		}
	}
}

// Multi fans one event out to several notifiers in order.
type Multi []application.Notifier

// Notify implements application.Notifier.
func (m Multi) Notify(event application.Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(event)
		}
	}
}

var (
	_ application.Notifier = (*Dispatcher)(nil)
	_ application.Notifier = Multi(nil)
)
