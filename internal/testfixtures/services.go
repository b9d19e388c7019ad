package testfixtures

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/persistence/sqlstore"
)

// FastPasswordParams keeps argon2id cheap enough for unit tests.
var FastPasswordParams = application.Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  8,
	KeyLength:   16,
}

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Notifier    *RecordingNotifier
	Location    *time.Location
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults. Services run
// in UTC and log to io.Discard unless overridden.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Notifier:    &RecordingNotifier{},
		Location:    time.UTC,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Notifier == nil {
		factory.Notifier = &RecordingNotifier{}
	}
	if factory.Logger == nil {
		factory.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocation overrides the local zone of the services.
func WithLocation(location *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = location
	}
}

// Options returns the application options shared by every service.
func (f *ServiceFactory) Options() []application.Option {
	return []application.Option{
		application.WithLogger(f.Logger),
		application.WithLocation(f.Location),
		application.WithPasswordParams(FastPasswordParams),
	}
}

// Services groups the application services built over one store.
type Services struct {
	Reservations *application.ReservationService
	Rooms        *application.RoomService
	Users        *application.UserService
	Reports      *application.ReportService
}

// NewServices wires every service to store using the factory defaults.
func (f *ServiceFactory) NewServices(store *sqlstore.Store) Services {
	now := f.Clock.NowFunc()
	opts := f.Options()
	return Services{
		Reservations: application.NewReservationService(store, f.Notifier, f.IDGenerator.NextFunc(), now, opts...),
		Rooms:        application.NewRoomService(store, now, opts...),
		Users:        application.NewUserService(store, now, opts...),
		Reports:      application.NewReportService(store, now, opts...),
	}
}

// RecordingNotifier captures emitted events in order.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []application.Event
}

// Notify implements application.Notifier.
func (n *RecordingNotifier) Notify(event application.Event) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

// Events returns a copy of the captured events.
func (n *RecordingNotifier) Events() []application.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]application.Event, len(n.events))
	copy(out, n.events)
	return out
}

// Kinds returns the kinds of the captured events in order.
func (n *RecordingNotifier) Kinds() []application.EventKind {
	events := n.Events()
	kinds := make([]application.EventKind, 0, len(events))
	for _, event := range events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

// Reset discards the captured events.
func (n *RecordingNotifier) Reset() {
	n.mu.Lock()
	n.events = nil
	n.mu.Unlock()
}
