package application

import (
	"log/slog"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

// Value snapshots returned by the services.
type (
	User           = persistence.User
	Room           = persistence.Room
	Reservation    = persistence.Reservation
	ReservationKey = persistence.ReservationKey
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	Email    string
	Username string
	Role     scheduler.Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == scheduler.RoleAdmin
}

// owns reports whether the principal submitted a reservation for username.
func (p Principal) owns(username string) bool {
	return p.Username != "" && p.Username == username
}

// PrincipalFor returns the principal acting as user.
func PrincipalFor(user User) Principal {
	return Principal{Email: user.Email, Username: user.Username, Role: user.Role}
}

// ReservationInput captures the wire fields of a reservation request.
type ReservationInput struct {
	Username string
	RoomName string
	Date     string
	Start    string
	End      string
}

// SubmitReservationParams wraps the data required to submit a reservation.
type SubmitReservationParams struct {
	Principal Principal
	Input     ReservationInput
}

// SubmitResult is the outcome of a submission. ConflictWarning is set when
// the new pending request overlaps an approved reservation.
type SubmitResult struct {
	Reservation     Reservation
	ConflictWarning bool
}

// ApproveReservationParams wraps the data required to approve a reservation.
// Override approves even when an approved reservation overlaps.
type ApproveReservationParams struct {
	Principal Principal
	Key       ReservationKey
	Override  bool
}

// Availability describes a requested window of a room.
type Availability struct {
	Conflict bool
	Status   scheduler.WindowStatus
}

// RoomWithStatus pairs a catalog entry with its effective status.
type RoomWithStatus struct {
	Room   Room
	Status scheduler.RoomStatus
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name       string
	BaseStatus string
	ImagePath  *string
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room. Input.Name is ignored.
type UpdateRoomParams struct {
	Principal Principal
	Name      string
	Input     RoomInput
}

// UserInput captures caller provided account fields.
type UserInput struct {
	Email    string
	Username string
	Password string
	Role     string
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// Summary aggregates catalog and reservation counts.
type Summary struct {
	Rooms              int
	Users              int
	Admins             int
	Reservations       int
	ByStatus           map[scheduler.ReservationStatus]int
	ReservationsByRoom map[string]int
	GeneratedAt        time.Time
}

// Option configures the services.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	location       *time.Location
	recorder       Recorder
	passwordParams Argon2idParams
}

func newOptions(opts []Option) options {
	o := options{location: time.Local, passwordParams: DefaultArgon2idParams}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.logger = defaultLogger(o.logger)
	if o.location == nil {
		o.location = time.Local
	}
	return o
}

// WithLogger sets the base logger used when the context carries none.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLocation sets the single local zone used for "today" and "now".
func WithLocation(location *time.Location) Option {
	return func(o *options) { o.location = location }
}

// WithRecorder reports transitions and failures to a metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(o *options) { o.recorder = recorder }
}

// WithPasswordParams overrides the argon2id parameters for new credentials.
func WithPasswordParams(params Argon2idParams) Option {
	return func(o *options) { o.passwordParams = params }
}
