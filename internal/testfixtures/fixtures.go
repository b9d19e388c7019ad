package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

var (
	userCounter        uint64
	roomCounter        uint64
	reservationCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic account record.
type UserFixture struct {
	Email      string
	Username   string
	Credential string
	Role       scheduler.Role
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	username := fmt.Sprintf("user%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		Email:      username + "@example.com",
		Username:   username,
		Credential: fmt.Sprintf("credential-%03d", idx),
		Role:       scheduler.RoleUser,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUsername overrides the generated username.
func WithUsername(username string) UserOption {
	return func(f *UserFixture) {
		f.Username = username
	}
}

// WithUserCredential overrides the stored credential.
func WithUserCredential(credential string) UserOption {
	return func(f *UserFixture) {
		f.Credential = credential
	}
}

// WithUserRole overrides the role.
func WithUserRole(role scheduler.Role) UserOption {
	return func(f *UserFixture) {
		f.Role = role
	}
}

// WithUserTimestamps overrides the created and updated timestamps.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Persistence converts the fixture into a persistence.User.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		Email:      f.Email,
		Username:   f.Username,
		Credential: f.Credential,
		Role:       f.Role,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic room catalog entry.
type RoomFixture struct {
	Name       string
	BaseStatus scheduler.BaseStatus
	ImagePath  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic room fixture with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := RoomFixture{
		Name:       fmt.Sprintf("Room %03d", idx),
		BaseStatus: scheduler.BaseAvailable,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) {
		f.Name = name
	}
}

// WithRoomBaseStatus overrides the cosmetic base status.
func WithRoomBaseStatus(status scheduler.BaseStatus) RoomOption {
	return func(f *RoomFixture) {
		f.BaseStatus = status
	}
}

// WithRoomImage sets the image path.
func WithRoomImage(path string) RoomOption {
	return func(f *RoomFixture) {
		f.ImagePath = &path
	}
}

// WithRoomTimestamps overrides the created and updated timestamps.
func WithRoomTimestamps(created, updated time.Time) RoomOption {
	return func(f *RoomFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Persistence converts the fixture into a persistence.Room.
func (f RoomFixture) Persistence() persistence.Room {
	var image *string
	if f.ImagePath != nil {
		value := *f.ImagePath
		image = &value
	}
	return persistence.Room{
		Name:       f.Name,
		BaseStatus: f.BaseStatus,
		ImagePath:  image,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// -------------------------- Reservation fixtures -------------------------

// ReservationFixture represents a deterministic reservation record.
type ReservationFixture struct {
	ID        string
	Username  string
	RoomName  string
	Window    scheduler.Window
	Status    scheduler.ReservationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a pending 09:00-10:00 reservation on
// 2024-03-01 with optional overrides.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := ReservationFixture{
		ID:        fmt.Sprintf("reservation-%03d", idx),
		Username:  "alice",
		RoomName:  "Room A",
		Window:    MustWindow("2024-03-01", "09:00", "10:00"),
		Status:    scheduler.StatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated identifier.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.ID = id
	}
}

// WithReservationOwner sets the username that submitted the reservation.
func WithReservationOwner(username string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Username = username
	}
}

// WithReservationRoom sets the reserved room.
func WithReservationRoom(name string) ReservationOption {
	return func(f *ReservationFixture) {
		f.RoomName = name
	}
}

// WithReservationWindow sets the reserved window from its wire form.
func WithReservationWindow(date, start, end string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Window = MustWindow(date, start, end)
	}
}

// WithReservationStatus overrides the lifecycle status.
func WithReservationStatus(status scheduler.ReservationStatus) ReservationOption {
	return func(f *ReservationFixture) {
		f.Status = status
	}
}

// Persistence converts the fixture into a persistence.Reservation.
func (f ReservationFixture) Persistence() persistence.Reservation {
	return persistence.Reservation{
		ID:        f.ID,
		Username:  f.Username,
		RoomName:  f.RoomName,
		Window:    f.Window,
		Status:    f.Status,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// MustWindow parses a window or panics. Intended for literals in tests.
func MustWindow(date, start, end string) scheduler.Window {
	window, err := scheduler.ParseWindow(date, start, end)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: invalid window %s %s-%s: %v", date, start, end, err))
	}
	return window
}
