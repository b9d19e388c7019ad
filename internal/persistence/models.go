package persistence

import (
	"time"

	"github.com/example/room-reservations/internal/scheduler"
)

// User represents an account that can submit or review reservations.
type User struct {
	Email      string
	Username   string
	Credential string
	Role       scheduler.Role
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == scheduler.RoleAdmin
}

// Room represents a bookable room catalog entry.
type Room struct {
	Name       string
	BaseStatus scheduler.BaseStatus
	ImagePath  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ReservationKey is the natural identity of a reservation.
type ReservationKey struct {
	Username string
	RoomName string
	Window   scheduler.Window
}

// Reservation represents a booking request stored in persistence.
type Reservation struct {
	ID        string
	Username  string
	RoomName  string
	Window    scheduler.Window
	Status    scheduler.ReservationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the reservation's identity key.
func (r Reservation) Key() ReservationKey {
	return ReservationKey{Username: r.Username, RoomName: r.RoomName, Window: r.Window}
}

// Booking projects the reservation onto the detector input.
func (r Reservation) Booking() scheduler.Booking {
	return scheduler.Booking{ID: r.ID, Window: r.Window, Status: r.Status}
}
