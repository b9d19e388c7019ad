package persistence

import (
	"context"

	"github.com/example/room-reservations/internal/scheduler"
)

// RoomRepository stores the room catalog. Deleting a room removes its
// reservations.
type RoomRepository interface {
	UpsertRoom(ctx context.Context, room Room) error
	DeleteRoom(ctx context.Context, name string) error
	FindRoom(ctx context.Context, name string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
}

// UserRepository stores user accounts. Deleting or demoting the final admin
// fails with ErrLastAdmin.
type UserRepository interface {
	UpsertUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, email string) error
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// ReservationRepository stores reservations keyed by ReservationKey.
type ReservationRepository interface {
	InsertReservation(ctx context.Context, reservation Reservation) error
	FindReservation(ctx context.Context, key ReservationKey) (Reservation, error)
	FindReservationByID(ctx context.Context, id string) (Reservation, error)
	ListReservationsForRoom(ctx context.Context, roomName string) ([]Reservation, error)
	ListReservationsForRoomOnDate(ctx context.Context, roomName string, date scheduler.Date) ([]Reservation, error)
	ListReservationsForUser(ctx context.Context, username string) ([]Reservation, error)
	ListAllReservations(ctx context.Context) ([]Reservation, error)
	UpdateReservationStatus(ctx context.Context, key ReservationKey, status scheduler.ReservationStatus) error
	DeleteReservation(ctx context.Context, key ReservationKey) error
}

// RoomLocker serializes writers per room. Repository calls made with the
// callback's context join the same transaction.
type RoomLocker interface {
	WithRoomLock(ctx context.Context, roomName string, fn func(ctx context.Context) error) error
}
