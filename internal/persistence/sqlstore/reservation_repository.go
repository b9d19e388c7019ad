package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

var reservationColumns = []string{
	"id", "username", "room_name", "date", "start_time", "end_time", "status", "created_at", "updated_at",
}

// ReservationRepository implements persistence.ReservationRepository.
type ReservationRepository struct {
	pool *ConnectionPool
}

// InsertReservation stores a new reservation. A second reservation with the
// same identity key fails with ErrDuplicate; a missing user or room fails
// with ErrForeignKey.
func (r *ReservationRepository) InsertReservation(ctx context.Context, reservation persistence.Reservation) error {
	if strings.TrimSpace(reservation.ID) == "" {
		return fmt.Errorf("insert reservation: %w: empty id", persistence.ErrConstraint)
	}
	if err := reservation.Window.Validate(); err != nil {
		return fmt.Errorf("insert reservation: %w: %v", persistence.ErrConstraint, err)
	}
	if reservation.Status == "" {
		reservation.Status = scheduler.StatusPending
	}

	now := time.Now().UTC()
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = now
	}
	if reservation.UpdatedAt.IsZero() {
		reservation.UpdatedAt = now
	}

	stmt := r.pool.builder.
		Insert("reservations").
		Columns(reservationColumns...).
		Values(
			reservation.ID,
			reservation.Username,
			reservation.RoomName,
			reservation.Window.Date.String(),
			reservation.Window.Start.String(),
			reservation.Window.End.String(),
			string(reservation.Status),
			formatTimestamp(reservation.CreatedAt),
			formatTimestamp(reservation.UpdatedAt),
		)
	_, err := r.pool.exec(ctx, "insert reservation", stmt)
	return err
}

// FindReservation returns the reservation with the given identity key.
func (r *ReservationRepository) FindReservation(ctx context.Context, key persistence.ReservationKey) (persistence.Reservation, error) {
	return r.findOne(ctx, "find reservation", keyPredicate(key))
}

// FindReservationByID returns the reservation with the given id.
func (r *ReservationRepository) FindReservationByID(ctx context.Context, id string) (persistence.Reservation, error) {
	return r.findOne(ctx, "find reservation by id", squirrel.Eq{"id": id})
}

// ListReservationsForRoom returns the room's reservations ordered by window.
func (r *ReservationRepository) ListReservationsForRoom(ctx context.Context, roomName string) ([]persistence.Reservation, error) {
	return r.list(ctx, "list reservations for room", squirrel.Eq{"room_name": roomName})
}

// ListReservationsForRoomOnDate returns the room's reservations on date.
func (r *ReservationRepository) ListReservationsForRoomOnDate(ctx context.Context, roomName string, date scheduler.Date) ([]persistence.Reservation, error) {
	return r.list(ctx, "list reservations for room on date", squirrel.Eq{"room_name": roomName, "date": date.String()})
}

// ListReservationsForUser returns the reservations whose username matches.
func (r *ReservationRepository) ListReservationsForUser(ctx context.Context, username string) ([]persistence.Reservation, error) {
	return r.list(ctx, "list reservations for user", squirrel.Eq{"username": username})
}

// ListAllReservations returns every reservation.
func (r *ReservationRepository) ListAllReservations(ctx context.Context) ([]persistence.Reservation, error) {
	return r.list(ctx, "list reservations", nil)
}

// UpdateReservationStatus sets the status of the reservation with key.
func (r *ReservationRepository) UpdateReservationStatus(ctx context.Context, key persistence.ReservationKey, status scheduler.ReservationStatus) error {
	result, err := r.pool.exec(ctx, "update reservation status", r.statusUpdate(key, status, time.Now()))
	if err != nil {
		return err
	}
	return expectAffected("update reservation status", result)
}

// DeleteReservation removes the reservation with key.
func (r *ReservationRepository) DeleteReservation(ctx context.Context, key persistence.ReservationKey) error {
	result, err := r.pool.exec(ctx, "delete reservation", r.pool.builder.Delete("reservations").Where(keyPredicate(key)))
	if err != nil {
		return err
	}
	return expectAffected("delete reservation", result)
}

func (r *ReservationRepository) statusUpdate(key persistence.ReservationKey, status scheduler.ReservationStatus, at time.Time) squirrel.UpdateBuilder {
	return r.pool.builder.
		Update("reservations").
		Set("status", string(status)).
		Set("updated_at", formatTimestamp(at)).
		Where(keyPredicate(key))
}

// keyPredicate matches stored HH:MM times. Migration 002 strips seconds
// from rows written before that was enforced.
func keyPredicate(key persistence.ReservationKey) squirrel.Eq {
	return squirrel.Eq{
		"username":   key.Username,
		"room_name":  key.RoomName,
		"date":       key.Window.Date.String(),
		"start_time": key.Window.Start.String(),
		"end_time":   key.Window.End.String(),
	}
}

func (r *ReservationRepository) findOne(ctx context.Context, op string, where squirrel.Sqlizer) (persistence.Reservation, error) {
	reservations, err := r.list(ctx, op, where)
	if err != nil {
		return persistence.Reservation{}, err
	}
	if len(reservations) == 0 {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return reservations[0], nil
}

func (r *ReservationRepository) list(ctx context.Context, op string, where squirrel.Sqlizer) ([]persistence.Reservation, error) {
	stmt := r.pool.builder.
		Select(reservationColumns...).
		From("reservations").
		OrderBy("date ASC", "start_time ASC", "room_name ASC", "created_at ASC")
	if where != nil {
		stmt = stmt.Where(where)
	}

	rows, err := r.pool.query(ctx, op, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations := make([]persistence.Reservation, 0)
	for rows.Next() {
		var (
			res                  persistence.Reservation
			date, start, end     string
			status               string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&res.ID, &res.Username, &res.RoomName, &date, &start, &end, &status, &createdAt, &updatedAt); err != nil {
			return nil, persistence.NewStorageError(op, err)
		}

		if res.Window, err = scheduler.ParseWindow(date, start, end); err != nil {
			return nil, persistence.NewStorageError(op, fmt.Errorf("reservation %s: %w", res.ID, err))
		}
		if res.Status, err = scheduler.NormalizeStatus(status); err != nil {
			return nil, persistence.NewStorageError(op, fmt.Errorf("reservation %s: %w", res.ID, err))
		}
		if res.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, persistence.NewStorageError(op, err)
		}
		if res.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
			return nil, persistence.NewStorageError(op, err)
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return reservations, nil
}
