package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

var roomColumns = []string{"name", "base_status", "image_path", "created_at", "updated_at"}

// RoomRepository implements persistence.RoomRepository.
type RoomRepository struct {
	pool *ConnectionPool
}

// UpsertRoom inserts the room or updates its base status and image path.
// CreatedAt is kept from the first insert.
func (r *RoomRepository) UpsertRoom(ctx context.Context, room persistence.Room) error {
	if strings.TrimSpace(room.Name) == "" {
		return fmt.Errorf("upsert room: %w: empty name", persistence.ErrConstraint)
	}
	if room.BaseStatus == "" {
		room.BaseStatus = scheduler.BaseAvailable
	}

	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = now
	}

	var imagePath sql.NullString
	if room.ImagePath != nil {
		imagePath = sql.NullString{String: *room.ImagePath, Valid: true}
	}

	stmt := r.pool.builder.
		Insert("rooms").
		Columns(roomColumns...).
		Values(room.Name, string(room.BaseStatus), imagePath, formatTimestamp(room.CreatedAt), formatTimestamp(room.UpdatedAt)).
		Suffix("ON CONFLICT (name) DO UPDATE SET base_status = excluded.base_status, image_path = excluded.image_path, updated_at = excluded.updated_at")

	_, err := r.pool.exec(ctx, "upsert room", stmt)
	return err
}

// DeleteRoom removes the room and, through the foreign key, its reservations.
func (r *RoomRepository) DeleteRoom(ctx context.Context, name string) error {
	result, err := r.pool.exec(ctx, "delete room", r.pool.builder.Delete("rooms").Where(squirrel.Eq{"name": name}))
	if err != nil {
		return err
	}
	return expectAffected("delete room", result)
}

// FindRoom returns the room with the given name.
func (r *RoomRepository) FindRoom(ctx context.Context, name string) (persistence.Room, error) {
	rooms, err := r.selectRooms(ctx, "find room", r.pool.builder.
		Select(roomColumns...).
		From("rooms").
		Where(squirrel.Eq{"name": name}))
	if err != nil {
		return persistence.Room{}, err
	}
	if len(rooms) == 0 {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return rooms[0], nil
}

// ListRooms returns every room in insertion order.
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	return r.selectRooms(ctx, "list rooms", r.pool.builder.
		Select(roomColumns...).
		From("rooms").
		OrderBy("created_at ASC", "name ASC"))
}

func (r *RoomRepository) selectRooms(ctx context.Context, op string, stmt squirrel.SelectBuilder) ([]persistence.Room, error) {
	rows, err := r.pool.query(ctx, op, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]persistence.Room, 0)
	for rows.Next() {
		var (
			room                 persistence.Room
			baseStatus           string
			imagePath            sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&room.Name, &baseStatus, &imagePath, &createdAt, &updatedAt); err != nil {
			return nil, persistence.NewStorageError(op, err)
		}

		// Unknown labels from older data fall back to Available.
		if room.BaseStatus, err = scheduler.ParseBaseStatus(baseStatus); err != nil {
			room.BaseStatus = scheduler.BaseAvailable
		}
		if imagePath.Valid {
			path := imagePath.String
			room.ImagePath = &path
		}
		if room.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, persistence.NewStorageError(op, err)
		}
		if room.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
			return nil, persistence.NewStorageError(op, err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return rooms, nil
}
