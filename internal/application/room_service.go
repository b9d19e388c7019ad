package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

// RoomStore captures the persistence operations needed by the room service.
type RoomStore interface {
	UpsertRoom(ctx context.Context, room Room) error
	DeleteRoom(ctx context.Context, name string) error
	FindRoom(ctx context.Context, name string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RoomService orchestrates validation, authorization, and persistence for rooms.
type RoomService struct {
	rooms    RoomStore
	now      func() time.Time
	recorder Recorder
	logger   *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomStore, now func() time.Time, opts ...Option) *RoomService {
	o := newOptions(opts)
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, now: now, recorder: o.recorder, logger: o.logger}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and persists a new room for administrators.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("room service not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal", params.Principal.Username,
		"room", params.Input.Name,
	)
	defer func() {
		logOutcome(ctx, logger, s.recorder, "create_room", err, "create room")
	}()

	if !params.Principal.IsAdmin() {
		err = fmt.Errorf("%w: only administrators can manage rooms", ErrPermissionDenied)
		return
	}

	var baseStatus scheduler.BaseStatus
	baseStatus, err = validateRoomInput(params.Input, true)
	if err != nil {
		return
	}

	now := s.now()
	room = Room{
		Name:       strings.TrimSpace(params.Input.Name),
		BaseStatus: baseStatus,
		ImagePath:  normalizeOptionalString(params.Input.ImagePath),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.rooms.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := s.rooms.FindRoom(ctx, room.Name)
		switch {
		case err == nil:
			return persistence.ErrDuplicate
		case !errors.Is(err, persistence.ErrNotFound):
			return err
		}
		return s.rooms.UpsertRoom(ctx, room)
	})
	if err != nil {
		room = Room{}
		err = mapRepoError(err, fmt.Sprintf("room %q", params.Input.Name))
	}
	return
}

// UpdateRoom changes the base status and image of an existing room.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("room service not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		"principal", params.Principal.Username,
		"room", params.Name,
	)
	defer func() {
		logOutcome(ctx, logger, s.recorder, "update_room", err, "update room")
	}()

	if !params.Principal.IsAdmin() {
		err = fmt.Errorf("%w: only administrators can manage rooms", ErrPermissionDenied)
		return
	}

	var baseStatus scheduler.BaseStatus
	baseStatus, err = validateRoomInput(params.Input, false)
	if err != nil {
		return
	}

	err = s.rooms.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.rooms.FindRoom(ctx, params.Name)
		if err != nil {
			return err
		}
		existing.BaseStatus = baseStatus
		existing.ImagePath = normalizeOptionalString(params.Input.ImagePath)
		existing.UpdatedAt = s.now()
		if err := s.rooms.UpsertRoom(ctx, existing); err != nil {
			return err
		}
		room = existing
		return nil
	})
	if err != nil {
		room = Room{}
		err = mapRepoError(err, fmt.Sprintf("room %q", params.Name))
	}
	return
}

// DeleteRoom removes a room and its reservations.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, name string) (err error) {
	if s == nil || s.rooms == nil {
		return fmt.Errorf("room service not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		"principal", principal.Username,
		"room", name,
	)
	defer func() {
		logOutcome(ctx, logger, s.recorder, "delete_room", err, "delete room")
	}()

	if !principal.IsAdmin() {
		return fmt.Errorf("%w: only administrators can manage rooms", ErrPermissionDenied)
	}

	if err = s.rooms.DeleteRoom(ctx, name); err != nil {
		err = mapRepoError(err, fmt.Sprintf("room %q", name))
	}
	return
}

// GetRoom returns a room by name.
func (s *RoomService) GetRoom(ctx context.Context, name string) (Room, error) {
	if s == nil || s.rooms == nil {
		return Room{}, fmt.Errorf("room service not configured")
	}
	room, err := s.rooms.FindRoom(ctx, name)
	if err != nil {
		return Room{}, mapRepoError(err, fmt.Sprintf("room %q", name))
	}
	return room, nil
}

// ListRooms returns the catalog in insertion order.
func (s *RoomService) ListRooms(ctx context.Context) ([]Room, error) {
	if s == nil || s.rooms == nil {
		return nil, fmt.Errorf("room service not configured")
	}
	rooms, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return nil, mapRepoError(err, "rooms")
	}
	return rooms, nil
}

func validateRoomInput(input RoomInput, requireName bool) (scheduler.BaseStatus, error) {
	vErr := &ValidationError{}

	if requireName && strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	baseStatus, err := scheduler.ParseBaseStatus(input.BaseStatus)
	if err != nil {
		vErr.add("baseStatus", "base status must be Available, Reserved, or Pending")
	}

	if vErr.HasErrors() {
		return "", vErr
	}
	return baseStatus, nil
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
