package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

type roomRepoStub struct {
	rooms map[string]Room
	order []string

	upsertErr error
	deleteErr error
	listErr   error

	upserts int
	deleted string
}

func newRoomRepoStub(rooms ...Room) *roomRepoStub {
	stub := &roomRepoStub{rooms: make(map[string]Room)}
	for _, room := range rooms {
		stub.rooms[room.Name] = room
		stub.order = append(stub.order, room.Name)
	}
	return stub
}

func (r *roomRepoStub) UpsertRoom(ctx context.Context, room Room) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	if _, ok := r.rooms[room.Name]; !ok {
		r.order = append(r.order, room.Name)
	}
	r.rooms[room.Name] = room
	r.upserts++
	return nil
}

func (r *roomRepoStub) DeleteRoom(ctx context.Context, name string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.rooms[name]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.rooms, name)
	r.deleted = name
	return nil
}

func (r *roomRepoStub) FindRoom(ctx context.Context, name string) (Room, error) {
	room, ok := r.rooms[name]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (r *roomRepoStub) ListRooms(ctx context.Context) ([]Room, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]Room, 0, len(r.order))
	for _, name := range r.order {
		if room, ok := r.rooms[name]; ok {
			out = append(out, room)
		}
	}
	return out, nil
}

func (r *roomRepoStub) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var (
	testAdmin = Principal{Email: "admin@example.com", Username: "admin", Role: scheduler.RoleAdmin}
	testUser  = Principal{Email: "alice@example.com", Username: "alice", Role: scheduler.RoleUser}
)

func fixedNow() time.Time {
	return time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
}

func TestRoomService_CreateRoom(t *testing.T) {
	t.Run("requires administrator privileges", func(t *testing.T) {
		repo := newRoomRepoStub()
		svc := NewRoomService(repo, fixedNow)

		_, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: testUser,
			Input:     RoomInput{Name: "Room A", BaseStatus: "Available"},
		})
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
		if repo.upserts != 0 {
			t.Fatalf("expected no writes, got %d", repo.upserts)
		}
	})

	t.Run("validates name and base status", func(t *testing.T) {
		svc := NewRoomService(newRoomRepoStub(), fixedNow)

		_, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: testAdmin,
			Input:     RoomInput{Name: "  ", BaseStatus: "closed"},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["name"]; !ok {
			t.Fatalf("expected name error, got %v", vErr.FieldErrors)
		}
		if _, ok := vErr.FieldErrors["baseStatus"]; !ok {
			t.Fatalf("expected baseStatus error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("normalizes input and stamps timestamps", func(t *testing.T) {
		repo := newRoomRepoStub()
		svc := NewRoomService(repo, fixedNow)
		image := " rooms/a.png "

		room, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: testAdmin,
			Input:     RoomInput{Name: " Room A ", BaseStatus: "reserved", ImagePath: &image},
		})
		if err != nil {
			t.Fatalf("CreateRoom returned error: %v", err)
		}
		if room.Name != "Room A" || room.BaseStatus != scheduler.BaseReserved {
			t.Fatalf("unexpected room %+v", room)
		}
		if room.ImagePath == nil || *room.ImagePath != "rooms/a.png" {
			t.Fatalf("expected trimmed image path, got %v", room.ImagePath)
		}
		if !room.CreatedAt.Equal(fixedNow()) {
			t.Fatalf("expected CreatedAt %v, got %v", fixedNow(), room.CreatedAt)
		}
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		repo := newRoomRepoStub(Room{Name: "Room A", BaseStatus: scheduler.BaseAvailable})
		svc := NewRoomService(repo, fixedNow)

		_, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: testAdmin,
			Input:     RoomInput{Name: "Room A", BaseStatus: "Available"},
		})
		if !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("surfaces storage failures untouched", func(t *testing.T) {
		repo := newRoomRepoStub()
		repo.upsertErr = persistence.NewStorageError("upsert room", errors.New("disk"))
		svc := NewRoomService(repo, fixedNow)

		_, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: testAdmin,
			Input:     RoomInput{Name: "Room A", BaseStatus: "Available"},
		})
		if !errors.Is(err, persistence.ErrStorage) {
			t.Fatalf("expected storage error, got %v", err)
		}
	})
}

func TestRoomService_UpdateRoom(t *testing.T) {
	created := fixedNow().Add(-time.Hour)
	repo := newRoomRepoStub(Room{Name: "Room A", BaseStatus: scheduler.BaseAvailable, CreatedAt: created, UpdatedAt: created})
	svc := NewRoomService(repo, fixedNow)

	room, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{
		Principal: testAdmin,
		Name:      "Room A",
		Input:     RoomInput{BaseStatus: "Pending"},
	})
	if err != nil {
		t.Fatalf("UpdateRoom returned error: %v", err)
	}
	if room.BaseStatus != scheduler.BasePending || !room.CreatedAt.Equal(created) || !room.UpdatedAt.Equal(fixedNow()) {
		t.Fatalf("unexpected updated room %+v", room)
	}

	if _, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{
		Principal: testAdmin,
		Name:      "Missing",
		Input:     RoomInput{BaseStatus: "Available"},
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{
		Principal: testUser,
		Name:      "Room A",
		Input:     RoomInput{BaseStatus: "Available"},
	}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestRoomService_DeleteRoom(t *testing.T) {
	repo := newRoomRepoStub(Room{Name: "Room A"})
	svc := NewRoomService(repo, fixedNow)

	if err := svc.DeleteRoom(context.Background(), testUser, "Room A"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if err := svc.DeleteRoom(context.Background(), testAdmin, "Room A"); err != nil {
		t.Fatalf("DeleteRoom returned error: %v", err)
	}
	if repo.deleted != "Room A" {
		t.Fatalf("expected Room A to be deleted, got %q", repo.deleted)
	}
	if err := svc.DeleteRoom(context.Background(), testAdmin, "Room A"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRoomService_Reads(t *testing.T) {
	repo := newRoomRepoStub(Room{Name: "B"}, Room{Name: "A"})
	svc := NewRoomService(repo, fixedNow)

	rooms, err := svc.ListRooms(context.Background())
	if err != nil {
		t.Fatalf("ListRooms returned error: %v", err)
	}
	if len(rooms) != 2 || rooms[0].Name != "B" || rooms[1].Name != "A" {
		t.Fatalf("expected insertion order, got %+v", rooms)
	}

	if _, err := svc.GetRoom(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var nilSvc *RoomService
	if _, err := nilSvc.ListRooms(context.Background()); err == nil {
		t.Fatalf("expected error from nil service")
	}
}
