package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

func TestRoomRepository_UpsertAndFind(t *testing.T) {
	ctx := context.Background()
	store := setupStoreTest(t)

	image := "/img/a.png"
	room := persistence.Room{Name: "Room A", BaseStatus: scheduler.BaseReserved, ImagePath: &image, CreatedAt: baseTime, UpdatedAt: baseTime}
	require.NoError(t, store.UpsertRoom(ctx, room))

	found, err := store.FindRoom(ctx, "Room A")
	require.NoError(t, err)
	assert.Equal(t, scheduler.BaseReserved, found.BaseStatus)
	require.NotNil(t, found.ImagePath)
	assert.Equal(t, image, *found.ImagePath)
	assert.True(t, found.CreatedAt.Equal(baseTime))

	// Names are case-sensitive.
	_, err = store.FindRoom(ctx, "room a")
	require.ErrorIs(t, err, persistence.ErrNotFound)

	later := baseTime.Add(time.Hour)
	require.NoError(t, store.UpsertRoom(ctx, persistence.Room{Name: "Room A", BaseStatus: scheduler.BaseAvailable, CreatedAt: later, UpdatedAt: later}))

	updated, err := store.FindRoom(ctx, "Room A")
	require.NoError(t, err)
	assert.Equal(t, scheduler.BaseAvailable, updated.BaseStatus)
	assert.Nil(t, updated.ImagePath)
	assert.True(t, updated.CreatedAt.Equal(baseTime), "created_at is kept on update")
	assert.True(t, updated.UpdatedAt.Equal(later))
}

func TestRoomRepository_ListRoomsInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := setupStoreTest(t)

	seedRoom(t, store, "Zeta", baseTime)
	seedRoom(t, store, "Alpha", baseTime.Add(time.Minute))
	seedRoom(t, store, "Mid", baseTime.Add(2*time.Minute))

	rooms, err := store.ListRooms(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(rooms))
	for _, r := range rooms {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Zeta", "Alpha", "Mid"}, names)
}

func TestRoomRepository_DeleteCascadesReservations(t *testing.T) {
	ctx := context.Background()
	store := setupStoreTest(t)
	seedUser(t, store, "alice@example.com", "alice", scheduler.RoleUser)
	seedRoom(t, store, "Room A", baseTime)
	seedRoom(t, store, "Room B", baseTime)

	require.NoError(t, store.InsertReservation(ctx, newReservation("r1", "alice", "Room A", "2025-03-10", "09:00", "10:00", scheduler.StatusApproved)))
	require.NoError(t, store.InsertReservation(ctx, newReservation("r2", "alice", "Room B", "2025-03-10", "09:00", "10:00", scheduler.StatusPending)))

	require.NoError(t, store.DeleteRoom(ctx, "Room A"))

	remaining, err := store.ListReservationsForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "r2", remaining[0].ID)

	require.ErrorIs(t, store.DeleteRoom(ctx, "Room A"), persistence.ErrNotFound)
}

func TestRoomRepository_LegacyBaseStatus(t *testing.T) {
	ctx := context.Background()
	store := setupStoreTest(t)

	_, err := store.DB().ExecContext(ctx,
		"INSERT INTO rooms (name, base_status, created_at, updated_at) VALUES ('Old', 'reserved', ?, ?)",
		formatTimestamp(baseTime), formatTimestamp(baseTime))
	require.NoError(t, err)

	room, err := store.FindRoom(ctx, "Old")
	require.NoError(t, err)
	assert.Equal(t, scheduler.BaseReserved, room.BaseStatus)
}
