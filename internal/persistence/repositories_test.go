package persistence_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
	"github.com/example/room-reservations/internal/testfixtures"
)

type repositories interface {
	persistence.RoomRepository
	persistence.UserRepository
	persistence.ReservationRepository
	persistence.RoomLocker
}

func newRepositories(t *testing.T) repositories {
	t.Helper()
	return testfixtures.NewSQLiteHarness(t).Store
}

func TestUserRepositoryContract(t *testing.T) {
	t.Parallel()

	t.Run("creates, reads, updates, and deletes users", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		repos := newRepositories(t)

		base := testfixtures.ReferenceTime()
		admin := testfixtures.NewUserFixture(
			testfixtures.WithUsername("root"),
			testfixtures.WithUserEmail("root@example.com"),
			testfixtures.WithUserRole(scheduler.RoleAdmin),
		).Persistence()
		user := testfixtures.NewUserFixture(
			testfixtures.WithUsername("alice"),
			testfixtures.WithUserEmail("Alice@Example.com"),
			testfixtures.WithUserTimestamps(base, base),
		).Persistence()

		for _, u := range []persistence.User{admin, user} {
			if err := repos.UpsertUser(ctx, u); err != nil {
				t.Fatalf("UpsertUser failed: %v", err)
			}
		}

		fetched, err := repos.FindUserByEmail(ctx, "ALICE@EXAMPLE.COM")
		if err != nil {
			t.Fatalf("FindUserByEmail failed: %v", err)
		}
		if fetched.Email != "alice@example.com" || fetched.Username != "alice" || fetched.Role != scheduler.RoleUser {
			t.Fatalf("unexpected user data: %#v", fetched)
		}

		user.Email = "alice@example.com"
		user.Role = scheduler.RoleApprovedUser
		user.UpdatedAt = base.Add(time.Hour)
		if err := repos.UpsertUser(ctx, user); err != nil {
			t.Fatalf("UpsertUser update failed: %v", err)
		}
		fetched, err = repos.FindUserByUsername(ctx, "alice")
		if err != nil {
			t.Fatalf("FindUserByUsername failed: %v", err)
		}
		if fetched.Role != scheduler.RoleApprovedUser || !fetched.CreatedAt.Equal(base) {
			t.Fatalf("unexpected updated user: %#v", fetched)
		}

		users, err := repos.ListUsers(ctx)
		if err != nil {
			t.Fatalf("ListUsers failed: %v", err)
		}
		if len(users) != 2 {
			t.Fatalf("expected two users, got %#v", users)
		}

		if err := repos.DeleteUser(ctx, "alice@example.com"); err != nil {
			t.Fatalf("DeleteUser failed: %v", err)
		}
		if err := repos.DeleteUser(ctx, "alice@example.com"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected persistence.ErrNotFound, got %v", err)
		}
		if err := repos.DeleteUser(ctx, "root@example.com"); !errors.Is(err, persistence.ErrLastAdmin) {
			t.Fatalf("expected persistence.ErrLastAdmin, got %v", err)
		}
	})

	t.Run("enforces unique usernames", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		repos := newRepositories(t)

		primary := testfixtures.NewUserFixture(testfixtures.WithUsername("dup")).Persistence()
		if err := repos.UpsertUser(ctx, primary); err != nil {
			t.Fatalf("UpsertUser failed: %v", err)
		}
		conflicting := testfixtures.NewUserFixture(testfixtures.WithUsername("dup")).Persistence()
		if err := repos.UpsertUser(ctx, conflicting); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected persistence.ErrDuplicate, got %v", err)
		}
	})
}

func TestRoomRepositoryContract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repos := newRepositories(t)

	names := []string{"Zeta", "Alpha", "Mid"}
	for i, name := range names {
		created := testfixtures.ReferenceTime().Add(time.Duration(i) * time.Minute)
		room := testfixtures.NewRoomFixture(
			testfixtures.WithRoomName(name),
			testfixtures.WithRoomTimestamps(created, created),
		).Persistence()
		if err := repos.UpsertRoom(ctx, room); err != nil {
			t.Fatalf("UpsertRoom failed: %v", err)
		}
	}

	rooms, err := repos.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms failed: %v", err)
	}
	got := make([]string, 0, len(rooms))
	for _, room := range rooms {
		got = append(got, room.Name)
	}
	if !slices.Equal(got, names) {
		t.Fatalf("expected insertion order %v, got %v", names, got)
	}

	if _, err := repos.FindRoom(ctx, "alpha"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected case-sensitive names, got %v", err)
	}
	if err := repos.DeleteRoom(ctx, "Mid"); err != nil {
		t.Fatalf("DeleteRoom failed: %v", err)
	}
	if err := repos.DeleteRoom(ctx, "Mid"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected persistence.ErrNotFound, got %v", err)
	}
}

func TestReservationRepositoryContract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repos := newRepositories(t)

	owner := testfixtures.NewUserFixture(testfixtures.WithUsername("alice")).Persistence()
	if err := repos.UpsertUser(ctx, owner); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	room := testfixtures.NewRoomFixture(testfixtures.WithRoomName("Room A")).Persistence()
	if err := repos.UpsertRoom(ctx, room); err != nil {
		t.Fatalf("UpsertRoom failed: %v", err)
	}

	first := testfixtures.NewReservationFixture(
		testfixtures.WithReservationWindow("2024-03-01", "10:00", "11:00"),
	).Persistence()
	second := testfixtures.NewReservationFixture(
		testfixtures.WithReservationWindow("2024-03-01", "09:00", "10:00"),
	).Persistence()

	err := repos.WithRoomLock(ctx, "Room A", func(ctx context.Context) error {
		for _, r := range []persistence.Reservation{first, second} {
			if err := repos.InsertReservation(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithRoomLock insert failed: %v", err)
	}

	date, _ := scheduler.ParseDate("2024-03-01")
	onDate, err := repos.ListReservationsForRoomOnDate(ctx, "Room A", date)
	if err != nil {
		t.Fatalf("ListReservationsForRoomOnDate failed: %v", err)
	}
	if len(onDate) != 2 || onDate[0].ID != second.ID {
		t.Fatalf("expected start-time order, got %#v", onDate)
	}

	if err := repos.UpdateReservationStatus(ctx, first.Key(), scheduler.StatusApproved); err != nil {
		t.Fatalf("UpdateReservationStatus failed: %v", err)
	}
	found, err := repos.FindReservationByID(ctx, first.ID)
	if err != nil || found.Status != scheduler.StatusApproved {
		t.Fatalf("expected approved reservation, got %#v %v", found, err)
	}

	if err := repos.DeleteRoom(ctx, "Room A"); err != nil {
		t.Fatalf("DeleteRoom failed: %v", err)
	}
	remaining, err := repos.ListAllReservations(ctx)
	if err != nil {
		t.Fatalf("ListAllReservations failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected cascade delete, got %#v", remaining)
	}

	if err := repos.WithRoomLock(ctx, "Room A", func(context.Context) error { return nil }); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected lock on missing room to fail with ErrNotFound, got %v", err)
	}
}
