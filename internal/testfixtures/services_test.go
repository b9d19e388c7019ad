package testfixtures

import (
	"context"
	"testing"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/scheduler"
)

func TestServiceFactoryNewServices(t *testing.T) {
	ctx := context.Background()
	harness := NewSQLiteHarness(t)
	factory := NewServiceFactory()
	services := factory.NewServices(harness.Store)

	if err := harness.Store.UpsertUser(ctx, NewUserFixture(WithUsername("alice")).Persistence()); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	if err := harness.Store.UpsertRoom(ctx, NewRoomFixture(WithRoomName("Room A")).Persistence()); err != nil {
		t.Fatalf("UpsertRoom failed: %v", err)
	}

	principal := application.Principal{Username: "alice", Role: scheduler.RoleUser}
	result, err := services.Reservations.Submit(ctx, application.SubmitReservationParams{
		Principal: principal,
		Input: application.ReservationInput{
			RoomName: "Room A",
			Date:     "2024-03-01",
			Start:    "09:00",
			End:      "10:00",
		},
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if result.Reservation.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", result.Reservation.ID)
	}
	if !result.Reservation.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), result.Reservation.CreatedAt)
	}
	if kinds := factory.Notifier.Kinds(); len(kinds) != 1 || kinds[0] != application.EventSubmitted {
		t.Fatalf("expected a single submitted event, got %v", kinds)
	}
}

func TestFixturesProduceDistinctIdentities(t *testing.T) {
	first := NewUserFixture()
	second := NewUserFixture()
	if first.Email == second.Email || first.Username == second.Username {
		t.Fatalf("expected distinct users, got %+v and %+v", first, second)
	}

	room := NewRoomFixture(WithRoomImage("a.png")).Persistence()
	if room.ImagePath == nil || *room.ImagePath != "a.png" {
		t.Fatalf("expected image path, got %v", room.ImagePath)
	}

	reservation := NewReservationFixture(WithReservationWindow("2024-05-01", "13:00", "14:30")).Persistence()
	if got := reservation.Window.String(); got != MustWindow("2024-05-01", "13:00", "14:30").String() {
		t.Fatalf("unexpected window %s", got)
	}
}
