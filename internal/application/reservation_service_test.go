package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
	"github.com/example/room-reservations/internal/testfixtures"
)

type reservationEnv struct {
	ctx      context.Context
	harness  *testfixtures.SQLiteHarness
	factory  *testfixtures.ServiceFactory
	services testfixtures.Services

	admin application.Principal
	alice application.Principal
	bob   application.Principal
	carol application.Principal
}

func newReservationEnv(t *testing.T) *reservationEnv {
	t.Helper()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	factory := testfixtures.NewServiceFactory(
		testfixtures.WithClock(testfixtures.NewClock(time.Date(2030, time.January, 15, 8, 0, 0, 0, time.UTC))),
	)

	env := &reservationEnv{
		ctx:      ctx,
		harness:  harness,
		factory:  factory,
		services: factory.NewServices(harness.Store),
	}

	seed := func(username string, role scheduler.Role) application.Principal {
		user := testfixtures.NewUserFixture(
			testfixtures.WithUsername(username),
			testfixtures.WithUserEmail(username+"@example.com"),
			testfixtures.WithUserRole(role),
		).Persistence()
		require.NoError(t, harness.Store.UpsertUser(ctx, user))
		return application.PrincipalFor(user)
	}
	env.admin = seed("admin", scheduler.RoleAdmin)
	env.alice = seed("alice", scheduler.RoleApprovedUser)
	env.bob = seed("bob", scheduler.RoleUser)
	env.carol = seed("carol", scheduler.RoleUser)

	for _, name := range []string{"R1", "R2"} {
		require.NoError(t, harness.Store.UpsertRoom(ctx, testfixtures.NewRoomFixture(testfixtures.WithRoomName(name)).Persistence()))
	}
	return env
}

func (e *reservationEnv) submit(t *testing.T, who application.Principal, room, date, start, end string) application.SubmitResult {
	t.Helper()
	result, err := e.services.Reservations.Submit(e.ctx, application.SubmitReservationParams{
		Principal: who,
		Input:     application.ReservationInput{RoomName: room, Date: date, Start: start, End: end},
	})
	require.NoError(t, err)
	return result
}

func (e *reservationEnv) approve(t *testing.T, key application.ReservationKey) application.Reservation {
	t.Helper()
	reservation, err := e.services.Reservations.Approve(e.ctx, application.ApproveReservationParams{Principal: e.admin, Key: key})
	require.NoError(t, err)
	return reservation
}

func (e *reservationEnv) stored(t *testing.T, key application.ReservationKey) application.Reservation {
	t.Helper()
	reservation, err := e.harness.Store.FindReservation(e.ctx, key)
	require.NoError(t, err)
	return reservation
}

func TestScenarioHappyPath(t *testing.T) {
	env := newReservationEnv(t)
	svc := env.services.Reservations

	result := env.submit(t, env.alice, "R1", "2030-01-15", "09:00", "10:00")
	assert.Equal(t, scheduler.StatusPending, result.Reservation.Status)
	assert.False(t, result.ConflictWarning)

	approved := env.approve(t, result.Reservation.Key())
	assert.Equal(t, scheduler.StatusApproved, approved.Status)

	conflict, err := svc.HasConflict(env.ctx, "R1", "2030-01-15", "09:30", "09:45")
	require.NoError(t, err)
	assert.True(t, conflict)

	assert.Equal(t,
		[]application.EventKind{application.EventSubmitted, application.EventApproved},
		env.factory.Notifier.Kinds())
	events := env.factory.Notifier.Events()
	assert.Equal(t, "alice@example.com", events[1].User.Email)
	assert.Equal(t, "admin", events[1].Actor.Username)
}

func TestScenarioPendingCoexistsWithApproved(t *testing.T) {
	env := newReservationEnv(t)

	first := env.submit(t, env.alice, "R1", "2030-01-15", "09:00", "10:00")
	env.approve(t, first.Reservation.Key())

	second := env.submit(t, env.bob, "R1", "2030-01-15", "09:30", "10:30")
	assert.Equal(t, scheduler.StatusPending, second.Reservation.Status)
	assert.True(t, second.ConflictWarning)

	_, err := env.services.Reservations.Approve(env.ctx, application.ApproveReservationParams{
		Principal: env.admin,
		Key:       second.Reservation.Key(),
	})
	require.ErrorIs(t, err, application.ErrConflict)
	assert.Equal(t, scheduler.StatusPending, env.stored(t, second.Reservation.Key()).Status)

	assert.Contains(t, env.factory.Notifier.Kinds(), application.EventConflictWarning)

	t.Run("override approves anyway", func(t *testing.T) {
		reservation, err := env.services.Reservations.Approve(env.ctx, application.ApproveReservationParams{
			Principal: env.admin,
			Key:       second.Reservation.Key(),
			Override:  true,
		})
		require.NoError(t, err)
		assert.Equal(t, scheduler.StatusApproved, reservation.Status)
	})
}

func TestScenarioAdjacencyIsNotConflict(t *testing.T) {
	env := newReservationEnv(t)

	first := env.submit(t, env.alice, "R1", "2030-01-15", "09:00", "10:00")
	env.approve(t, first.Reservation.Key())

	second := env.submit(t, env.bob, "R1", "2030-01-15", "10:00", "11:00")
	assert.False(t, second.ConflictWarning)
	assert.Equal(t, scheduler.StatusApproved, env.approve(t, second.Reservation.Key()).Status)
}

func TestScenarioOwnerCancelsApproved(t *testing.T) {
	env := newReservationEnv(t)
	svc := env.services.Reservations

	result := env.submit(t, env.alice, "R1", "2030-01-15", "14:00", "15:00")
	env.approve(t, result.Reservation.Key())

	env.factory.Clock.SetLocal("2030-01-15", "14:30")
	status, err := svc.EffectiveStatusNow(env.ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, scheduler.RoomOccupied, status)

	require.NoError(t, svc.Cancel(env.ctx, env.alice, result.Reservation.Key()))

	_, err = env.harness.Store.FindReservation(env.ctx, result.Reservation.Key())
	require.ErrorIs(t, err, persistence.ErrNotFound)

	status, err = svc.EffectiveStatusNow(env.ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, scheduler.RoomAvailable, status)

	conflict, err := svc.HasConflict(env.ctx, "R1", "2030-01-15", "14:00", "15:00")
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestScenarioNonOwnerCancelIsBlocked(t *testing.T) {
	env := newReservationEnv(t)

	result := env.submit(t, env.alice, "R1", "2030-01-15", "14:00", "15:00")
	err := env.services.Reservations.Cancel(env.ctx, env.carol, result.Reservation.Key())
	require.ErrorIs(t, err, application.ErrPermissionDenied)
	assert.Equal(t, scheduler.StatusPending, env.stored(t, result.Reservation.Key()).Status)

	require.NoError(t, env.services.Reservations.Cancel(env.ctx, env.admin, result.Reservation.Key()))
}

func TestScenarioLastAdminProtection(t *testing.T) {
	env := newReservationEnv(t)

	err := env.services.Users.DeleteUser(env.ctx, env.admin, "admin@example.com")
	require.ErrorIs(t, err, application.ErrLastAdmin)

	_, err = env.harness.Store.FindUserByEmail(env.ctx, "admin@example.com")
	require.NoError(t, err)
}

func TestScenarioStatusTieBreak(t *testing.T) {
	env := newReservationEnv(t)
	svc := env.services.Reservations

	approved := env.submit(t, env.alice, "R2", "2030-01-15", "10:00", "11:00")
	env.approve(t, approved.Reservation.Key())
	env.submit(t, env.bob, "R2", "2030-01-15", "10:30", "11:30")

	tests := []struct {
		at   string
		want scheduler.RoomStatus
	}{
		{at: "10:45", want: scheduler.RoomOccupied},
		{at: "11:15", want: scheduler.RoomPending},
		{at: "11:45", want: scheduler.RoomAvailable},
	}
	for _, tt := range tests {
		env.factory.Clock.SetLocal("2030-01-15", tt.at)
		status, err := svc.EffectiveStatusNow(env.ctx, "R2")
		require.NoError(t, err)
		assert.Equal(t, tt.want, status, "at %s", tt.at)
	}

	rooms, err := svc.ListRoomStatuses(env.ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "R1", rooms[0].Room.Name)
	assert.Equal(t, scheduler.RoomAvailable, rooms[1].Status)
}

func TestSubmitGuards(t *testing.T) {
	env := newReservationEnv(t)
	svc := env.services.Reservations

	tests := []struct {
		name      string
		principal application.Principal
		input     application.ReservationInput
		check     func(t *testing.T, err error)
	}{
		{
			name:      "end before start",
			principal: env.alice,
			input:     application.ReservationInput{RoomName: "R1", Date: "2030-01-15", Start: "10:00", End: "09:00"},
			check: func(t *testing.T, err error) {
				var vErr *application.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Contains(t, vErr.FieldErrors, "end")
			},
		},
		{
			name:      "malformed date",
			principal: env.alice,
			input:     application.ReservationInput{RoomName: "R1", Date: "15/01/2030", Start: "09:00", End: "10:00"},
			check: func(t *testing.T, err error) {
				var vErr *application.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Contains(t, vErr.FieldErrors, "date")
			},
		},
		{
			name:      "legacy full day window",
			principal: env.alice,
			input:     application.ReservationInput{RoomName: "R1", Date: "2030-01-15", Start: "00:00", End: "23:59"},
			check: func(t *testing.T, err error) {
				var vErr *application.ValidationError
				require.ErrorAs(t, err, &vErr)
			},
		},
		{
			name:      "unknown room",
			principal: env.alice,
			input:     application.ReservationInput{RoomName: "R9", Date: "2030-01-15", Start: "09:00", End: "10:00"},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, application.ErrNotFound)
			},
		},
		{
			name:      "unknown user",
			principal: env.admin,
			input:     application.ReservationInput{Username: "ghost", RoomName: "R1", Date: "2030-01-15", Start: "09:00", End: "10:00"},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, application.ErrNotFound)
			},
		},
		{
			name:      "submitting for someone else",
			principal: env.bob,
			input:     application.ReservationInput{Username: "alice", RoomName: "R1", Date: "2030-01-15", Start: "09:00", End: "10:00"},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, application.ErrPermissionDenied)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(env.ctx, application.SubmitReservationParams{Principal: tt.principal, Input: tt.input})
			tt.check(t, err)
		})
	}

	t.Run("duplicate identity key", func(t *testing.T) {
		env.submit(t, env.alice, "R1", "2030-01-16", "09:00", "10:00")
		_, err := svc.Submit(env.ctx, application.SubmitReservationParams{
			Principal: env.alice,
			Input:     application.ReservationInput{RoomName: "R1", Date: "2030-01-16", Start: "09:00", End: "10:00"},
		})
		require.ErrorIs(t, err, application.ErrDuplicate)
	})

	t.Run("admin submits on behalf of a user", func(t *testing.T) {
		result, err := svc.Submit(env.ctx, application.SubmitReservationParams{
			Principal: env.admin,
			Input:     application.ReservationInput{Username: "bob", RoomName: "R2", Date: "2030-01-16", Start: "09:00", End: "10:00"},
		})
		require.NoError(t, err)
		assert.Equal(t, "bob", result.Reservation.Username)
	})
}

func TestTransitionGuards(t *testing.T) {
	env := newReservationEnv(t)
	svc := env.services.Reservations

	pending := env.submit(t, env.alice, "R1", "2030-01-15", "09:00", "10:00").Reservation
	approved := env.submit(t, env.alice, "R1", "2030-01-15", "11:00", "12:00").Reservation
	env.approve(t, approved.Key())

	t.Run("non admins cannot approve or reject", func(t *testing.T) {
		_, err := svc.Approve(env.ctx, application.ApproveReservationParams{Principal: env.alice, Key: pending.Key()})
		require.ErrorIs(t, err, application.ErrPermissionDenied)
		_, err = svc.Reject(env.ctx, env.alice, pending.Key())
		require.ErrorIs(t, err, application.ErrPermissionDenied)
		assert.Equal(t, scheduler.StatusPending, env.stored(t, pending.Key()).Status)
	})

	t.Run("approved cannot be approved or rejected", func(t *testing.T) {
		_, err := svc.Approve(env.ctx, application.ApproveReservationParams{Principal: env.admin, Key: approved.Key()})
		require.ErrorIs(t, err, application.ErrIllegalTransition)
		_, err = svc.Reject(env.ctx, env.admin, approved.Key())
		require.ErrorIs(t, err, application.ErrIllegalTransition)
	})

	t.Run("rejected is final", func(t *testing.T) {
		rejected, err := svc.Reject(env.ctx, env.admin, pending.Key())
		require.NoError(t, err)
		assert.Equal(t, scheduler.StatusRejected, rejected.Status)

		_, err = svc.Reject(env.ctx, env.admin, pending.Key())
		require.ErrorIs(t, err, application.ErrIllegalTransition)
		_, err = svc.Approve(env.ctx, application.ApproveReservationParams{Principal: env.admin, Key: pending.Key()})
		require.ErrorIs(t, err, application.ErrIllegalTransition)
		err = svc.Cancel(env.ctx, env.alice, pending.Key())
		require.ErrorIs(t, err, application.ErrIllegalTransition)
	})

	t.Run("unknown key", func(t *testing.T) {
		missing := pending.Key()
		missing.Window = testfixtures.MustWindow("2030-02-01", "09:00", "10:00")
		_, err := svc.Approve(env.ctx, application.ApproveReservationParams{Principal: env.admin, Key: missing})
		require.ErrorIs(t, err, application.ErrNotFound)
	})
}

func TestSubmissionIsVisibleToOwner(t *testing.T) {
	env := newReservationEnv(t)
	svc := env.services.Reservations

	before, err := svc.ListMyReservations(env.ctx, "alice")
	require.NoError(t, err)

	result := env.submit(t, env.alice, "R1", "2030-01-15", "09:00", "10:00")
	env.submit(t, env.bob, "R1", "2030-01-15", "10:00", "11:00")

	after, err := svc.ListMyReservations(env.ctx, "alice")
	require.NoError(t, err)
	require.Len(t, after, len(before)+1)
	assert.Equal(t, result.Reservation.ID, after[0].ID)
	assert.Equal(t, scheduler.StatusPending, after[0].Status)

	fetched, err := svc.GetReservation(env.ctx, env.alice, result.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Reservation.Key(), fetched.Key())

	_, err = svc.GetReservation(env.ctx, env.bob, result.Reservation.ID)
	require.ErrorIs(t, err, application.ErrPermissionDenied)

	pending, err := svc.ListPendingReservations(env.ctx, env.admin)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = svc.ListAllReservations(env.ctx, env.alice)
	require.ErrorIs(t, err, application.ErrPermissionDenied)

	roomList, err := svc.ListRoomReservations(env.ctx, "R1")
	require.NoError(t, err)
	assert.Len(t, roomList, 2)
}

func TestCheckAvailability(t *testing.T) {
	env := newReservationEnv(t)
	svc := env.services.Reservations

	env.submit(t, env.alice, "R1", "2030-01-15", "09:00", "10:00")

	availability, err := svc.CheckAvailability(env.ctx, "R1", "2030-01-15", "09:30", "10:30")
	require.NoError(t, err)
	assert.False(t, availability.Conflict, "pending reservations never conflict")
	assert.Equal(t, scheduler.WindowPending, availability.Status)

	status, err := svc.StatusForWindow(env.ctx, "R1", "2030-01-15", "10:00", "11:00")
	require.NoError(t, err)
	assert.Equal(t, scheduler.WindowAvailable, status)

	_, err = svc.CheckAvailability(env.ctx, "R9", "2030-01-15", "09:00", "10:00")
	require.ErrorIs(t, err, application.ErrNotFound)

	_, err = svc.CheckAvailability(env.ctx, "R1", "2030-01-15", "10:00", "10:00")
	var vErr *application.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestNoApprovedOverlapAfterManyApprovals(t *testing.T) {
	env := newReservationEnv(t)
	svc := env.services.Reservations

	windows := [][2]string{
		{"08:00", "09:00"}, {"08:30", "09:30"}, {"09:00", "10:00"},
		{"09:45", "11:00"}, {"10:00", "10:30"}, {"11:00", "12:00"},
	}
	for _, w := range windows {
		result := env.submit(t, env.alice, "R1", "2030-01-20", w[0], w[1])
		_, err := svc.Approve(env.ctx, application.ApproveReservationParams{Principal: env.admin, Key: result.Reservation.Key()})
		if err != nil {
			require.ErrorIs(t, err, application.ErrConflict)
		}
	}

	all, err := svc.ListAllReservations(env.ctx, env.admin)
	require.NoError(t, err)
	var approved []application.Reservation
	for _, r := range all {
		if r.Status == scheduler.StatusApproved {
			approved = append(approved, r)
		}
	}
	require.NotEmpty(t, approved)
	for i := range approved {
		for j := i + 1; j < len(approved); j++ {
			assert.False(t, approved[i].Window.Overlaps(approved[j].Window),
				"%s overlaps %s", approved[i].Window, approved[j].Window)
		}
	}
}

func TestConcurrentApprovalsAreSerialized(t *testing.T) {
	env := newReservationEnv(t)
	svc := env.services.Reservations

	first := env.submit(t, env.alice, "R1", "2030-01-15", "09:00", "10:00")
	second := env.submit(t, env.bob, "R1", "2030-01-15", "09:30", "10:30")

	keys := []application.ReservationKey{first.Reservation.Key(), second.Reservation.Key()}
	errs := make([]error, len(keys))

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key application.ReservationKey) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Approve(env.ctx, application.ApproveReservationParams{Principal: env.admin, Key: key})
		}(i, key)
	}
	close(start)
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, application.ErrConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
}

func TestRoleGateLeavesStateUnchanged(t *testing.T) {
	env := newReservationEnv(t)
	svc := env.services.Reservations

	result := env.submit(t, env.bob, "R1", "2030-01-15", "09:00", "10:00")
	for _, who := range []application.Principal{env.alice, env.bob, env.carol} {
		_, err := svc.Approve(env.ctx, application.ApproveReservationParams{Principal: who, Key: result.Reservation.Key()})
		require.ErrorIs(t, err, application.ErrPermissionDenied)
		_, err = svc.Reject(env.ctx, who, result.Reservation.Key())
		require.ErrorIs(t, err, application.ErrPermissionDenied)
	}
	assert.Equal(t, scheduler.StatusPending, env.stored(t, result.Reservation.Key()).Status)
	assert.Equal(t, []application.EventKind{application.EventSubmitted}, env.factory.Notifier.Kinds())
}

func TestReportSummary(t *testing.T) {
	env := newReservationEnv(t)

	first := env.submit(t, env.alice, "R1", "2030-01-15", "09:00", "10:00")
	env.approve(t, first.Reservation.Key())
	env.submit(t, env.bob, "R1", "2030-01-15", "10:00", "11:00")

	summary, err := env.services.Reports.Summary(env.ctx, env.admin)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Rooms)
	assert.Equal(t, 4, summary.Users)
	assert.Equal(t, 1, summary.Admins)
	assert.Equal(t, 2, summary.Reservations)
	assert.Equal(t, 1, summary.ByStatus[scheduler.StatusApproved])
	assert.Equal(t, 1, summary.ByStatus[scheduler.StatusPending])
	assert.Equal(t, 0, summary.ByStatus[scheduler.StatusRejected])
	assert.Equal(t, 2, summary.ReservationsByRoom["R1"])
	assert.Equal(t, 0, summary.ReservationsByRoom["R2"])

	_, err = env.services.Reports.Summary(env.ctx, env.alice)
	require.ErrorIs(t, err, application.ErrPermissionDenied)
}
