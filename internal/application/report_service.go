package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/room-reservations/internal/scheduler"
)

// ReportStore captures the read operations needed to build summaries.
type ReportStore interface {
	ListRooms(ctx context.Context) ([]Room, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListAllReservations(ctx context.Context) ([]Reservation, error)
}

// ReportService aggregates catalog and reservation counts for administrators.
type ReportService struct {
	store    ReportStore
	now      func() time.Time
	recorder Recorder
	logger   *slog.Logger
}

// NewReportService constructs a report service.
func NewReportService(store ReportStore, now func() time.Time, opts ...Option) *ReportService {
	o := newOptions(opts)
	if now == nil {
		now = time.Now
	}
	return &ReportService{store: store, now: now, recorder: o.recorder, logger: o.logger}
}

// Summary returns the current totals. Every status key is present even when
// its count is zero.
func (s *ReportService) Summary(ctx context.Context, principal Principal) (summary Summary, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("report service not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "ReportService", "Summary", "principal", principal.Username)
	defer func() {
		logOutcome(ctx, logger, s.recorder, "summary", err, "build summary", "reservations", summary.Reservations)
	}()

	if !principal.IsAdmin() {
		err = fmt.Errorf("%w: only administrators can view reports", ErrPermissionDenied)
		return
	}

	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		err = mapRepoError(err, "rooms")
		return
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		err = mapRepoError(err, "users")
		return
	}
	reservations, err := s.store.ListAllReservations(ctx)
	if err != nil {
		err = mapRepoError(err, "reservations")
		return
	}

	summary = Summary{
		Rooms:        len(rooms),
		Users:        len(users),
		Reservations: len(reservations),
		ByStatus: map[scheduler.ReservationStatus]int{
			scheduler.StatusPending:  0,
			scheduler.StatusApproved: 0,
			scheduler.StatusRejected: 0,
		},
		ReservationsByRoom: make(map[string]int, len(rooms)),
		GeneratedAt:        s.now(),
	}
	for _, user := range users {
		if user.IsAdmin() {
			summary.Admins++
		}
	}
	for _, room := range rooms {
		summary.ReservationsByRoom[room.Name] = 0
	}
	for _, reservation := range reservations {
		summary.ByStatus[reservation.Status]++
		summary.ReservationsByRoom[reservation.RoomName]++
	}
	return
}
