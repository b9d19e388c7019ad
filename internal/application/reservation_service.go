package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

// ReservationStore captures the persistence operations needed by the
// reservation service.
type ReservationStore interface {
	persistence.RoomLocker

	FindRoom(ctx context.Context, name string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	FindUserByUsername(ctx context.Context, username string) (User, error)

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

// ReservationService implements the reservation lifecycle, conflict
// detection, and effective room status.
type ReservationService struct {
	store       ReservationStore
	notifier    Notifier
	idGenerator func() string
	now         func() time.Time
	location    *time.Location
	recorder    Recorder
	logger      *slog.Logger
}

// NewReservationService wires dependencies for the reservation service. A nil
// idGenerator yields random UUIDs; a nil now uses time.Now.
func NewReservationService(store ReservationStore, notifier Notifier, idGenerator func() string, now func() time.Time, opts ...Option) *ReservationService {
	o := newOptions(opts)
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		store:       store,
		notifier:    notifier,
		idGenerator: idGenerator,
		now:         now,
		location:    o.location,
		recorder:    o.recorder,
		logger:      o.logger,
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

func (s *ReservationService) localNow() time.Time {
	return s.now().In(s.location)
}

// Submit validates the request and inserts it as pending. The result flags a
// conflict warning when an approved reservation already overlaps the window.
func (s *ReservationService) Submit(ctx context.Context, params SubmitReservationParams) (result SubmitResult, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("reservation service not configured")
		return
	}

	input := normalizeReservationInput(params.Input, params.Principal)
	logger := s.loggerWith(ctx, "Submit",
		"principal", params.Principal.Username,
		"username", input.Username,
		"room", input.RoomName,
	)
	defer func() {
		logOutcome(ctx, logger, s.recorder, "submit", err, "submit reservation",
			"reservation_id", result.Reservation.ID, "conflict_warning", result.ConflictWarning)
	}()

	window, vErr := validateReservationInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if !params.Principal.IsAdmin() && !params.Principal.owns(input.Username) {
		err = fmt.Errorf("%w: reservations can only be submitted for yourself", ErrPermissionDenied)
		return
	}

	var owner User
	owner, err = s.store.FindUserByUsername(ctx, input.Username)
	if err != nil {
		err = mapRepoError(err, fmt.Sprintf("user %q", input.Username))
		return
	}

	now := s.now()
	reservation := Reservation{
		ID:        s.idGenerator(),
		Username:  owner.Username,
		RoomName:  input.RoomName,
		Window:    window,
		Status:    scheduler.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var conflict bool
	err = s.store.WithRoomLock(ctx, input.RoomName, func(ctx context.Context) error {
		existing, err := s.store.ListReservationsForRoomOnDate(ctx, input.RoomName, window.Date)
		if err != nil {
			return err
		}
		conflict = scheduler.HasConflict(bookings(existing), window)
		return s.store.InsertReservation(ctx, reservation)
	})
	if err != nil {
		err = mapLockedError(err, input.RoomName, "reservation")
		return
	}

	result = SubmitResult{Reservation: reservation, ConflictWarning: conflict}
	s.emit(EventSubmitted, owner, reservation, params.Principal, now)
	if conflict {
		s.emit(EventConflictWarning, owner, reservation, params.Principal, now)
	}
	return
}

// Approve moves a pending reservation to approved. Unless params.Override is
// set, an overlapping approved reservation fails the call with ErrConflict.
func (s *ReservationService) Approve(ctx context.Context, params ApproveReservationParams) (reservation Reservation, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("reservation service not configured")
		return
	}

	logger := s.loggerWith(ctx, "Approve",
		"principal", params.Principal.Username,
		"room", params.Key.RoomName,
		"window", params.Key.Window.String(),
		"override", params.Override,
	)
	defer func() {
		logOutcome(ctx, logger, s.recorder, "approve", err, "approve reservation", "reservation_id", reservation.ID)
	}()

	if !params.Principal.IsAdmin() {
		err = fmt.Errorf("%w: only administrators can approve reservations", ErrPermissionDenied)
		return
	}

	now := s.now()
	err = s.store.WithRoomLock(ctx, params.Key.RoomName, func(ctx context.Context) error {
		current, err := s.store.FindReservation(ctx, params.Key)
		if err != nil {
			return err
		}
		if current.Status != scheduler.StatusPending {
			return fmt.Errorf("%w: cannot approve a %s reservation", ErrIllegalTransition, current.Status)
		}

		existing, err := s.store.ListReservationsForRoomOnDate(ctx, current.RoomName, current.Window.Date)
		if err != nil {
			return err
		}
		if conflicts := scheduler.DetectConflicts(bookings(existing), current.Window); len(conflicts) > 0 && !params.Override {
			return fmt.Errorf("%w: overlaps %s", ErrConflict, conflicts[0].Window)
		}

		if err := s.store.UpdateReservationStatus(ctx, params.Key, scheduler.StatusApproved); err != nil {
			return err
		}
		current.Status = scheduler.StatusApproved
		current.UpdatedAt = now
		reservation = current
		return nil
	})
	if err != nil {
		reservation = Reservation{}
		err = mapLockedError(err, params.Key.RoomName, "reservation")
		return
	}

	s.emitFor(ctx, logger, EventApproved, reservation, params.Principal, now)
	return
}

// Reject moves a pending reservation to rejected. Approved reservations must
// be cancelled instead.
func (s *ReservationService) Reject(ctx context.Context, principal Principal, key ReservationKey) (reservation Reservation, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("reservation service not configured")
		return
	}

	logger := s.loggerWith(ctx, "Reject",
		"principal", principal.Username,
		"room", key.RoomName,
		"window", key.Window.String(),
	)
	defer func() {
		logOutcome(ctx, logger, s.recorder, "reject", err, "reject reservation", "reservation_id", reservation.ID)
	}()

	if !principal.IsAdmin() {
		err = fmt.Errorf("%w: only administrators can reject reservations", ErrPermissionDenied)
		return
	}

	now := s.now()
	err = s.store.WithRoomLock(ctx, key.RoomName, func(ctx context.Context) error {
		current, err := s.store.FindReservation(ctx, key)
		if err != nil {
			return err
		}
		switch current.Status {
		case scheduler.StatusApproved:
			return fmt.Errorf("%w: approved reservations must be cancelled, not rejected", ErrIllegalTransition)
		case scheduler.StatusRejected:
			return fmt.Errorf("%w: reservation is already rejected", ErrIllegalTransition)
		}

		if err := s.store.UpdateReservationStatus(ctx, key, scheduler.StatusRejected); err != nil {
			return err
		}
		current.Status = scheduler.StatusRejected
		current.UpdatedAt = now
		reservation = current
		return nil
	})
	if err != nil {
		reservation = Reservation{}
		err = mapLockedError(err, key.RoomName, "reservation")
		return
	}

	s.emitFor(ctx, logger, EventRejected, reservation, principal, now)
	return
}

// Cancel deletes a pending or approved reservation. Only the owner or an
// administrator may cancel.
func (s *ReservationService) Cancel(ctx context.Context, principal Principal, key ReservationKey) (err error) {
	if s == nil || s.store == nil {
		return fmt.Errorf("reservation service not configured")
	}

	var cancelled Reservation
	logger := s.loggerWith(ctx, "Cancel",
		"principal", principal.Username,
		"room", key.RoomName,
		"window", key.Window.String(),
	)
	defer func() {
		logOutcome(ctx, logger, s.recorder, "cancel", err, "cancel reservation", "reservation_id", cancelled.ID)
	}()

	now := s.now()
	err = s.store.WithRoomLock(ctx, key.RoomName, func(ctx context.Context) error {
		current, err := s.store.FindReservation(ctx, key)
		if err != nil {
			return err
		}
		if !principal.IsAdmin() && !principal.owns(current.Username) {
			return fmt.Errorf("%w: only the owner or an administrator can cancel", ErrPermissionDenied)
		}
		if current.Status == scheduler.StatusRejected {
			return fmt.Errorf("%w: rejected reservations are final", ErrIllegalTransition)
		}

		if err := s.store.DeleteReservation(ctx, key); err != nil {
			return err
		}
		cancelled = current
		return nil
	})
	if err != nil {
		err = mapLockedError(err, key.RoomName, "reservation")
		return
	}

	s.emitFor(ctx, logger, EventCancelled, cancelled, principal, now)
	return nil
}

// GetReservation returns a reservation to its owner or an administrator.
func (s *ReservationService) GetReservation(ctx context.Context, principal Principal, id string) (Reservation, error) {
	if s == nil || s.store == nil {
		return Reservation{}, fmt.Errorf("reservation service not configured")
	}

	reservation, err := s.store.FindReservationByID(ctx, id)
	if err != nil {
		return Reservation{}, mapRepoError(err, "reservation "+id)
	}
	if !principal.IsAdmin() && !principal.owns(reservation.Username) {
		return Reservation{}, fmt.Errorf("%w: reservation belongs to another user", ErrPermissionDenied)
	}
	return reservation, nil
}

// ListMyReservations returns the reservations submitted for username.
func (s *ReservationService) ListMyReservations(ctx context.Context, username string) ([]Reservation, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("reservation service not configured")
	}
	reservations, err := s.store.ListReservationsForUser(ctx, username)
	if err != nil {
		return nil, mapRepoError(err, "reservations")
	}
	return reservations, nil
}

// ListPendingReservations returns every pending reservation for review.
func (s *ReservationService) ListPendingReservations(ctx context.Context, principal Principal) ([]Reservation, error) {
	all, err := s.ListAllReservations(ctx, principal)
	if err != nil {
		return nil, err
	}
	pending := make([]Reservation, 0, len(all))
	for _, reservation := range all {
		if reservation.Status == scheduler.StatusPending {
			pending = append(pending, reservation)
		}
	}
	return pending, nil
}

// ListAllReservations returns every reservation for administrators.
func (s *ReservationService) ListAllReservations(ctx context.Context, principal Principal) ([]Reservation, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("reservation service not configured")
	}
	if !principal.IsAdmin() {
		return nil, fmt.Errorf("%w: administrators only", ErrPermissionDenied)
	}
	reservations, err := s.store.ListAllReservations(ctx)
	if err != nil {
		return nil, mapRepoError(err, "reservations")
	}
	return reservations, nil
}

// ListRoomReservations returns every reservation of a room.
func (s *ReservationService) ListRoomReservations(ctx context.Context, roomName string) ([]Reservation, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("reservation service not configured")
	}
	if _, err := s.store.FindRoom(ctx, roomName); err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("room %q", roomName))
	}
	reservations, err := s.store.ListReservationsForRoom(ctx, roomName)
	if err != nil {
		return nil, mapRepoError(err, "reservations")
	}
	return reservations, nil
}

// EffectiveStatusNow derives the live status of a room from the reservations
// containing the current instant.
func (s *ReservationService) EffectiveStatusNow(ctx context.Context, roomName string) (scheduler.RoomStatus, error) {
	if s == nil || s.store == nil {
		return "", fmt.Errorf("reservation service not configured")
	}
	if _, err := s.store.FindRoom(ctx, roomName); err != nil {
		return "", mapRepoError(err, fmt.Sprintf("room %q", roomName))
	}
	return s.statusAt(ctx, roomName, s.localNow())
}

// ListRoomStatuses returns every room with its effective status.
func (s *ReservationService) ListRoomStatuses(ctx context.Context) ([]RoomWithStatus, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("reservation service not configured")
	}
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, mapRepoError(err, "rooms")
	}

	now := s.localNow()
	out := make([]RoomWithStatus, 0, len(rooms))
	for _, room := range rooms {
		status, err := s.statusAt(ctx, room.Name, now)
		if err != nil {
			return nil, err
		}
		out = append(out, RoomWithStatus{Room: room, Status: status})
	}
	return out, nil
}

func (s *ReservationService) statusAt(ctx context.Context, roomName string, now time.Time) (scheduler.RoomStatus, error) {
	today := scheduler.DateOf(now)
	existing, err := s.store.ListReservationsForRoomOnDate(ctx, roomName, today)
	if err != nil {
		return "", mapRepoError(err, "reservations")
	}
	return scheduler.EffectiveStatus(bookings(existing), today, scheduler.TimeOfDayOf(now)), nil
}

// CheckAvailability reports whether a window conflicts with an approved
// reservation and the strongest status among overlapping reservations.
func (s *ReservationService) CheckAvailability(ctx context.Context, roomName, date, start, end string) (Availability, error) {
	if s == nil || s.store == nil {
		return Availability{}, fmt.Errorf("reservation service not configured")
	}

	window, err := scheduler.ParseWindow(date, start, end)
	if err != nil {
		return Availability{}, windowValidationError(err)
	}
	if _, err := s.store.FindRoom(ctx, roomName); err != nil {
		return Availability{}, mapRepoError(err, fmt.Sprintf("room %q", roomName))
	}

	existing, err := s.store.ListReservationsForRoomOnDate(ctx, roomName, window.Date)
	if err != nil {
		return Availability{}, mapRepoError(err, "reservations")
	}
	list := bookings(existing)
	return Availability{
		Conflict: scheduler.HasConflict(list, window),
		Status:   scheduler.StatusForWindow(list, window),
	}, nil
}

// HasConflict reports whether the window overlaps an approved reservation.
// Pending reservations never conflict.
func (s *ReservationService) HasConflict(ctx context.Context, roomName, date, start, end string) (bool, error) {
	availability, err := s.CheckAvailability(ctx, roomName, date, start, end)
	return availability.Conflict, err
}

// StatusForWindow returns Approved, Pending, or Available for the window.
func (s *ReservationService) StatusForWindow(ctx context.Context, roomName, date, start, end string) (scheduler.WindowStatus, error) {
	availability, err := s.CheckAvailability(ctx, roomName, date, start, end)
	return availability.Status, err
}

// emitFor looks up the reservation owner and emits the event. A failed
// lookup is logged; the transition already committed.
func (s *ReservationService) emitFor(ctx context.Context, logger *slog.Logger, kind EventKind, reservation Reservation, actor Principal, at time.Time) {
	owner, err := s.store.FindUserByUsername(ctx, reservation.Username)
	if err != nil {
		logger.WarnContext(ctx, "notification sent without owner details", "error", err)
		owner = User{Username: reservation.Username}
	}
	s.emit(kind, owner, reservation, actor, at)
}

func (s *ReservationService) emit(kind EventKind, owner User, reservation Reservation, actor Principal, at time.Time) {
	if s.recorder != nil {
		s.recorder.RecordTransition(kind)
	}
	s.notifier.Notify(Event{Kind: kind, User: owner, Reservation: reservation, Actor: actor, At: at})
}

// mapLockedError maps errors returned from a room-locked transaction. A
// missing room is reported by the lock itself.
func mapLockedError(err error, roomName, subject string) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("%w: room %q or %s", ErrNotFound, roomName, subject)
	}
	return mapRepoError(err, subject)
}

func bookings(reservations []Reservation) []scheduler.Booking {
	out := make([]scheduler.Booking, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, r.Booking())
	}
	return out
}

func normalizeReservationInput(input ReservationInput, principal Principal) ReservationInput {
	input.Username = strings.TrimSpace(input.Username)
	if input.Username == "" {
		input.Username = principal.Username
	}
	input.RoomName = strings.TrimSpace(input.RoomName)
	return input
}

func validateReservationInput(input ReservationInput) (scheduler.Window, *ValidationError) {
	vErr := &ValidationError{}

	if input.RoomName == "" {
		vErr.add("roomName", "room name is required")
	}
	if input.Username == "" {
		vErr.add("username", "username is required")
	}

	date, err := scheduler.ParseDate(input.Date)
	if err != nil {
		vErr.add("date", "date must use YYYY-MM-DD")
	}
	start, err := scheduler.ParseTimeOfDay(input.Start)
	if err != nil {
		vErr.add("start", "start must use HH:MM")
	}
	end, err := scheduler.ParseTimeOfDay(input.End)
	if err != nil {
		vErr.add("end", "end must use HH:MM")
	}
	if vErr.HasErrors() {
		return scheduler.Window{}, vErr
	}

	window, err := scheduler.NewWindow(date, start, end)
	if err != nil {
		vErr.add("end", "end must be after start")
		return scheduler.Window{}, vErr
	}
	if window.IsLegacyFullDay() {
		vErr.add("end", "00:00-23:59 full-day windows are no longer accepted")
		return scheduler.Window{}, vErr
	}
	return window, vErr
}

func windowValidationError(err error) *ValidationError {
	vErr := &ValidationError{}
	switch {
	case errors.Is(err, scheduler.ErrInvalidDate):
		vErr.add("date", "date must use YYYY-MM-DD")
	case errors.Is(err, scheduler.ErrEmptyWindow):
		vErr.add("end", "end must be after start")
	default:
		vErr.add("time", "times must use HH:MM")
	}
	return vErr
}
