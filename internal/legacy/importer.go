// Package legacy imports the JSON data files written by the desktop
// reservation tool into the store.
//
// The files are users.json, rooms.json and reservations.json. Each holds a
// JSON array; a missing file is treated as empty. Rows that are malformed or
// already present are skipped and listed in the Report, the rest are written
// in a single transaction.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

const (
	UsersFile        = "users.json"
	RoomsFile        = "rooms.json"
	ReservationsFile = "reservations.json"

	// Rows written before time ranges existed cover the whole day.
	legacyDayStart = "00:00"
	legacyDayEnd   = "23:59"
)

// Store is the subset of the store the importer writes through.
type Store interface {
	persistence.UserRepository
	persistence.RoomRepository
	persistence.ReservationRepository
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type legacyUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type legacyRoom struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type legacyReservation struct {
	Username  string `json:"username"`
	RoomName  string `json:"roomName"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Status    string `json:"status"`
}

// Skip records a row that was not imported.
type Skip struct {
	File   string
	Row    int
	Reason string
}

func (s Skip) String() string {
	return fmt.Sprintf("%s[%d]: %s", s.File, s.Row, s.Reason)
}

// Report summarizes an import.
type Report struct {
	Users        int
	Rooms        int
	Reservations int
	// Demoted counts approved rows imported as pending because an earlier
	// approved row of the same room already overlapped them.
	Demoted int
	Skipped []Skip
}

// Option configures an Importer.
type Option func(*Importer)

// WithPasswordParams sets the argon2id parameters for imported credentials.
func WithPasswordParams(params application.Argon2idParams) Option {
	return func(i *Importer) { i.passwordParams = params }
}

// WithIDGenerator overrides reservation id generation.
func WithIDGenerator(next func() string) Option {
	return func(i *Importer) {
		if next != nil {
			i.nextID = next
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(i *Importer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithLogger sets the importer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// Importer copies legacy rows into a Store.
type Importer struct {
	store          Store
	passwordParams application.Argon2idParams
	nextID         func() string
	now            func() time.Time
	logger         *slog.Logger
}

// NewImporter returns an importer writing to store.
func NewImporter(store Store, opts ...Option) *Importer {
	i := &Importer{
		store:          store,
		passwordParams: application.DefaultArgon2idParams,
		nextID:         uuid.NewString,
		now:            time.Now,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	i.logger = i.logger.With("component", "legacy_import")
	return i
}

// Import reads the legacy files from dir and writes them to the store.
// Storage failures roll back the whole import.
func (i *Importer) Import(ctx context.Context, dir fs.FS) (Report, error) {
	var (
		users        []legacyUser
		rooms        []legacyRoom
		reservations []legacyReservation
	)
	if err := readArray(dir, UsersFile, &users); err != nil {
		return Report{}, err
	}
	if err := readArray(dir, RoomsFile, &rooms); err != nil {
		return Report{}, err
	}
	if err := readArray(dir, ReservationsFile, &reservations); err != nil {
		return Report{}, err
	}

	var report Report
	err := i.store.WithTransaction(ctx, func(ctx context.Context) error {
		report = Report{}
		for n, row := range users {
			if err := i.importUser(ctx, &report, n, row); err != nil {
				return err
			}
		}
		for n, row := range rooms {
			if err := i.importRoom(ctx, &report, n, row); err != nil {
				return err
			}
		}
		for n, row := range reservations {
			if err := i.importReservation(ctx, &report, n, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("legacy import: %w", err)
	}

	for _, skip := range report.Skipped {
		i.logger.WarnContext(ctx, "legacy row skipped", "file", skip.File, "row", skip.Row, "reason", skip.Reason)
	}
	i.logger.InfoContext(ctx, "legacy import finished",
		"users", report.Users,
		"rooms", report.Rooms,
		"reservations", report.Reservations,
		"demoted", report.Demoted,
		"skipped", len(report.Skipped),
	)
	return report, nil
}

func (r *Report) skip(file string, row int, format string, args ...any) {
	r.Skipped = append(r.Skipped, Skip{File: file, Row: row, Reason: fmt.Sprintf(format, args...)})
}

func (i *Importer) importUser(ctx context.Context, report *Report, n int, row legacyUser) error {
	email := strings.ToLower(strings.TrimSpace(row.Email))
	username := strings.TrimSpace(row.Username)
	if email == "" || username == "" || row.Password == "" {
		report.skip(UsersFile, n, "email, username and password are required")
		return nil
	}

	role := scheduler.RoleUser
	if strings.TrimSpace(row.Role) != "" {
		parsed, err := scheduler.ParseRole(row.Role)
		if err != nil {
			report.skip(UsersFile, n, "unknown role %q", row.Role)
			return nil
		}
		role = parsed
	}

	if exists, err := found(i.store.FindUserByEmail(ctx, email)); err != nil || exists {
		if exists {
			report.skip(UsersFile, n, "email %s already exists", email)
		}
		return err
	}
	if exists, err := found(i.store.FindUserByUsername(ctx, username)); err != nil || exists {
		if exists {
			report.skip(UsersFile, n, "username %s already exists", username)
		}
		return err
	}

	credential, err := application.CreatePasswordHash(row.Password, i.passwordParams)
	if err != nil {
		return fmt.Errorf("hash password for %s: %w", email, err)
	}

	now := i.now()
	if err := i.store.UpsertUser(ctx, persistence.User{
		Email:      email,
		Username:   username,
		Credential: credential,
		Role:       role,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return err
	}
	report.Users++
	return nil
}

func (i *Importer) importRoom(ctx context.Context, report *Report, n int, row legacyRoom) error {
	name := strings.TrimSpace(row.Name)
	if name == "" {
		report.skip(RoomsFile, n, "room name is required")
		return nil
	}
	base, err := scheduler.ParseBaseStatus(row.Status)
	if err != nil {
		report.skip(RoomsFile, n, "unknown room status %q", row.Status)
		return nil
	}

	if exists, err := found(i.store.FindRoom(ctx, name)); err != nil || exists {
		if exists {
			report.skip(RoomsFile, n, "room %s already exists", name)
		}
		return err
	}

	now := i.now()
	if err := i.store.UpsertRoom(ctx, persistence.Room{
		Name:       name,
		BaseStatus: base,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return err
	}
	report.Rooms++
	return nil
}

func (i *Importer) importReservation(ctx context.Context, report *Report, n int, row legacyReservation) error {
	start, end := strings.TrimSpace(row.StartTime), strings.TrimSpace(row.EndTime)
	if start == "" && end == "" {
		start, end = legacyDayStart, legacyDayEnd
	}
	window, err := scheduler.ParseWindow(row.Date, start, end)
	if err != nil {
		report.skip(ReservationsFile, n, "invalid window: %v", err)
		return nil
	}
	status, err := scheduler.NormalizeStatus(row.Status)
	if err != nil {
		report.skip(ReservationsFile, n, "unknown status %q", row.Status)
		return nil
	}

	username, roomName := strings.TrimSpace(row.Username), strings.TrimSpace(row.RoomName)
	if exists, err := found(i.store.FindUserByUsername(ctx, username)); err != nil || !exists {
		if err == nil {
			report.skip(ReservationsFile, n, "unknown user %q", username)
		}
		return err
	}
	if exists, err := found(i.store.FindRoom(ctx, roomName)); err != nil || !exists {
		if err == nil {
			report.skip(ReservationsFile, n, "unknown room %q", roomName)
		}
		return err
	}

	key := persistence.ReservationKey{Username: username, RoomName: roomName, Window: window}
	if exists, err := found(i.store.FindReservation(ctx, key)); err != nil || exists {
		if exists {
			report.skip(ReservationsFile, n, "duplicate reservation %s", window)
		}
		return err
	}

	if status == scheduler.StatusApproved {
		existing, err := i.store.ListReservationsForRoomOnDate(ctx, roomName, window.Date)
		if err != nil {
			return err
		}
		bookings := make([]scheduler.Booking, 0, len(existing))
		for _, r := range existing {
			bookings = append(bookings, r.Booking())
		}
		if scheduler.HasConflict(bookings, window) {
			status = scheduler.StatusPending
			report.Demoted++
		}
	}

	now := i.now()
	if err := i.store.InsertReservation(ctx, persistence.Reservation{
		ID:        i.nextID(),
		Username:  username,
		RoomName:  roomName,
		Window:    window,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return err
	}
	report.Reservations++
	return nil
}

// found folds ErrNotFound into a false result.
func found[T any](_ T, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, persistence.ErrNotFound):
		return false, nil
	}
	return false, err
}

func readArray(dir fs.FS, name string, out any) error {
	raw, err := fs.ReadFile(dir, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("legacy import: read %s: %w", name, err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("legacy import: parse %s: %w", name, err)
	}
	return nil
}
