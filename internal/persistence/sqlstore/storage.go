// Package sqlstore implements the persistence repositories on SQLite
// (modernc.org/sqlite) and PostgreSQL (lib/pq).
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/persistence/sqlstore/migration"
)

//go:embed migrations
var migrationFiles embed.FS

// Store bundles the repositories over one connection pool.
type Store struct {
	*RoomRepository
	*UserRepository
	*ReservationRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var (
	_ persistence.RoomRepository        = (*Store)(nil)
	_ persistence.UserRepository        = (*Store)(nil)
	_ persistence.ReservationRepository = (*Store)(nil)
	_ persistence.RoomLocker            = (*Store)(nil)
)

// Open connects to the configured database. Call Migrate before use.
func Open(cfg migration.ConnectionConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := migration.Open(cfg)
	if err != nil {
		return nil, err
	}
	return New(db, cfg.Driver, logger), nil
}

// New wraps an existing pool.
func New(db *sql.DB, driver migration.Driver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	pool := newConnectionPool(db, driver)
	return &Store{
		RoomRepository:        &RoomRepository{pool: pool},
		UserRepository:        &UserRepository{pool: pool},
		ReservationRepository: &ReservationRepository{pool: pool},
		pool:                  pool,
		logger:                logger,
	}
}

// Migrate applies the embedded migrations for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	manager := migration.NewManager(
		migration.NewFSScanner(migrationFiles, path.Join("migrations", string(s.pool.driver))),
		migration.NewSQLExecutor(s.pool.db, s.pool.driver),
		s.logger,
	)
	if err := manager.Run(ctx); err != nil {
		return fmt.Errorf("migrate %s schema: %w", s.pool.driver, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.db.PingContext(ctx); err != nil {
		return persistence.NewStorageError("ping", err)
	}
	return nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.pool.db
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.pool.db.Close()
}

// WithTransaction runs fn in a single transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.pool.WithTransaction(ctx, fn)
}

// WithRoomLock runs fn in a transaction that holds the room's lock until
// commit. On PostgreSQL the room row is locked with SELECT ... FOR UPDATE;
// SQLite transactions begin IMMEDIATE and hold the database write lock.
func (s *Store) WithRoomLock(ctx context.Context, roomName string, fn func(ctx context.Context) error) error {
	return s.pool.WithTransaction(ctx, func(ctx context.Context) error {
		query, args, err := s.pool.lockRoomQuery(roomName).ToSql()
		if err != nil {
			return persistence.NewStorageError("lock room", err)
		}
		var name string
		if err := s.pool.executor(ctx).QueryRowContext(ctx, query, args...).Scan(&name); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return persistence.ErrNotFound
			}
			return mapError("lock room", err)
		}
		return fn(ctx)
	})
}
