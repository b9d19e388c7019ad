package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/persistence/sqlstore/migration"
)

// timestampLayout is fixed width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// executor is the subset of *sql.DB and *sql.Tx the repositories use.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

type txState struct {
	pool *ConnectionPool
	tx   *sql.Tx
}

// ConnectionPool wraps the database handle with the dialect's statement
// builder and carries transactions through the context.
type ConnectionPool struct {
	db      *sql.DB
	driver  migration.Driver
	builder squirrel.StatementBuilderType
}

func newConnectionPool(db *sql.DB, driver migration.Driver) *ConnectionPool {
	var format squirrel.PlaceholderFormat = squirrel.Question
	if driver == migration.DriverPostgres {
		format = squirrel.Dollar
	}
	return &ConnectionPool{
		db:      db,
		driver:  driver,
		builder: squirrel.StatementBuilder.PlaceholderFormat(format),
	}
}

// executor returns the transaction bound to ctx, or the pool.
func (p *ConnectionPool) executor(ctx context.Context) executor {
	if state, ok := ctx.Value(txKey{}).(txState); ok && state.pool == p {
		return state.tx
	}
	return p.db
}

func (p *ConnectionPool) inTransaction(ctx context.Context) bool {
	state, ok := ctx.Value(txKey{}).(txState)
	return ok && state.pool == p
}

// lockSuffix returns the row-locking clause for the dialect. SQLite write
// transactions already hold the database lock.
func (p *ConnectionPool) lockSuffix() string {
	if p.driver == migration.DriverPostgres {
		return "FOR UPDATE"
	}
	return ""
}

// lockRoomQuery selects the room row, locking it on dialects that support
// row locks.
func (p *ConnectionPool) lockRoomQuery(roomName string) squirrel.SelectBuilder {
	stmt := p.builder.
		Select("name").
		From("rooms").
		Where(squirrel.Eq{"name": roomName})
	if suffix := p.lockSuffix(); suffix != "" {
		stmt = stmt.Suffix(suffix)
	}
	return stmt
}

// WithTransaction runs fn inside a transaction. Repository calls made with
// the context passed to fn join it. Nested calls reuse the outer transaction.
func (p *ConnectionPool) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if p.inTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin transaction", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, txState{pool: p, tx: tx})); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapError("commit transaction", err)
	}
	return nil
}

// exec renders a squirrel statement and runs it on the context's executor.
func (p *ConnectionPool) exec(ctx context.Context, op string, stmt squirrel.Sqlizer) (sql.Result, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, persistence.NewStorageError(op, err)
	}
	result, err := p.executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	return result, nil
}

func (p *ConnectionPool) query(ctx context.Context, op string, stmt squirrel.Sqlizer) (*sql.Rows, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, persistence.NewStorageError(op, err)
	}
	rows, err := p.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	return rows, nil
}

// expectAffected turns a zero-row update or delete into ErrNotFound.
func expectAffected(op string, result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStorageError(op, err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// mapError maps driver errors onto the persistence error kinds.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w", op, persistence.ErrDuplicate)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %w", op, persistence.ErrForeignKey)
		case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return fmt.Errorf("%s: %w", op, persistence.ErrConstraint)
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, persistence.ErrDuplicate)
		case "23503":
			return fmt.Errorf("%s: %w", op, persistence.ErrForeignKey)
		case "23514", "23502":
			return fmt.Errorf("%s: %w", op, persistence.ErrConstraint)
		}
	}

	// Some driver paths only report the primary result code.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%s: %w", op, persistence.ErrDuplicate)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%s: %w", op, persistence.ErrForeignKey)
	case strings.Contains(msg, "CHECK constraint failed"):
		return fmt.Errorf("%s: %w", op, persistence.ErrConstraint)
	}

	return persistence.NewStorageError(op, err)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}
