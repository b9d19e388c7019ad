package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
)

const versionTableDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL,
	checksum TEXT,
	execution_time_ms BIGINT
)`

// SQLExecutor implements Executor for database/sql pools.
type SQLExecutor struct {
	db      *sql.DB
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewSQLExecutor creates an executor that renders placeholders for driver.
func NewSQLExecutor(db *sql.DB, driver Driver) *SQLExecutor {
	builder := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
	if driver == DriverPostgres {
		builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	}
	return &SQLExecutor{db: db, builder: builder, now: time.Now}
}

// InitializeVersionTable creates the schema_migrations table if it doesn't exist.
func (e *SQLExecutor) InitializeVersionTable(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, versionTableDDL); err != nil {
		return NewDatabaseError("", versionTableDDL, "create schema_migrations table", err)
	}
	return nil
}

// ExecuteMigration runs every statement of a migration in one transaction.
func (e *SQLExecutor) ExecuteMigration(ctx context.Context, migration Migration) (err error) {
	statements := SplitStatements(migration.SQL)
	if len(statements) == 0 {
		return NewMigrationError(migration.Version, migration.FilePath, "parse SQL",
			fmt.Errorf("%w: no SQL statements", ErrInvalidMigrationFile))
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return NewDatabaseError(migration.Version, "", "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range statements {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			err = NewDatabaseError(migration.Version, stmt, fmt.Sprintf("execute statement %d", i+1), execErr)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		err = NewDatabaseError(migration.Version, "", "commit transaction", err)
		return err
	}
	return nil
}

// RecordMigration stores a successfully applied migration.
func (e *SQLExecutor) RecordMigration(ctx context.Context, migration Migration, executionTime time.Duration) error {
	query, args, err := e.recordInsert(migration, executionTime).ToSql()
	if err != nil {
		return NewDatabaseError(migration.Version, "", "build insert", err)
	}
	if _, err := e.db.ExecContext(ctx, query, args...); err != nil {
		return NewDatabaseError(migration.Version, query, "record migration", err)
	}
	return nil
}

func (e *SQLExecutor) recordInsert(migration Migration, executionTime time.Duration) squirrel.InsertBuilder {
	return e.builder.
		Insert("schema_migrations").
		Columns("version", "applied_at", "checksum", "execution_time_ms").
		Values(migration.Version, e.now().UTC().Format(time.RFC3339), migration.Checksum, executionTime.Milliseconds())
}

// GetAppliedVersions returns the applied migrations in version order.
func (e *SQLExecutor) GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error) {
	query, args, err := e.builder.
		Select("version", "applied_at", "COALESCE(execution_time_ms, 0)", "COALESCE(checksum, '')").
		From("schema_migrations").
		OrderBy("version ASC").
		ToSql()
	if err != nil {
		return nil, NewDatabaseError("", "", "build select", err)
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewDatabaseError("", query, "get applied versions", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			m          AppliedMigration
			appliedAt  string
			durationMs int64
		)
		if err := rows.Scan(&m.Version, &appliedAt, &durationMs, &m.Checksum); err != nil {
			return nil, NewDatabaseError("", query, "scan applied migration", err)
		}
		if parsed, parseErr := time.Parse(time.RFC3339, appliedAt); parseErr == nil {
			m.AppliedAt = parsed
		}
		m.ExecutionTime = time.Duration(durationMs) * time.Millisecond
		applied = append(applied, m)
	}
	if err := rows.Err(); err != nil {
		return nil, NewDatabaseError("", query, "iterate applied migrations", err)
	}
	return applied, nil
}
