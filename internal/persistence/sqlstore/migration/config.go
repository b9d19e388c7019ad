package migration

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

// Driver names a supported database/sql driver.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver parses a driver name. "sqlite3" and "postgresql" are accepted
// as aliases.
func ParseDriver(name string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", name)
}

// ConnectionConfig holds pool and driver settings.
type ConnectionConfig struct {
	Driver Driver

	// DSN is a file path or SQLite URI for sqlite, a connection string for postgres.
	DSN string

	// BusyTimeout sets how long SQLite waits for the write lock.
	BusyTimeout time.Duration

	// EnableForeignKeys turns on SQLite foreign key enforcement.
	EnableForeignKeys bool

	// JournalMode sets the SQLite journal mode (WAL, DELETE, ...).
	JournalMode string

	// Synchronous sets the SQLite synchronous mode (FULL, NORMAL, OFF).
	Synchronous string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultSQLiteConfig returns a SQLite configuration with sensible defaults.
func DefaultSQLiteConfig(databasePath string) ConnectionConfig {
	return ConnectionConfig{
		Driver:            DriverSQLite,
		DSN:               databasePath,
		BusyTimeout:       10 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "NORMAL",
		MaxOpenConns:      8,
		MaxIdleConns:      4,
		ConnMaxLifetime:   5 * time.Minute,
	}
}

// DefaultPostgresConfig returns a PostgreSQL configuration with sensible defaults.
func DefaultPostgresConfig(dsn string) ConnectionConfig {
	return ConnectionConfig{
		Driver:          DriverPostgres,
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Validate checks the configuration before a connection is opened.
func (c ConnectionConfig) Validate() error {
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	if c.Driver != DriverSQLite && c.Driver != DriverPostgres {
		return fmt.Errorf("unsupported database driver %q", c.Driver)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("BusyTimeout cannot be negative")
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("connection pool sizes cannot be negative")
	}
	if c.ConnMaxLifetime < 0 {
		return fmt.Errorf("ConnMaxLifetime cannot be negative")
	}

	validJournalModes := map[string]bool{"": true, "DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true, "WAL": true, "OFF": true}
	if !validJournalModes[strings.ToUpper(c.JournalMode)] {
		return fmt.Errorf("invalid journal mode: %s", c.JournalMode)
	}
	validSyncModes := map[string]bool{"": true, "OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true}
	if !validSyncModes[strings.ToUpper(c.Synchronous)] {
		return fmt.Errorf("invalid synchronous mode: %s", c.Synchronous)
	}
	return nil
}

// DataSourceName renders the DSN handed to sql.Open. SQLite settings are
// expressed as connection parameters so every pooled connection gets them,
// and write transactions start with BEGIN IMMEDIATE.
func (c ConnectionConfig) DataSourceName() string {
	if c.Driver != DriverSQLite {
		return c.DSN
	}

	params := []string{"_txlock=immediate"}
	if c.BusyTimeout > 0 {
		params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	}
	if c.EnableForeignKeys {
		params = append(params, "_pragma=foreign_keys(1)")
	}
	if c.JournalMode != "" {
		params = append(params, fmt.Sprintf("_pragma=journal_mode(%s)", strings.ToUpper(c.JournalMode)))
	}
	if c.Synchronous != "" {
		params = append(params, fmt.Sprintf("_pragma=synchronous(%s)", strings.ToUpper(c.Synchronous)))
	}

	separator := "?"
	if strings.Contains(c.DSN, "?") {
		separator = "&"
	}
	return c.DSN + separator + strings.Join(params, "&")
}

// Open validates the configuration, opens the pool and pings the database.
func Open(cfg ConnectionConfig) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		if err := createDatabaseDir(cfg.DSN); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(string(cfg.Driver), cfg.DataSourceName())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Driver, err)
	}
	return db, nil
}

// createDatabaseDir makes sure the directory of a file-backed SQLite DSN exists.
func createDatabaseDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" || strings.HasPrefix(path, ":memory:") {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}
