package migration

import (
	"strings"
	"testing"
	"time"
)

func TestParseDriver(t *testing.T) {
	tests := map[string]Driver{
		"":           DriverSQLite,
		"sqlite3":    DriverSQLite,
		"SQLite":     DriverSQLite,
		"postgres":   DriverPostgres,
		"postgresql": DriverPostgres,
	}
	for input, want := range tests {
		got, err := ParseDriver(input)
		if err != nil || got != want {
			t.Errorf("ParseDriver(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
	if _, err := ParseDriver("mysql"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestConnectionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ConnectionConfig)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*ConnectionConfig) {}},
		{name: "empty DSN", mutate: func(c *ConnectionConfig) { c.DSN = " " }, wantErr: "DSN cannot be empty"},
		{name: "negative busy timeout", mutate: func(c *ConnectionConfig) { c.BusyTimeout = -time.Second }, wantErr: "BusyTimeout"},
		{name: "bad journal mode", mutate: func(c *ConnectionConfig) { c.JournalMode = "FAST" }, wantErr: "journal mode"},
		{name: "bad synchronous mode", mutate: func(c *ConnectionConfig) { c.Synchronous = "SOMETIMES" }, wantErr: "synchronous"},
		{name: "unknown driver", mutate: func(c *ConnectionConfig) { c.Driver = "oracle" }, wantErr: "unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSQLiteConfig("test.db")
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConnectionConfig_DataSourceName(t *testing.T) {
	dsn := DefaultSQLiteConfig("data/app.db").DataSourceName()
	for _, part := range []string{
		"data/app.db?",
		"_txlock=immediate",
		"_pragma=busy_timeout(10000)",
		"_pragma=foreign_keys(1)",
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
	} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN %q missing %q", dsn, part)
		}
	}

	withQuery := DefaultSQLiteConfig("file:app.db?cache=shared").DataSourceName()
	if !strings.HasPrefix(withQuery, "file:app.db?cache=shared&_txlock=immediate") {
		t.Errorf("unexpected DSN %q", withQuery)
	}

	pg := DefaultPostgresConfig("postgres://localhost/app").DataSourceName()
	if pg != "postgres://localhost/app" {
		t.Errorf("postgres DSN should be passed through, got %q", pg)
	}
}
