package migration

import (
	"database/sql"
	"testing"
	"time"
)

func TestSQLExecutor_RecordInsertPlaceholders(t *testing.T) {
	// sql.Open does not connect, so no server is needed to render statements.
	db, err := sql.Open("postgres", "postgres://localhost/unused?sslmode=disable")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	defer db.Close()

	tests := []struct {
		driver Driver
		want   string
	}{
		{driver: DriverSQLite, want: "INSERT INTO schema_migrations (version,applied_at,checksum,execution_time_ms) VALUES (?,?,?,?)"},
		{driver: DriverPostgres, want: "INSERT INTO schema_migrations (version,applied_at,checksum,execution_time_ms) VALUES ($1,$2,$3,$4)"},
	}
	for _, tt := range tests {
		t.Run(string(tt.driver), func(t *testing.T) {
			executor := NewSQLExecutor(db, tt.driver)
			executor.now = func() time.Time { return time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC) }

			query, args, err := executor.recordInsert(Migration{Version: "002", Checksum: "abc"}, 1500*time.Millisecond).ToSql()
			if err != nil {
				t.Fatalf("ToSql failed: %v", err)
			}
			if query != tt.want {
				t.Fatalf("query = %q, want %q", query, tt.want)
			}
			want := []any{"002", "2025-03-03T09:00:00Z", "abc", int64(1500)}
			if len(args) != len(want) {
				t.Fatalf("args = %v, want %v", args, want)
			}
			for i := range want {
				if args[i] != want[i] {
					t.Fatalf("args[%d] = %v, want %v", i, args[i], want[i])
				}
			}
		})
	}
}
