package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestFSScanner_ScanMigrations(t *testing.T) {
	tests := []struct {
		name          string
		files         map[string]string // filename -> content
		expectedOrder []string
		expectedErr   error
	}{
		{
			name: "valid migration directory with multiple files",
			files: map[string]string{
				"001_initial_schema.sql": "CREATE TABLE users (email TEXT PRIMARY KEY);",
				"002_add_rooms.sql":      "CREATE TABLE rooms (name TEXT PRIMARY KEY);",
				"003_add_indexes.sql":    "CREATE INDEX idx_users_email ON users(email);",
			},
			expectedOrder: []string{"001", "002", "003"},
		},
		{
			name: "non-SQL files are ignored",
			files: map[string]string{
				"001_initial_schema.sql": "CREATE TABLE users (email TEXT PRIMARY KEY);",
				"README.md":              "# Migrations",
			},
			expectedOrder: []string{"001"},
		},
		{
			name: "numeric ordering",
			files: map[string]string{
				"10_later.sql":  "CREATE TABLE b (id TEXT);",
				"9_earlier.sql": "CREATE TABLE a (id TEXT);",
			},
			expectedOrder: []string{"9", "10"},
		},
		{
			name: "invalid filename format",
			files: map[string]string{
				"invalid_name.sql": "CREATE TABLE test (id TEXT);",
			},
			expectedErr: ErrInvalidMigrationFile,
		},
		{
			name: "duplicate versions",
			files: map[string]string{
				"001_first.sql":  "CREATE TABLE a (id TEXT);",
				"0001_again.sql": "CREATE TABLE b (id TEXT);",
			},
			expectedErr: ErrDuplicateVersion,
		},
		{
			name: "comment-only file",
			files: map[string]string{
				"001_empty.sql": "-- nothing here\n",
			},
			expectedErr: ErrInvalidMigrationFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{}
			for name, content := range tt.files {
				fsys["migrations/"+name] = &fstest.MapFile{Data: []byte(content)}
			}

			migrations, err := NewFSScanner(fsys, "migrations").ScanMigrations()
			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("expected %v, got %v", tt.expectedErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(migrations) != len(tt.expectedOrder) {
				t.Fatalf("expected %d migrations, got %d", len(tt.expectedOrder), len(migrations))
			}
			for i, version := range tt.expectedOrder {
				if migrations[i].Version != version {
					t.Errorf("position %d: expected version %s, got %s", i, version, migrations[i].Version)
				}
				if migrations[i].Checksum == "" {
					t.Errorf("position %d: checksum not computed", i)
				}
			}
		})
	}
}

func TestFSScanner_Description(t *testing.T) {
	fsys := fstest.MapFS{
		"m/001_initial_schema.sql": {Data: []byte("-- Description: create core tables\nCREATE TABLE a (id TEXT);")},
		"m/002_add_index.sql":      {Data: []byte("CREATE INDEX idx_a ON a(id);")},
	}

	migrations, err := NewFSScanner(fsys, "m").ScanMigrations()
	if err != nil {
		t.Fatalf("ScanMigrations failed: %v", err)
	}
	if migrations[0].Description != "create core tables" {
		t.Errorf("unexpected description %q", migrations[0].Description)
	}
	if migrations[1].Description != "add index" {
		t.Errorf("unexpected description %q", migrations[1].Description)
	}
}

func TestSplitStatements(t *testing.T) {
	script := `-- header
CREATE TABLE a (
	id TEXT -- inline comments are kept
);

-- second
CREATE INDEX idx_a ON a(id);
`
	statements := SplitStatements(script)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if statements[1] != "CREATE INDEX idx_a ON a(id)" {
		t.Errorf("unexpected second statement %q", statements[1])
	}
}
