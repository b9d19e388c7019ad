package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/room-reservations/internal/persistence/sqlstore/migration"
)

var environmentKeys = []string{
	"RESERVATIONS_HTTP_PORT",
	"RESERVATIONS_HTTP_SHUTDOWN_TIMEOUT",
	"RESERVATIONS_DB_DRIVER",
	"RESERVATIONS_DB_DSN",
	"RESERVATIONS_DB_MAX_OPEN_CONNS",
	"RESERVATIONS_DB_BUSY_TIMEOUT",
	"RESERVATIONS_TIMEZONE",
	"RESERVATIONS_LOG_LEVEL",
	"RESERVATIONS_LOG_FORMAT",
	"RESERVATIONS_METRICS_ENABLED",
	"RESERVATIONS_METRICS_PATH",
	"RESERVATIONS_NOTIFY_QUEUE_SIZE",
	"RESERVATIONS_NOTIFY_LOG",
	"RESERVATIONS_WEBHOOK_URL",
	"RESERVATIONS_WEBHOOK_TIMEOUT",
	"RESERVATIONS_ADMIN_EMAIL",
	"RESERVATIONS_ADMIN_USERNAME",
	"RESERVATIONS_ADMIN_PASSWORD",
	"MAIL_HOST",
	"MAIL_PORT",
	"MAIL_USERNAME",
	"MAIL_PASSWORD",
	"MAIL_FROM",
}

func clearEnvironment(t *testing.T) {
	t.Helper()
	for _, key := range environmentKeys {
		// t.Setenv restores the previous value after the test.
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults when nothing is set", func(t *testing.T) {
		clearEnvironment(t)

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTP.Port != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTP.Port)
		}
		if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "reservations.db" {
			t.Fatalf("unexpected default database %+v", cfg.Database)
		}
		if cfg.Notifications.SMTP.Enabled() || cfg.Bootstrap.Enabled() {
			t.Fatalf("expected mail and bootstrap to be disabled by default")
		}
	})

	t.Run("reads the TOML file", func(t *testing.T) {
		clearEnvironment(t)

		path := writeConfigFile(t, `
timezone = "Asia/Tokyo"

[http]
port = 9090
read_timeout = "3s"

[database]
driver = "postgres"
dsn = "postgres://app@localhost/reservations?sslmode=disable"
max_open_conns = 12

[notifications]
queue_size = 16
webhook_url = "https://hooks.example.com/reservations"

[notifications.smtp]
host = "smtp.example.com"
port = 2525
from = "rooms@example.com"
`)

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTP.Port != 9090 || cfg.HTTP.ReadTimeout.Duration != 3*time.Second {
			t.Fatalf("unexpected http section %+v", cfg.HTTP)
		}
		if cfg.Notifications.SMTP.Addr() != "smtp.example.com:2525" {
			t.Fatalf("unexpected smtp addr %s", cfg.Notifications.SMTP.Addr())
		}

		loc, err := cfg.Location()
		if err != nil || loc.String() != "Asia/Tokyo" {
			t.Fatalf("expected Asia/Tokyo, got %v %v", loc, err)
		}

		conn := cfg.ConnectionConfig()
		if conn.Driver != migration.DriverPostgres || conn.MaxOpenConns != 12 {
			t.Fatalf("unexpected connection config %+v", conn)
		}
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		clearEnvironment(t)
		path := writeConfigFile(t, "[http]\nport = 9090\n")
		t.Setenv("RESERVATIONS_HTTP_PORT", "7070")
		t.Setenv("MAIL_HOST", "mail.internal")
		t.Setenv("MAIL_FROM", "noreply@example.com")
		t.Setenv("RESERVATIONS_DB_BUSY_TIMEOUT", "2s")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTP.Port != 7070 {
			t.Fatalf("expected env port 7070, got %d", cfg.HTTP.Port)
		}
		if cfg.Notifications.SMTP.Host != "mail.internal" || cfg.Notifications.SMTP.Port != 587 {
			t.Fatalf("unexpected smtp %+v", cfg.Notifications.SMTP)
		}
		if got := cfg.ConnectionConfig().BusyTimeout; got != 2*time.Second {
			t.Fatalf("expected busy timeout 2s, got %v", got)
		}
	})

	t.Run("reports every invalid value together", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("RESERVATIONS_HTTP_PORT", "abc")
		t.Setenv("RESERVATIONS_DB_DRIVER", "oracle")
		t.Setenv("RESERVATIONS_TIMEZONE", "Mars/Olympus")
		t.Setenv("RESERVATIONS_ADMIN_PASSWORD", "secret")

		_, err := Load("")
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		for _, want := range []string{"RESERVATIONS_HTTP_PORT", "database.driver", "timezone", "bootstrap"} {
			if !strings.Contains(err.Error(), want) {
				t.Fatalf("expected %q in %q", want, err.Error())
			}
		}
	})

	t.Run("fails on a missing file", func(t *testing.T) {
		clearEnvironment(t)
		if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
			t.Fatalf("expected error for missing file")
		}
	})
}
