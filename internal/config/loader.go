package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/example/room-reservations/internal/logging"
	"github.com/example/room-reservations/internal/persistence/sqlstore/migration"
)

// Duration wraps time.Duration so TOML files can say "15s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config captures file and environment driven configuration for the reservation service.
type Config struct {
	HTTP          HTTPConfig         `toml:"http"`
	Database      DatabaseConfig     `toml:"database"`
	Timezone      string             `toml:"timezone"`
	Log           LogConfig          `toml:"log"`
	Metrics       MetricsConfig      `toml:"metrics"`
	Notifications NotificationConfig `toml:"notifications"`
	Security      SecurityConfig     `toml:"security"`
	Bootstrap     BootstrapConfig    `toml:"bootstrap"`
}

// HTTPConfig configures the REST listener.
type HTTPConfig struct {
	Port            int      `toml:"port"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	IdleTimeout     Duration `toml:"idle_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	Driver          string   `toml:"driver"`
	DSN             string   `toml:"dsn"`
	MaxOpenConns    int      `toml:"max_open_conns"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
	BusyTimeout     Duration `toml:"busy_timeout"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Path      string `toml:"path"`
	Namespace string `toml:"namespace"`
}

// NotificationConfig configures the notification dispatcher and its sinks.
type NotificationConfig struct {
	QueueSize      int        `toml:"queue_size"`
	LogSink        bool       `toml:"log_sink"`
	WebhookURL     string     `toml:"webhook_url"`
	WebhookTimeout Duration   `toml:"webhook_timeout"`
	SMTP           SMTPConfig `toml:"smtp"`
}

// SMTPConfig configures outbound e-mail. Mail is disabled when Host is empty.
type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

// Enabled reports whether a mail host is configured.
func (s SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Host) != ""
}

// Addr renders host:port for net/smtp.
func (s SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig tunes argon2id for new credentials.
type SecurityConfig struct {
	Argon2Memory     uint32 `toml:"argon2_memory_kib"`
	Argon2Iterations uint32 `toml:"argon2_iterations"`
}

// BootstrapConfig describes the admin created when none exists.
type BootstrapConfig struct {
	AdminEmail    string `toml:"admin_email"`
	AdminUsername string `toml:"admin_username"`
	AdminPassword string `toml:"admin_password"`
}

// Enabled reports whether a bootstrap admin is configured.
func (b BootstrapConfig) Enabled() bool {
	return b.AdminPassword != ""
}

// Default returns the configuration used when neither a file nor the
// environment sets a value.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     Duration{15 * time.Second},
			WriteTimeout:    Duration{15 * time.Second},
			IdleTimeout:     Duration{60 * time.Second},
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			Driver:          string(migration.DriverSQLite),
			DSN:             "reservations.db",
			MaxOpenConns:    8,
			MaxIdleConns:    4,
			ConnMaxLifetime: Duration{5 * time.Minute},
			BusyTimeout:     Duration{10 * time.Second},
		},
		Timezone: "Local",
		Log:      LogConfig{Level: "info", Format: "json"},
		Metrics:  MetricsConfig{Enabled: true, Path: "/metrics", Namespace: "reservations"},
		Notifications: NotificationConfig{
			QueueSize:      256,
			LogSink:        true,
			WebhookTimeout: Duration{5 * time.Second},
			SMTP:           SMTPConfig{Port: 587},
		},
		Security: SecurityConfig{Argon2Memory: 64 * 1024, Argon2Iterations: 3},
	}
}

// Load builds the configuration from defaults, the optional TOML file at
// path, then environment overrides. Every invalid value is reported in one
// error.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	invalid := applyEnvironment(&cfg)
	invalid = append(invalid, cfg.validate()...)
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func applyEnvironment(cfg *Config) []string {
	invalid := make([]string, 0)

	setString := func(key string, dst *string) {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			*dst = value
		}
	}
	setInt := func(key string, dst *int) {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			parsed, err := strconv.Atoi(value)
			if err != nil {
				invalid = append(invalid, key)
				return
			}
			*dst = parsed
		}
	}
	setBool := func(key string, dst *bool) {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			parsed, err := strconv.ParseBool(value)
			if err != nil {
				invalid = append(invalid, key)
				return
			}
			*dst = parsed
		}
	}
	setDuration := func(key string, dst *Duration) {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			if err := dst.UnmarshalText([]byte(value)); err != nil {
				invalid = append(invalid, key)
			}
		}
	}

	setInt("RESERVATIONS_HTTP_PORT", &cfg.HTTP.Port)
	setDuration("RESERVATIONS_HTTP_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout)
	setString("RESERVATIONS_DB_DRIVER", &cfg.Database.Driver)
	setString("RESERVATIONS_DB_DSN", &cfg.Database.DSN)
	setInt("RESERVATIONS_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	setDuration("RESERVATIONS_DB_BUSY_TIMEOUT", &cfg.Database.BusyTimeout)
	setString("RESERVATIONS_TIMEZONE", &cfg.Timezone)
	setString("RESERVATIONS_LOG_LEVEL", &cfg.Log.Level)
	setString("RESERVATIONS_LOG_FORMAT", &cfg.Log.Format)
	setBool("RESERVATIONS_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setString("RESERVATIONS_METRICS_PATH", &cfg.Metrics.Path)
	setInt("RESERVATIONS_NOTIFY_QUEUE_SIZE", &cfg.Notifications.QueueSize)
	setBool("RESERVATIONS_NOTIFY_LOG", &cfg.Notifications.LogSink)
	setString("RESERVATIONS_WEBHOOK_URL", &cfg.Notifications.WebhookURL)
	setDuration("RESERVATIONS_WEBHOOK_TIMEOUT", &cfg.Notifications.WebhookTimeout)
	setString("RESERVATIONS_ADMIN_EMAIL", &cfg.Bootstrap.AdminEmail)
	setString("RESERVATIONS_ADMIN_USERNAME", &cfg.Bootstrap.AdminUsername)
	setString("RESERVATIONS_ADMIN_PASSWORD", &cfg.Bootstrap.AdminPassword)

	setString("MAIL_HOST", &cfg.Notifications.SMTP.Host)
	setInt("MAIL_PORT", &cfg.Notifications.SMTP.Port)
	setString("MAIL_USERNAME", &cfg.Notifications.SMTP.Username)
	setString("MAIL_PASSWORD", &cfg.Notifications.SMTP.Password)
	setString("MAIL_FROM", &cfg.Notifications.SMTP.From)

	return invalid
}

func (c Config) validate() []string {
	invalid := make([]string, 0)

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		invalid = append(invalid, "http.port")
	}
	if _, err := migration.ParseDriver(c.Database.Driver); err != nil {
		invalid = append(invalid, "database.driver")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		invalid = append(invalid, "database.dsn")
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		invalid = append(invalid, "database.max_open_conns")
	}
	if _, err := c.Location(); err != nil {
		invalid = append(invalid, "timezone")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		invalid = append(invalid, "log.level")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		invalid = append(invalid, "log.format")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		invalid = append(invalid, "metrics.path")
	}
	if c.Notifications.QueueSize <= 0 {
		invalid = append(invalid, "notifications.queue_size")
	}
	if c.Notifications.WebhookURL != "" {
		if u, err := url.Parse(c.Notifications.WebhookURL); err != nil || u.Scheme == "" || u.Host == "" {
			invalid = append(invalid, "notifications.webhook_url")
		}
	}
	if smtp := c.Notifications.SMTP; smtp.Enabled() {
		if smtp.Port <= 0 || smtp.Port > 65535 {
			invalid = append(invalid, "notifications.smtp.port")
		}
		if strings.TrimSpace(smtp.From) == "" {
			invalid = append(invalid, "notifications.smtp.from")
		}
	}
	if c.Security.Argon2Memory == 0 || c.Security.Argon2Iterations == 0 {
		invalid = append(invalid, "security")
	}
	if c.Bootstrap.Enabled() && (c.Bootstrap.AdminEmail == "" || c.Bootstrap.AdminUsername == "") {
		invalid = append(invalid, "bootstrap")
	}
	return invalid
}

// Location resolves the single local zone. "Local" or empty means the
// process zone.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("unknown timezone %q", name), err)
	}
	return location, nil
}

// ConnectionConfig converts the database section for sqlstore.Open.
func (c Config) ConnectionConfig() migration.ConnectionConfig {
	driver, _ := migration.ParseDriver(c.Database.Driver)

	var conn migration.ConnectionConfig
	if driver == migration.DriverPostgres {
		conn = migration.DefaultPostgresConfig(c.Database.DSN)
	} else {
		conn = migration.DefaultSQLiteConfig(c.Database.DSN)
		conn.BusyTimeout = c.Database.BusyTimeout.Duration
	}
	if c.Database.MaxOpenConns > 0 {
		conn.MaxOpenConns = c.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns > 0 {
		conn.MaxIdleConns = c.Database.MaxIdleConns
	}
	if c.Database.ConnMaxLifetime.Duration > 0 {
		conn.ConnMaxLifetime = c.Database.ConnMaxLifetime.Duration
	}
	return conn
}
