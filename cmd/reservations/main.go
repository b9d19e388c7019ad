// Command reservations runs the room reservation API.
//
// Usage:
//
//	reservations [-config path] [serve]
//	reservations [-config path] migrate
//	reservations [-config path] import -dir path/to/legacy/data
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/config"
	httptransport "github.com/example/room-reservations/internal/http"
	"github.com/example/room-reservations/internal/legacy"
	"github.com/example/room-reservations/internal/logging"
	"github.com/example/room-reservations/internal/metrics"
	"github.com/example/room-reservations/internal/notify"
	"github.com/example/room-reservations/internal/persistence/sqlstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "reservations:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("reservations", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", os.Getenv("RESERVATIONS_CONFIG"), "path to the TOML configuration file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	command, rest := "serve", flags.Args()
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: stderr})
	if err != nil {
		return err
	}

	switch command {
	case "serve":
		return serve(ctx, cfg, logger)
	case "migrate":
		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		return store.Close()
	case "import":
		return importLegacy(ctx, cfg, logger, rest, stdout, stderr)
	}
	return fmt.Errorf("unknown command %q", command)
}

// openStore connects and brings the schema up to date.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sqlstore.Store, error) {
	store, err := sqlstore.Open(cfg.ConnectionConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store, nil
}

func passwordParams(cfg config.Config) application.Argon2idParams {
	params := application.DefaultArgon2idParams
	params.Memory = cfg.Security.Argon2Memory
	params.Iterations = cfg.Security.Argon2Iterations
	return params
}

// app is the wired service graph behind the HTTP listener.
type app struct {
	handler    http.Handler
	users      *application.UserService
	dispatcher *notify.Dispatcher
}

func newApp(cfg config.Config, store *sqlstore.Store, logger *slog.Logger) (*app, error) {
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	sinks := make([]notify.Sink, 0, 3)
	if cfg.Notifications.LogSink {
		sinks = append(sinks, notify.NewLogSink(logger))
	}
	if smtp := cfg.Notifications.SMTP; smtp.Enabled() {
		sinks = append(sinks, notify.NewEmailSink(&notify.SMTPSender{
			Host:     smtp.Host,
			Port:     smtp.Port,
			Username: smtp.Username,
			Password: smtp.Password,
			From:     smtp.From,
		}))
	}
	if cfg.Notifications.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notifications.WebhookURL, cfg.Notifications.WebhookTimeout.Duration))
	}
	dispatcher := notify.NewDispatcher(sinks,
		notify.WithQueueSize(cfg.Notifications.QueueSize),
		notify.WithFailureRecorder(m),
		notify.WithLogger(logger),
	)
	hub := notify.NewHub(0, logger)

	opts := []application.Option{
		application.WithLogger(logger),
		application.WithLocation(location),
		application.WithRecorder(m),
		application.WithPasswordParams(passwordParams(cfg)),
	}
	reservations := application.NewReservationService(store, notify.Multi{dispatcher, hub}, uuid.NewString, time.Now, opts...)
	rooms := application.NewRoomService(store, time.Now, opts...)
	users := application.NewUserService(store, time.Now, opts...)
	reports := application.NewReportService(store, time.Now, opts...)

	routerCfg := httptransport.RouterConfig{
		Authenticator: users,
		Users:         httptransport.NewUserHandler(users, logger),
		Rooms:         httptransport.NewRoomHandler(rooms, reservations, logger),
		Reservations:  httptransport.NewReservationHandler(reservations, logger),
		Reports:       httptransport.NewReportHandler(reports, logger),
		Events:        httptransport.NewEventsHandler(hub, logger),
		Middleware:    []mux.MiddlewareFunc{httptransport.RequestLogger(logger), m.Middleware()},
		Logger:        logger,
	}
	if m != nil {
		routerCfg.Metrics = m.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	return &app{
		handler:    httptransport.NewRouter(routerCfg),
		users:      users,
		dispatcher: dispatcher,
	}, nil
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	a, err := newApp(cfg, store, logger)
	if err != nil {
		return err
	}

	if cfg.Bootstrap.Enabled() {
		if _, err := a.users.EnsureAdmin(ctx, application.AdminBootstrap{
			Email:    cfg.Bootstrap.AdminEmail,
			Username: cfg.Bootstrap.AdminUsername,
			Password: cfg.Bootstrap.AdminPassword,
		}); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout.Duration,
		ReadTimeout:       cfg.HTTP.ReadTimeout.Duration,
		WriteTimeout:      cfg.HTTP.WriteTimeout.Duration,
		IdleTimeout:       cfg.HTTP.IdleTimeout.Duration,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Duration)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
		if err := a.dispatcher.Close(shutdownCtx); err != nil {
			logger.Warn("notification queue not drained", "error", err)
		}
	}()

	logger.Info("reservations API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	<-shutdownDone
	return nil
}

func importLegacy(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("import", flag.ContinueOnError)
	flags.SetOutput(stderr)
	dir := flags.String("dir", "", "directory holding users.json, rooms.json and reservations.json")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*dir) == "" {
		return errors.New("import: -dir is required")
	}
	if info, err := os.Stat(*dir); err != nil {
		return fmt.Errorf("import: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("import: %s is not a directory", *dir)
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	importer := legacy.NewImporter(store,
		legacy.WithPasswordParams(passwordParams(cfg)),
		legacy.WithLogger(logger),
	)
	report, err := importer.Import(ctx, os.DirFS(*dir))
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "imported %d users, %d rooms, %d reservations (%d demoted to pending)\n",
		report.Users, report.Rooms, report.Reservations, report.Demoted)
	for _, skip := range report.Skipped {
		fmt.Fprintf(stdout, "skipped %s\n", skip)
	}
	return nil
}
