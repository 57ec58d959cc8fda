package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	emailPkg "gather/internal/adapters/email"
	"gather/internal/adapters/errreport"
	web "gather/internal/adapters/http"
	"gather/internal/adapters/http/metrics"
	"gather/internal/adapters/http/perf"
	"gather/internal/adapters/storage"
	attendanceStore "gather/internal/adapters/storage/attendance"
	scheduleStore "gather/internal/adapters/storage/eventschedule"
	personStore "gather/internal/adapters/storage/person"
	"gather/internal/adapters/telemetry"
	"gather/internal/config"
	"gather/internal/domain/eventschedule"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server_event", "event", "fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	if cfg.Version == "dev" {
		cfg.Version = version
	}
	setupLogging(cfg)
	errreport.Configure(errreport.Options{Token: cfg.RollbarToken, Environment: cfg.Env, Version: cfg.Version})
	defer errreport.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.Version, !cfg.IsProduction())
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("telemetry_event", "event", "shutdown_failed", "error", err)
		}
	}()

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("storage_event", "event", "database_ready", "path", cfg.DBPath, "schema", storage.LatestSchemaVersion())

	// Performance instrumentation: wrap DB with timing, create collector
	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.SlowQuery)

	sched := scheduleStore.NewSQLiteStore(timedDB)
	if err := sched.Init(ctx, eventschedule.ForWeekOf(time.Now().UTC())); err != nil {
		return err
	}
	stores := &web.Stores{
		ScheduleStore:   sched,
		AttendanceStore: attendanceStore.NewSQLiteStore(timedDB),
		PersonStore:     personStore.NewSQLiteStore(timedDB),
	}

	if cfg.ResendKey != "" {
		web.SetEmailSender(emailPkg.NewResendSender(cfg.ResendKey, cfg.EmailFrom, cfg.ReplyTo))
		slog.Info("email_event", "event", "sender_configured", "provider", "resend")
	} else {
		web.SetEmailSender(emailPkg.NewNoopSender())
		if cfg.IsProduction() {
			slog.Warn("email_event", "event", "sender_configured", "provider", "noop", "hint", "GATHER_RESEND_KEY is not set; welcome emails are disabled")
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.NewRouter(stores, cfg, collector, metrics.New()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_event", "event", "listening", "addr", cfg.Addr, "env", cfg.Env, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("server_event", "event", "shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// setupLogging installs a JSON handler in production and a text handler elsewhere.
func setupLogging(cfg config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler).With("service", "gather"))
}
