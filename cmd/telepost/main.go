package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telepost-io/telepost/internal/bot"
	"github.com/telepost-io/telepost/internal/config"
	"github.com/telepost-io/telepost/internal/database"
	"github.com/telepost-io/telepost/internal/delivery"
	"github.com/telepost-io/telepost/internal/mail"
	"github.com/telepost-io/telepost/internal/ratelimit"
	"github.com/telepost-io/telepost/internal/recipients"
	"github.com/telepost-io/telepost/internal/session"
	"github.com/telepost-io/telepost/internal/settings"
	"github.com/telepost-io/telepost/internal/store"
	"github.com/telepost-io/telepost/internal/store/file"
	"github.com/telepost-io/telepost/internal/store/postgres"
	"github.com/telepost-io/telepost/internal/telegram"
	"github.com/telepost-io/telepost/internal/web"
	"github.com/telepost-io/telepost/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Settings store
	var settingsStore store.SettingsStore
	switch cfg.StoreBackend {
	case "postgres":
		db, err := postgres.NewDB(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := database.RunMigrations(migrations.FS, cfg.DatabaseURL); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		settingsStore = postgres.NewSettingsStore(db)
	default:
		fs, err := file.Open(cfg.SettingsFile)
		if err != nil {
			slog.Error("failed to open settings file", "error", err)
			os.Exit(1)
		}
		settingsStore = fs
	}
	defer settingsStore.Close()

	// Services
	settingsService := settings.NewService(settingsStore, cfg.DefaultSenderEmail)
	recipientService := recipients.NewService(settingsService, cfg.DefaultRecipientEmail)
	sessionState := session.NewState()

	staging, err := delivery.NewStaging(cfg.StagingDir)
	if err != nil {
		slog.Error("failed to create staging dir", "error", err)
		os.Exit(1)
	}

	var mailer mail.Mailer
	switch cfg.MailBackend {
	case "smtp":
		mailer = mail.NewSMTPClient(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	case "noop":
		mailer = mail.NoopMailer{}
	default:
		mailer = mail.NewMailgunClient(cfg.MailgunDomain, cfg.MailgunAPIKey, "")
	}

	tgClient := telegram.NewClient(cfg.TelegramToken, "")
	pipeline := delivery.NewPipeline(settingsService, recipientService, sessionState, tgClient, mailer, staging)
	limiter := ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	dispatcher := bot.NewDispatcher(tgClient, settingsService, recipientService, sessionState, pipeline, limiter, bot.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		PollTimeoutSec: cfg.PollTimeoutSec,
	})

	// Ops HTTP server (health probes, webhook receive when enabled)
	router := web.NewRouter(web.RouterDeps{
		Dispatcher:   dispatcher,
		Store:        settingsStore,
		WebhookToken: cfg.WebhookToken,
	})
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("ops server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("ops server error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Receive loop: long polling unless a webhook token is configured, in
	// which case Telegram pushes updates through the ops server instead.
	fatal := make(chan error, 1)
	if cfg.WebhookToken == "" {
		go func() {
			slog.Info("polling for updates")
			fatal <- dispatcher.Run(ctx)
		}()
	} else {
		slog.Info("webhook mode, not polling")
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	select {
	case <-done:
		slog.Info("shutting down...")
	case err := <-fatal:
		if err != nil {
			slog.Error("receive loop failed", "error", err)
			os.Exit(1)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
