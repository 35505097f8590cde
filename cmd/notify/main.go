package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/diagnosis/rsvp-events/internal/platform/mailer"
	"github.com/diagnosis/rsvp-events/internal/service"
	"github.com/diagnosis/rsvp-events/pkg/config"
	"github.com/diagnosis/rsvp-events/pkg/events"
	"github.com/diagnosis/rsvp-events/pkg/logger"
	mw "github.com/diagnosis/rsvp-events/pkg/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to load .env", "error", err)
	}
	cfg := config.Load()
	logger.SetDefault(logger.New(os.Stdout, os.Getenv("LOG_LEVEL")))

	bus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	m, err := mailer.New(cfg.Email)
	if err != nil {
		logger.Error("Failed to configure mailer", "error", err)
		os.Exit(1)
	}
	if err := service.NewNotifier(m, cfg.App.BaseURL).Subscribe(bus, cfg.NATS.Queue); err != nil {
		logger.Error("Failed to subscribe notifier", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("rsvp-notify"))
	r.Use(mw.Health)
	r.Use(mw.Ready(map[string]mw.Pinger{"nats": bus}))

	srv := &http.Server{
		Addr:         ":" + getEnv("NOTIFY_PORT", "8086"),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Starting notify worker", "addr", srv.Addr, "queue", cfg.NATS.Queue, "driver", cfg.Email.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Notify health server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down notify worker...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Notify worker shutdown error", "error", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
