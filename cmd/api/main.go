package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/diagnosis/rsvp-events/internal/cache"
	"github.com/diagnosis/rsvp-events/internal/database"
	httpmw "github.com/diagnosis/rsvp-events/internal/http/middleware"
	"github.com/diagnosis/rsvp-events/internal/http/router"
	"github.com/diagnosis/rsvp-events/internal/platform/mailer"
	"github.com/diagnosis/rsvp-events/internal/repo"
	"github.com/diagnosis/rsvp-events/internal/repo/memory"
	"github.com/diagnosis/rsvp-events/internal/repo/postgres"
	"github.com/diagnosis/rsvp-events/internal/service"
	"github.com/diagnosis/rsvp-events/pkg/config"
	pgconn "github.com/diagnosis/rsvp-events/pkg/database"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ready := map[string]mw.Pinger{}

	// Store
	var (
		store       repo.Store
		pool        *pgxpool.Pool
		idempotency mw.IdempotencyStore
		limiter     httpmw.Limiter
	)
	if cfg.UsePostgres() {
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(cfg.Database.URL); err != nil {
				logger.Error("Failed to run migrations", "error", err)
				os.Exit(1)
			}
		}
		var err error
		pool, err = pgconn.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store = postgres.NewStore(pool)
		idemRepo := postgres.NewIdempotencyRepo(pool)
		idempotency = idemRepo
		limiter = httpmw.NewWindowLimiter(pool, cfg.RateLimit.WindowRequests, cfg.RateLimit.Window)
		go cleanupIdempotency(ctx, idemRepo)
	} else {
		logger.Warn("Using in-memory store; data is lost on restart")
		store = memory.New()
		limiter = httpmw.NewTokenBucketLimiter(cfg.RateLimit.RSVPPerSecond, cfg.RateLimit.RSVPBurst)
	}
	ready["store"] = store

	// Cache
	var publicEvents cache.PublicEvents
	if cfg.Redis.URL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		kv := cache.NewRedisKV(client)
		publicEvents = cache.NewRedisPublicEvents(client, cfg.Redis.PublicEventTTL)
		idempotency = kv
		ready["redis"] = kv
	} else {
		mem := cache.NewMemory(cfg.Redis.PublicEventTTL)
		publicEvents = mem.PublicEvents()
		if idempotency == nil {
			idempotency = mem
		}
	}

	// Event bus
	var eventBus events.EventBus
	if cfg.NATS.Enabled {
		natsBus, err := events.NewNATSEventBus(cfg.NATS.URL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		eventBus = natsBus
		ready["nats"] = natsBus
	} else {
		// Without NATS the notifier runs in process.
		local := events.NewLocalEventBus()
		m, err := mailer.New(cfg.Email)
		if err != nil {
			logger.Error("Failed to configure mailer", "error", err)
			os.Exit(1)
		}
		if err := service.NewNotifier(m, cfg.App.BaseURL).Subscribe(local, cfg.NATS.Queue); err != nil {
			logger.Error("Failed to subscribe notifier", "error", err)
			os.Exit(1)
		}
		eventBus = local
	}
	defer eventBus.Close()

	// Services
	authService := service.NewAuthService(store, cfg.Auth)
	eventService := service.NewEventService(store, publicEvents, eventBus)
	rsvpService := service.NewRSVPService(store, eventBus)

	h := router.New(router.Deps{
		Auth:           authService,
		Events:         eventService,
		RSVPs:          rsvpService,
		BaseURL:        cfg.App.BaseURL,
		AllowedOrigins: cfg.App.AllowedOrigins,
		Idempotency:    idempotency,
		IdempotencyTTL: cfg.Redis.IdempotencyTTL,
		RSVPLimiter:    limiter,
		Ready:          ready,

		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting RSVP API", "addr", srv.Addr, "store", cfg.App.StoreDriver, "nats", cfg.NATS.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down RSVP API...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("RSVP API shutdown error", "error", err)
	}
	logger.Info("RSVP API stopped")
}

func cleanupIdempotency(ctx context.Context, r postgres.IdempotencyRepo) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.CleanupExpired(ctx)
			if err != nil {
				logger.Warn("Idempotency cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("Expired idempotency keys removed", "count", n)
			}
		}
	}
}
