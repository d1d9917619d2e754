package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expense-tracker/auth"
	"expense-tracker/config"
	"expense-tracker/database"
	"expense-tracker/handlers"
	"expense-tracker/ledger"
	"expense-tracker/logging"
	"expense-tracker/middleware"
	"expense-tracker/notice"
	"expense-tracker/realtime"
	"expense-tracker/services"
	"expense-tracker/session"
	"expense-tracker/store"
	"expense-tracker/store/memory"
	"expense-tracker/store/postgres"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	config.Load()
	logger := logging.Setup(config.AppConfig.LogLevel)
	if err := config.AppConfig.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	cfg := config.AppConfig

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to Redis (optional, won't crash if unavailable)
	database.ConnectRedis()

	hub := realtime.NewHub(logger)
	st, err := openStore(ctx, cfg, hub, logger)
	if err != nil {
		logger.Error("Failed to open store", "backend", cfg.DataBackend, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if database.Redis != nil {
		revoker = auth.NewRedisRevoker(database.Redis)
	}
	authService := auth.NewService(st, st, auth.Options{
		Secret:          cfg.JWTSecret,
		TTL:             cfg.SessionTTL,
		DefaultCurrency: cfg.DefaultCurrency,
		Revoker:         revoker,
	})

	deps := ledger.Deps{
		Store:    st,
		Hub:      hub,
		Invites:  newNotificationService(ctx, cfg, st, logger),
		Reporter: notice.LogReporter{Logger: logger},
		Logger:   logger,
	}
	sessions := session.NewRegistry(authService, deps, session.Options{IdleTimeout: 30 * time.Minute, Logger: logger})
	defer sessions.Close()
	go sessions.Run(ctx, time.Minute)

	// Setup router
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORSMiddleware())
	handlers.SetupRoutes(r, sessions)

	// Start server
	addr := "0.0.0.0:" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("🚀 Server starting", "service", cfg.AppName, "addr", addr, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
}

// openStore builds the configured backend and starts the source of its
// change notifications.
func openStore(ctx context.Context, cfg *config.Config, hub *realtime.Hub, logger *slog.Logger) (store.Store, error) {
	if cfg.DataBackend == config.BackendMemory {
		if database.Redis == nil {
			return memory.New(hub), nil
		}
		relay := realtime.NewRedisRelay(database.Redis, hub, logger)
		go func() {
			if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Change relay stopped", "error", err)
			}
		}()
		return memory.New(relay), nil
	}

	// Connect to database
	if err := database.Connect(); err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		return nil, err
	}

	listener, err := realtime.NewPGListener(cfg.DatabaseURL, hub, logger)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Change listener stopped", "error", err)
		}
	}()
	return postgres.New(database.DB), nil
}

func newNotificationService(ctx context.Context, cfg *config.Config, st store.Store, logger *slog.Logger) *services.NotificationService {
	var mailer services.Mailer
	if m := services.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridFrom, cfg.AppName); m != nil {
		mailer = m
	}

	var pusher services.Pusher
	p, err := services.NewFCMPusher(ctx, cfg.FirebaseCredPath)
	switch {
	case err != nil:
		logger.Warn("⚠️  Push notifications disabled", "error", err)
	case p != nil:
		pusher = p
	}

	return services.NewNotificationService(st, mailer, pusher, services.NotificationOptions{
		AppName: cfg.AppName,
		AppURL:  cfg.AppURL,
		Logger:  logger,
	})
}
