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

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	httpAdapter "github.com/lorrc/armesa-dashboard/internal/adapters/primary/http"
	mw "github.com/lorrc/armesa-dashboard/internal/adapters/primary/http/middleware"
	"github.com/lorrc/armesa-dashboard/internal/adapters/primary/websocket"
	"github.com/lorrc/armesa-dashboard/internal/adapters/secondary/armesa"
	"github.com/lorrc/armesa-dashboard/internal/adapters/secondary/postgres"
	"github.com/lorrc/armesa-dashboard/internal/auth"
	"github.com/lorrc/armesa-dashboard/internal/config"
	"github.com/lorrc/armesa-dashboard/internal/core/services"
	"github.com/lorrc/armesa-dashboard/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)
	logger.Debug("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Database Pool and schema
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connection established")

	if err := runMigrations(cfg); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// 4. Secondary Adapters
	backend, err := armesa.NewClient(armesa.Config{
		BaseURL:      cfg.Backend.BaseURL,
		ServiceToken: cfg.Backend.ServiceToken,
		Timeout:      cfg.Backend.Timeout,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to create backend client", "error", err)
		os.Exit(1)
	}

	sessionRepo := postgres.NewSessionRepository(pool, auth.NewSealer(cfg.Session.SealKey))

	// 5. Live feed: the hub answers browsers, the stream client feeds the hub
	hub := websocket.NewHub(logger)
	liveFeed := services.NewEventStreamClient(backend, hub, logger, services.EventStreamClientConfig{
		ReconnectDelay: cfg.Backend.ReconnectDelay,
	})
	hub.SetFeed(liveFeed)

	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()
	liveFeed.Start(ctx)

	// 6. Core Services
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)
	sessionService := services.NewSessionService(backend, sessionRepo, logger)
	dashboardService := services.NewDashboardService(backend)

	go purgeSessions(ctx, sessionService, cfg.Session.PurgeInterval, logger)

	// 7. Rate Limiters
	var generalRateLimiter, authRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(ctx, mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})

		authRateLimiter = mw.NewRateLimiter(ctx, mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.AuthRPS,
			BurstSize:         cfg.RateLimit.AuthBurst,
			CleanupInterval:   time.Minute,
			TTL:               5 * time.Minute,
		})
	}

	// 8. Primary Adapters
	errorHandler := httpAdapter.NewErrorHandler(logger)
	router := httpAdapter.NewRouter(httpAdapter.RouterDeps{
		Logger:       logger,
		TokenManager: tokenManager,
		Sessions:     sessionService,
		Dashboard:    dashboardService,
		Feed:         liveFeed,
		Health: httpAdapter.NewHealthHandler(
			pool,
			httpAdapter.HealthCheckFunc(backend.Health),
			liveFeed,
			cfg.App.Version,
		),
		WebSocket:      httpAdapter.NewWebSocketHandler(hub, tokenManager, sessionService, cfg, errorHandler, logger),
		CORSOrigins:    cfg.CORS.AllowedOrigins,
		CORSMaxAge:     cfg.CORS.MaxAge,
		GeneralLimiter: generalRateLimiter,
		AuthLimiter:    authRateLimiter,
	})

	// 9. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	liveFeed.Stop()
	<-hubDone

	logger.Info("server shutdown complete")
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func runMigrations(cfg *config.Config) error {
	m, err := migrate.New(cfg.Database.MigrationsPath, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// purgeSessions removes expired sessions until ctx is done.
func purgeSessions(ctx context.Context, sessions *services.SessionService, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sessions.PurgeExpired(ctx); err != nil {
				logger.Warn("session purge failed", "error", err)
			}
		}
	}
}
