// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	redis_a "github.com/ammerola/pos-ledger/internal/adapters/redis_adapter"
	"github.com/ammerola/pos-ledger/internal/app"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/core/services"
	"github.com/ammerola/pos-ledger/internal/handlers"
	"github.com/ammerola/pos-ledger/internal/pkg/config"
	"github.com/ammerola/pos-ledger/internal/pkg/logger"
	"github.com/ammerola/pos-ledger/internal/workers"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	slogger := logger.SetupLogger("debug", "json")

	slogger.Info("starting pos ledger api",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Reconfigure logger with loaded settings
	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("store_driver", cfg.Store.Driver),
		slog.Bool("background_jobs", cfg.Asynq.Enabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := initializeDependencies(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.cleanup(slogger)

	server := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        handlers.NewRouter(ctx, deps.router),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(slogger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			server.Close()
		}
		slogger.Info("server shutdown complete")
	}
}

// dependencies holds everything the router needs plus what must be closed
type dependencies struct {
	router      handlers.Dependencies
	backend     *app.Backend
	redisClient *redis.Client
	asynqClient *asynq.Client
	inspector   *asynq.Inspector
}

func (d *dependencies) cleanup(l *slog.Logger) {
	if d.asynqClient != nil {
		if err := d.asynqClient.Close(); err != nil {
			l.Error("failed to close Asynq client", slog.String("error", err.Error()))
		}
	}
	if d.inspector != nil {
		d.inspector.Close()
	}
	if d.backend != nil {
		if err := d.backend.Close(); err != nil {
			l.Error("failed to close ledger store", slog.String("error", err.Error()))
		}
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, log *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	// Redis backs the shared stores, the analytics cache and the task queue
	if app.NeedsRedis(cfg) || cfg.Asynq.Enabled {
		client, err := app.ConnectRedis(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		deps.redisClient = client
	}

	var rdb redis.UniversalClient
	if deps.redisClient != nil {
		rdb = deps.redisClient
	}
	backend, err := app.OpenBackend(ctx, cfg, rdb, log)
	if err != nil {
		deps.cleanup(log)
		return nil, err
	}
	deps.backend = backend

	creds, err := app.Credentials(cfg)
	if err != nil {
		deps.cleanup(log)
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	var ledgerOpts []services.Option
	analyticsOpts := []services.AnalyticsOption{services.WithLowStockThreshold(cfg.Ledger.LowStockThreshold)}
	if deps.redisClient != nil {
		cache := redis_a.NewCache(deps.redisClient, cfg.Redis.TTL, log)
		analyticsOpts = append(analyticsOpts, services.WithAnalyticsCache(cache, cfg.Ledger.AnalyticsCacheTTL))
		ledgerOpts = append(ledgerOpts, services.WithChangeHook(services.InvalidateAnalytics(cache, log)))
	}
	ledger := app.NewLedger(cfg, backend, log, ledgerOpts...)

	healthOpts := []handlers.HealthOption{}
	if backend.Database != nil {
		healthOpts = append(healthOpts, handlers.WithDatabase(backend.Database))
	}
	if deps.redisClient != nil {
		healthOpts = append(healthOpts, handlers.WithRedis(deps.redisClient))
	}

	var tasks ports.TaskEnqueuer
	if cfg.Asynq.Enabled {
		redisOpt := app.AsynqRedisOpt(cfg)
		deps.asynqClient = asynq.NewClient(redisOpt)
		deps.inspector = asynq.NewInspector(redisOpt)
		tasks = workers.NewTaskEnqueuer(deps.asynqClient, cfg.Asynq.RetryMax, log)
		healthOpts = append(healthOpts, handlers.WithInspector(deps.inspector))
	}

	deps.router = handlers.Dependencies{
		Config:    cfg,
		Ledger:    ledger,
		Analytics: services.NewAnalytics(ledger, log, analyticsOpts...),
		Auth: services.NewAuth(backend.Store, creds, log,
			services.WithSessionTTL(cfg.Security.SessionTTL)),
		Tasks:  tasks,
		Health: handlers.NewHealthHandler(backend.Store, cfg, log, healthOpts...),
		Logger: log,
	}

	log.Info("all dependencies initialized successfully")
	return deps, nil
}
