// cmd/worker/main.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	redis_a "github.com/ammerola/pos-ledger/internal/adapters/redis_adapter"
	"github.com/ammerola/pos-ledger/internal/app"
	"github.com/ammerola/pos-ledger/internal/core/services"
	"github.com/ammerola/pos-ledger/internal/pkg/config"
	"github.com/ammerola/pos-ledger/internal/pkg/logger"
	"github.com/ammerola/pos-ledger/internal/workers"
)

func main() {
	slogger := logger.SetupLogger("info", "json")

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slogger.Info("starting worker",
		slog.String("environment", cfg.App.Environment),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("redis_addr", cfg.Asynq.RedisAddr))

	if err := run(cfg, slogger); err != nil {
		slogger.Error("worker failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slogger.Info("worker shutdown complete")
}

func run(cfg *config.Config, log *slog.Logger) error {
	if err := app.CheckWorkerStore(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := app.ConnectRedis(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rdb.Close()

	backend, err := app.OpenBackend(ctx, cfg, rdb, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	archive, err := app.NewArchiveStorage(ctx, cfg, log)
	if err != nil {
		return err
	}

	cache := redis_a.NewCache(rdb, cfg.Redis.TTL, log)
	ledger := app.NewLedger(cfg, backend, log, services.WithChangeHook(services.InvalidateAnalytics(cache, log)))

	mux := workers.NewServeMux(workers.Processors{
		Sync:    workers.NewSyncProcessor(ledger, cache, log),
		Export:  workers.NewExportProcessor(ledger, archive, log),
		Import:  workers.NewImportProcessor(ledger, cache, log),
		Cleanup: workers.NewCleanupProcessor(cfg.FileProcessing.TempDir, cfg.FileProcessing.UploadMaxAge, log),
	}, log)
	if timeout := cfg.FileProcessing.ProcessingTimeout; timeout > 0 {
		mux.Use(taskTimeout(timeout))
	}

	redisOpt := app.AsynqRedisOpt(cfg)
	srv := workers.NewServer(redisOpt, cfg.Asynq, log)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   workers.NewAsynqLogger(log),
		Location: time.Local,
	})
	if err := workers.RegisterSchedules(scheduler, cfg.Asynq); err != nil {
		return err
	}

	errs := make(chan error, 2)
	go func() { errs <- srv.Run(mux) }()
	go func() { errs <- scheduler.Run() }()

	log.Info("worker started successfully",
		slog.Int("concurrency", cfg.Asynq.Concurrency),
		slog.Any("queues", cfg.Asynq.Queues),
		slog.Duration("sync_interval", cfg.Asynq.SyncInterval))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errs:
		if err != nil {
			log.Error("worker component stopped", slog.String("error", err.Error()))
		}
	}

	scheduler.Shutdown()
	srv.Shutdown()
	return nil
}

// taskTimeout bounds how long a single task may run
func taskTimeout(d time.Duration) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.ProcessTask(ctx, t)
		})
	}
}
