// internal/workers/server.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/pos-ledger/internal/pkg/config"
	"github.com/ammerola/pos-ledger/internal/pkg/logger"
)

// Processors are the task handlers served by the worker
type Processors struct {
	Sync    *SyncProcessor
	Export  *ExportProcessor
	Import  *ImportProcessor
	Cleanup *CleanupProcessor
}

// NewServer creates the asynq server from the worker configuration
func NewServer(redisOpt asynq.RedisConnOpt, cfg config.AsynqConfig, log *slog.Logger) *asynq.Server {
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          cfg.Queues,
		StrictPriority:  cfg.StrictPriority,
		ErrorHandler:    asynq.ErrorHandlerFunc(newErrorHandler(log)),
		RetryDelayFunc:  ExponentialBackoff,
		ShutdownTimeout: cfg.ShutdownTimeout,
		HealthCheckFunc: func(err error) {
			if err != nil {
				log.Error("worker health check failed", slog.String("error", err.Error()))
			}
		},
		Logger: NewAsynqLogger(log),
	})
}

// NewServeMux routes every task type to its processor
func NewServeMux(p Processors, log *slog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(taskContext(log))

	mux.HandleFunc(TypeSyncOffline, p.Sync.ProcessSync)
	mux.HandleFunc(TypeExportArchive, p.Export.ProcessArchive)
	mux.HandleFunc(TypeImportCatalog, p.Import.ProcessCatalog)
	mux.HandleFunc(TypeImportDelivery, p.Import.ProcessDeliveryNote)
	if p.Cleanup != nil {
		mux.HandleFunc(TypeCleanupUploads, p.Cleanup.CleanupUploads)
	}
	return mux
}

// RegisterSchedules adds the periodic sync and upload cleanup
func RegisterSchedules(scheduler *asynq.Scheduler, cfg config.AsynqConfig) error {
	if cfg.SyncInterval > 0 {
		task, err := NewSyncTask("scheduler")
		if err != nil {
			return err
		}
		every := fmt.Sprintf("@every %s", cfg.SyncInterval)
		if _, err := scheduler.Register(every, task, asynq.Queue(QueueCritical), asynq.Unique(cfg.SyncInterval)); err != nil {
			return fmt.Errorf("failed to schedule sync: %w", err)
		}
	}

	if _, err := scheduler.Register("@hourly", asynq.NewTask(TypeCleanupUploads, nil), asynq.Queue(QueueLow)); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}
	return nil
}

// taskContext tags the context with the task id for log correlation
func taskContext(log *slog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			if id, ok := asynq.GetTaskID(ctx); ok {
				ctx = logger.WithValue(ctx, logger.ContextKeyTaskID, id)
			}
			start := time.Now()
			err := next.ProcessTask(ctx, t)
			log.DebugContext(ctx, "task processed",
				slog.String("type", t.Type()),
				slog.Duration("duration", time.Since(start)),
				slog.Bool("ok", err == nil))
			return err
		})
	}
}

func newErrorHandler(log *slog.Logger) func(ctx context.Context, task *asynq.Task, err error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		log.ErrorContext(ctx, "task processing failed",
			slog.String("type", task.Type()),
			slog.Int("retried", retried),
			slog.Int("max_retry", maxRetry),
			slog.String("error", err.Error()))
	}
}

// ExponentialBackoff doubles the retry delay from one second up to ten minutes
func ExponentialBackoff(n int, _ error, _ *asynq.Task) time.Duration {
	const (
		baseDelay = time.Second
		maxDelay  = 10 * time.Minute
	)
	if n < 0 {
		n = 0
	}
	if n > 20 {
		return maxDelay
	}
	delay := baseDelay * time.Duration(1<<uint(n))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// AsynqLogger adapts slog for Asynq
type AsynqLogger struct {
	logger *slog.Logger
}

// NewAsynqLogger creates the asynq logger adapter
func NewAsynqLogger(log *slog.Logger) *AsynqLogger {
	return &AsynqLogger{logger: log.With(slog.String("component", "asynq"))}
}

func (l *AsynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *AsynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l *AsynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *AsynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }

func (l *AsynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
