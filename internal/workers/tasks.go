// internal/workers/tasks.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/pos-ledger/internal/core/ports"
)

const (
	TypeSyncOffline    = "ledger:sync_offline"
	TypeExportArchive  = "export:archive"
	TypeImportCatalog  = "import:catalog"
	TypeImportDelivery = "import:delivery_note"
	TypeCleanupUploads = "cleanup:uploads"
)

// Queue names, weighted by the worker configuration
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// SyncPayload is the payload of a sync task
type SyncPayload struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// ExportArchivePayload names the export to render and archive
type ExportArchivePayload struct {
	Kind   string `json:"kind"`
	Format string `json:"format"`
}

// ImportPayload points at an uploaded file awaiting import
type ImportPayload struct {
	FilePath string `json:"file_path"`
}

// Enqueuer is the part of *asynq.Client used to submit tasks
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskEnqueuer submits ledger background jobs through asynq
type TaskEnqueuer struct {
	client   Enqueuer
	maxRetry int
	logger   *slog.Logger
}

var _ ports.TaskEnqueuer = (*TaskEnqueuer)(nil)

// NewTaskEnqueuer creates an enqueuer; maxRetry <= 0 keeps the asynq default
func NewTaskEnqueuer(client Enqueuer, maxRetry int, logger *slog.Logger) *TaskEnqueuer {
	return &TaskEnqueuer{
		client:   client,
		maxRetry: maxRetry,
		logger:   logger.With(slog.String("component", "task_enqueuer")),
	}
}

// NewSyncTask builds an offline sync task
func NewSyncTask(requestedBy string) (*asynq.Task, error) {
	return newTask(TypeSyncOffline, SyncPayload{RequestedBy: requestedBy})
}

// NewExportArchiveTask builds an export archive task
func NewExportArchiveTask(kind, format string) (*asynq.Task, error) {
	return newTask(TypeExportArchive, ExportArchivePayload{Kind: kind, Format: format})
}

// NewImportTask builds a catalog or delivery note import task
func NewImportTask(taskType, filePath string) (*asynq.Task, error) {
	return newTask(taskType, ImportPayload{FilePath: filePath})
}

func newTask(taskType string, payload interface{}) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, b), nil
}

// EnqueueSync queues an offline sync. A sync already waiting in the queue
// absorbs later requests, which then return an empty id.
func (e *TaskEnqueuer) EnqueueSync(ctx context.Context) (string, error) {
	task, err := NewSyncTask("")
	if err != nil {
		return "", err
	}
	return e.enqueue(ctx, task,
		asynq.Queue(QueueCritical),
		asynq.Unique(30*time.Second),
		asynq.Timeout(time.Minute))
}

// EnqueueExportArchive queues rendering and archiving an export
func (e *TaskEnqueuer) EnqueueExportArchive(ctx context.Context, kind, format string) (string, error) {
	task, err := NewExportArchiveTask(kind, format)
	if err != nil {
		return "", err
	}
	return e.enqueue(ctx, task,
		asynq.Queue(QueueLow),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour))
}

// EnqueueCatalogImport queues importing an uploaded catalog workbook.
// Imports are not idempotent and never retried.
func (e *TaskEnqueuer) EnqueueCatalogImport(ctx context.Context, filePath string) (string, error) {
	task, err := NewImportTask(TypeImportCatalog, filePath)
	if err != nil {
		return "", err
	}
	return e.enqueue(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour))
}

// EnqueueDeliveryNote queues applying an uploaded delivery note
func (e *TaskEnqueuer) EnqueueDeliveryNote(ctx context.Context, filePath string) (string, error) {
	task, err := NewImportTask(TypeImportDelivery, filePath)
	if err != nil {
		return "", err
	}
	return e.enqueue(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour))
}

func (e *TaskEnqueuer) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (string, error) {
	if e.maxRetry > 0 {
		// task specific options come later and win
		opts = append([]asynq.Option{asynq.MaxRetry(e.maxRetry)}, opts...)
	}

	info, err := e.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		e.logger.InfoContext(ctx, "task already queued", slog.String("type", task.Type()))
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}

	e.logger.InfoContext(ctx, "task enqueued",
		slog.String("type", task.Type()),
		slog.String("task_id", info.ID),
		slog.String("queue", info.Queue))
	return info.ID, nil
}

func decodePayload(t *asynq.Task, dest interface{}) error {
	if err := json.Unmarshal(t.Payload(), dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}
