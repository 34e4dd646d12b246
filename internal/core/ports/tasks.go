// internal/core/ports/tasks.go
package ports

import "context"

// TaskEnqueuer submits background jobs and returns the queued task id.
type TaskEnqueuer interface {
	EnqueueSync(ctx context.Context) (string, error)
	EnqueueExportArchive(ctx context.Context, kind, format string) (string, error)
	EnqueueCatalogImport(ctx context.Context, filePath string) (string, error)
	EnqueueDeliveryNote(ctx context.Context, filePath string) (string, error)
}
