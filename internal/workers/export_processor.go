// internal/workers/export_processor.go
package workers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/pos-ledger/internal/adapters/storage"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/export"
)

// ExportProcessor renders exports and uploads them to archive storage
type ExportProcessor struct {
	exporter *export.Exporter
	storage  ports.StorageClient
	now      func() time.Time
	logger   *slog.Logger
}

// NewExportProcessor creates an export processor
func NewExportProcessor(ledger ports.LedgerService, storage ports.StorageClient, logger *slog.Logger) *ExportProcessor {
	return &ExportProcessor{
		exporter: export.NewExporter(ledger),
		storage:  storage,
		now:      time.Now,
		logger:   logger.With(slog.String("processor", "export")),
	}
}

// ArchiveResult is the stored result of an export archive task
type ArchiveResult struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	Bytes    int    `json:"bytes"`
}

// ProcessArchive handles TypeExportArchive. Archived sales exports include
// the pending offline queue.
func (p *ExportProcessor) ProcessArchive(ctx context.Context, t *asynq.Task) error {
	var payload ExportArchivePayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	kind, err := export.ParseKind(payload.Kind)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	format, err := export.ParseFormat(payload.Format)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	var buf bytes.Buffer
	if err := p.exporter.Export(ctx, &buf, kind, format, export.SalesOptions{IncludePending: true}); err != nil {
		return fmt.Errorf("failed to render %s export: %w", kind, err)
	}
	size := buf.Len()

	key := storage.ArchiveKey(string(kind), string(format), p.now())
	location, err := p.storage.Upload(ctx, key, &buf, format.ContentType())
	if err != nil {
		return fmt.Errorf("failed to upload export: %w", err)
	}

	writeResult(t, ArchiveResult{Key: key, Location: location, Bytes: size})

	p.logger.InfoContext(ctx, "export archived",
		slog.String("kind", string(kind)),
		slog.String("format", string(format)),
		slog.String("key", key),
		slog.Int("bytes", size))
	return nil
}
