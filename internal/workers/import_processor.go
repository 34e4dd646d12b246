// internal/workers/import_processor.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/importer"
)

// ImportProcessor applies uploaded catalog workbooks and delivery notes
type ImportProcessor struct {
	importer *importer.Importer
	cache    ports.CacheRepository
	logger   *slog.Logger
}

// NewImportProcessor creates an import processor. cache may be nil.
func NewImportProcessor(ledger ports.LedgerService, cache ports.CacheRepository, logger *slog.Logger) *ImportProcessor {
	return &ImportProcessor{
		importer: importer.New(ledger, logger),
		cache:    cache,
		logger:   logger.With(slog.String("processor", "import")),
	}
}

// ProcessCatalog handles TypeImportCatalog
func (p *ImportProcessor) ProcessCatalog(ctx context.Context, t *asynq.Task) error {
	return p.run(ctx, t, p.importer.ImportCatalog)
}

// ProcessDeliveryNote handles TypeImportDelivery
func (p *ImportProcessor) ProcessDeliveryNote(ctx context.Context, t *asynq.Task) error {
	return p.run(ctx, t, p.importer.ApplyDeliveryNote)
}

// run applies the uploaded file once and always removes it. Imports are not
// idempotent, so failures are never retried.
func (p *ImportProcessor) run(ctx context.Context, t *asynq.Task, apply func(context.Context, string) (*importer.Report, error)) error {
	start := time.Now()

	var payload ImportPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	if payload.FilePath == "" {
		return fmt.Errorf("missing file path: %w", asynq.SkipRetry)
	}
	defer p.removeUpload(ctx, payload.FilePath)

	if _, err := os.Stat(payload.FilePath); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("upload %s no longer exists: %w", payload.FilePath, asynq.SkipRetry)
	}

	p.logger.InfoContext(ctx, "processing import",
		slog.String("type", t.Type()),
		slog.String("file", payload.FilePath))

	report, err := apply(ctx, payload.FilePath)
	if report != nil && report.Applied > 0 {
		invalidateAnalytics(ctx, p.cache, p.logger)
	}
	if err != nil {
		return fmt.Errorf("import failed: %v: %w", err, asynq.SkipRetry)
	}

	writeResult(t, report)

	p.logger.InfoContext(ctx, "import completed",
		slog.String("type", t.Type()),
		slog.Int("applied", report.Applied),
		slog.Int("ignored", report.Ignored),
		slog.Int("rejected", len(report.Rejected)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (p *ImportProcessor) removeUpload(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.logger.WarnContext(ctx, "failed to remove upload",
			slog.String("file", path),
			slog.String("error", err.Error()))
	}
}
