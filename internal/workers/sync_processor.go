// internal/workers/sync_processor.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/core/services"
)

// SyncProcessor drains the offline sale queue into the sale log
type SyncProcessor struct {
	ledger ports.LedgerService
	cache  ports.CacheRepository
	logger *slog.Logger
}

// NewSyncProcessor creates a sync processor. cache may be nil.
func NewSyncProcessor(ledger ports.LedgerService, cache ports.CacheRepository, logger *slog.Logger) *SyncProcessor {
	return &SyncProcessor{
		ledger: ledger,
		cache:  cache,
		logger: logger.With(slog.String("processor", "sync")),
	}
}

// ProcessSync handles TypeSyncOffline
func (p *SyncProcessor) ProcessSync(ctx context.Context, t *asynq.Task) error {
	var payload SyncPayload
	if len(t.Payload()) > 0 {
		if err := decodePayload(t, &payload); err != nil {
			return err
		}
	}

	synced, err := p.ledger.SyncPendingOfflineSales(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync offline sales: %w", err)
	}

	if synced > 0 {
		invalidateAnalytics(ctx, p.cache, p.logger)
	}

	writeResult(t, map[string]int{"synced": synced})

	p.logger.InfoContext(ctx, "offline sales synced",
		slog.Int("synced", synced),
		slog.String("requested_by", payload.RequestedBy))
	return nil
}

// invalidateAnalytics drops cached dashboard figures after the ledger changed
func invalidateAnalytics(ctx context.Context, cache ports.CacheRepository, logger *slog.Logger) {
	if cache == nil {
		return
	}
	services.InvalidateAnalytics(cache, logger)(ctx)
}

// writeResult stores a task result when the task carries a result writer
func writeResult(t *asynq.Task, result interface{}) {
	w := t.ResultWriter()
	if w == nil {
		return
	}
	if b, err := json.Marshal(result); err == nil {
		_, _ = w.Write(b)
	}
}
