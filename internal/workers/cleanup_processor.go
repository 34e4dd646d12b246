// internal/workers/cleanup_processor.go
package workers

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// CleanupProcessor removes uploads left behind by interrupted imports
type CleanupProcessor struct {
	uploadDir string
	maxAge    time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewCleanupProcessor creates a cleanup processor for uploadDir
func NewCleanupProcessor(uploadDir string, maxAge time.Duration, logger *slog.Logger) *CleanupProcessor {
	return &CleanupProcessor{
		uploadDir: uploadDir,
		maxAge:    maxAge,
		now:       time.Now,
		logger:    logger.With(slog.String("processor", "cleanup")),
	}
}

// CleanupUploads handles TypeCleanupUploads
func (p *CleanupProcessor) CleanupUploads(ctx context.Context, _ *asynq.Task) error {
	var deleted int
	err := filepath.WalkDir(p.uploadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.uploadDir && os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if path != p.uploadDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !isUpload(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if p.now().Sub(info.ModTime()) <= p.maxAge {
			return nil
		}

		if err := os.Remove(path); err != nil {
			p.logger.WarnContext(ctx, "failed to delete upload",
				slog.String("file", path),
				slog.String("error", err.Error()))
			return nil
		}
		deleted++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk upload directory: %w", err)
	}

	p.logger.InfoContext(ctx, "uploads cleaned up", slog.Int("files_deleted", deleted))
	return nil
}

// isUpload matches the "<uuid>_<original name>" files written by the import handler
func isUpload(name string) bool {
	if len(name) < 38 || name[36] != '_' {
		return false
	}
	_, err := uuid.Parse(name[:36])
	return err == nil
}
