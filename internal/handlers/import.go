// internal/handlers/import.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/importer"
)

// ImportHandler accepts catalog workbooks and delivery notes
type ImportHandler struct {
	responder
	tasks       ports.TaskEnqueuer
	importer    *importer.Importer
	maxFileSize int64
	uploadDir   string
}

// NewImportHandler creates a new import handler. Without a task enqueuer
// uploads are applied inline and the report is returned directly.
func NewImportHandler(ledger ports.LedgerService, tasks ports.TaskEnqueuer, logger *slog.Logger, maxFileSize int64, uploadDir string) *ImportHandler {
	return &ImportHandler{
		responder:   responder{logger: logger.With(slog.String("handler", "import"))},
		tasks:       tasks,
		importer:    importer.New(ledger, logger),
		maxFileSize: maxFileSize,
		uploadDir:   uploadDir,
	}
}

type importKind struct {
	name    string
	ext     string
	enqueue func(ports.TaskEnqueuer, context.Context, string) (string, error)
	apply   func(*importer.Importer, context.Context, string) (*importer.Report, error)
}

var (
	catalogImport = importKind{
		name:    "catalog",
		ext:     ".xlsx",
		enqueue: ports.TaskEnqueuer.EnqueueCatalogImport,
		apply:   (*importer.Importer).ImportCatalog,
	}
	deliveryImport = importKind{
		name:    "delivery note",
		ext:     ".pdf",
		enqueue: ports.TaskEnqueuer.EnqueueDeliveryNote,
		apply:   (*importer.Importer).ApplyDeliveryNote,
	}
)

// ImportCatalog handles POST /api/v1/import/catalog
func (h *ImportHandler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, catalogImport)
}

// ImportDeliveryNote handles POST /api/v1/import/delivery-note
func (h *ImportHandler) ImportDeliveryNote(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, deliveryImport)
}

func (h *ImportHandler) handleUpload(w http.ResponseWriter, r *http.Request, kind importKind) {
	ctx := r.Context()

	if r.ContentLength > h.maxFileSize {
		h.respondError(w, r, http.StatusRequestEntityTooLarge, "file is too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, r, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		h.respondError(w, r, http.StatusBadRequest, "failed to parse form data")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), kind.ext) {
		h.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("%s must be a %s file", kind.name, kind.ext))
		return
	}

	path, err := h.save(file, header.Filename)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to save upload", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "failed to save upload")
		return
	}

	if h.tasks == nil {
		h.applyInline(w, r, kind, path)
		return
	}

	taskID, err := kind.enqueue(h.tasks, ctx, path)
	if err != nil {
		_ = os.Remove(path)
		h.logger.ErrorContext(ctx, "failed to enqueue import", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusServiceUnavailable, "failed to queue import")
		return
	}

	h.logger.InfoContext(ctx, "import queued",
		slog.String("kind", kind.name),
		slog.String("task_id", taskID),
		slog.String("file", header.Filename))

	h.respondJSON(w, http.StatusAccepted, map[string]string{
		"task_id": taskID,
		"status":  "queued",
	})
}

func (h *ImportHandler) applyInline(w http.ResponseWriter, r *http.Request, kind importKind, path string) {
	defer os.Remove(path)

	report, err := kind.apply(h.importer, r.Context(), path)
	if err != nil {
		if report == nil && StatusFor(err) == http.StatusInternalServerError {
			// the file itself could not be parsed
			h.logger.WarnContext(r.Context(), "unreadable upload", slog.String("error", err.Error()))
			h.respondError(w, r, http.StatusBadRequest, "could not read "+kind.name)
			return
		}
		h.handleError(w, r, err, "import "+kind.name)
		return
	}
	h.respondJSON(w, http.StatusOK, report)
}

// save copies the upload into the upload directory under a unique name
func (h *ImportHandler) save(src io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(h.uploadDir, uuid.New().String()+"_"+filepath.Base(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close upload: %w", err)
	}
	return path, nil
}
