// internal/handlers/export.go
package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/export"
)

// ExportHandler serves CSV and XLSX downloads and queues archive exports
type ExportHandler struct {
	responder
	exporter *export.Exporter
	tasks    ports.TaskEnqueuer
	now      func() time.Time
}

// NewExportHandler creates a new export handler. tasks may be nil, which
// disables archive exports.
func NewExportHandler(ledger ports.LedgerService, tasks ports.TaskEnqueuer, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		responder: responder{logger: logger.With(slog.String("handler", "export"))},
		exporter:  export.NewExporter(ledger),
		tasks:     tasks,
		now:       time.Now,
	}
}

// ArchiveRequest is the body of POST /api/v1/export/archive
type ArchiveRequest struct {
	Kind   string `json:"kind"`
	Format string `json:"format"`
}

// Download handles GET /api/v1/export/{file}, where file is
// products.csv, sales.csv, products.xlsx or sales.xlsx.
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, ext, ok := strings.Cut(r.PathValue("file"), ".")
	if !ok {
		h.respondError(w, r, http.StatusNotFound, "unknown export")
		return
	}
	kind, err := export.ParseKind(name)
	if err != nil {
		h.respondError(w, r, http.StatusNotFound, "unknown export")
		return
	}
	format, err := export.ParseFormat(ext)
	if err != nil {
		h.respondError(w, r, http.StatusNotFound, "unknown export format")
		return
	}

	opts := export.SalesOptions{
		Month:          r.URL.Query().Get("month"),
		IncludePending: queryBool(r, "include_pending"),
	}

	// render fully before writing so failures still get an error status
	var buf bytes.Buffer
	if err := h.exporter.Export(ctx, &buf, kind, format, opts); err != nil {
		h.handleError(w, r, err, "export")
		return
	}

	filename := export.Filename(kind, format, h.now())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)

	if _, err := buf.WriteTo(w); err != nil {
		h.logger.ErrorContext(ctx, "failed to write export", slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(ctx, "export completed",
		slog.String("kind", string(kind)),
		slog.String("format", string(format)),
		slog.String("filename", filename))
}

// Archive handles POST /api/v1/export/archive
func (h *ExportHandler) Archive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tasks == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, "background worker is not configured")
		return
	}

	var req ArchiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err, "archive export")
		return
	}
	kind, err := export.ParseKind(req.Kind)
	if err != nil {
		h.handleError(w, r, err, "archive export")
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		h.handleError(w, r, err, "archive export")
		return
	}

	taskID, err := h.tasks.EnqueueExportArchive(ctx, string(kind), string(format))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to enqueue archive export", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusServiceUnavailable, "failed to queue export")
		return
	}

	h.respondJSON(w, http.StatusAccepted, map[string]string{
		"task_id": taskID,
		"kind":    string(kind),
		"format":  string(format),
	})
}

