// internal/handlers/sales.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/handlers/middleware"
)

// SaleHandler handles checkout and the offline sale queue
type SaleHandler struct {
	responder
	ledger ports.LedgerService
	tasks  ports.TaskEnqueuer
}

// NewSaleHandler creates a new sale handler. tasks may be nil when no
// worker is configured; sync then always runs inline.
func NewSaleHandler(ledger ports.LedgerService, tasks ports.TaskEnqueuer, logger *slog.Logger) *SaleHandler {
	return &SaleHandler{
		responder: responder{logger: logger.With(slog.String("handler", "sales"))},
		ledger:    ledger,
		tasks:     tasks,
	}
}

// CheckoutRequest is the body of POST /api/v1/sales
type CheckoutRequest struct {
	Items         []domain.CartItem    `json:"items"`
	AmountPaid    decimal.Decimal      `json:"amount_paid"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	Online        *bool                `json:"online,omitempty"`
}

// ListSales handles GET /api/v1/sales
func (h *SaleHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.ledger.ListSales(r.Context())
	if err != nil {
		h.handleError(w, r, err, "list sales")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"sales": sales, "count": len(sales)})
}

// ListPending handles GET /api/v1/sales/pending
func (h *SaleHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	sales, err := h.ledger.ListPendingOfflineSales(r.Context())
	if err != nil {
		h.handleError(w, r, err, "list pending sales")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"sales": sales, "count": len(sales)})
}

// RecordSale handles POST /api/v1/sales. The employee is the session user;
// a missing online flag means the terminal is online.
func (h *SaleHandler) RecordSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err, "record sale")
		return
	}

	sale := domain.SaleRequest{
		Items:         req.Items,
		AmountPaid:    req.AmountPaid,
		PaymentMethod: req.PaymentMethod,
		Online:        req.Online == nil || *req.Online,
	}
	if session, ok := middleware.SessionFrom(ctx); ok {
		sale.Employee = session.Name
	}

	recorded, err := h.ledger.RecordSale(ctx, sale)
	if err != nil {
		h.handleError(w, r, err, "record sale")
		return
	}

	h.logger.InfoContext(ctx, "sale recorded",
		slog.Int64("sale_id", recorded.ID),
		slog.String("total", recorded.Total.StringFixed(2)),
		slog.Bool("offline", recorded.IsOffline))

	h.respondJSON(w, http.StatusCreated, recorded)
}

// DeleteSale handles DELETE /api/v1/sales/{id}
func (h *SaleHandler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.handleError(w, r, err, "delete sale")
		return
	}

	c, err := h.ledger.RequestSaleDeletion(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err, "delete sale")
		return
	}

	h.respondJSON(w, http.StatusAccepted, c)
}

// SyncPending handles POST /api/v1/sales/pending/sync. With ?async=true the
// sync is handed to the worker.
func (h *SaleHandler) SyncPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if queryBool(r, "async") && h.tasks != nil {
		taskID, err := h.tasks.EnqueueSync(ctx)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to enqueue sync", slog.String("error", err.Error()))
			h.respondError(w, r, http.StatusServiceUnavailable, "failed to queue sync")
			return
		}
		h.respondJSON(w, http.StatusAccepted, map[string]interface{}{
			"task_id": taskID,
			"queued":  taskID != "",
		})
		return
	}

	synced, err := h.ledger.SyncPendingOfflineSales(ctx)
	if err != nil {
		h.handleError(w, r, err, "sync offline sales")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]int{"synced": synced})
}
