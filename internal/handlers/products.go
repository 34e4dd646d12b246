// internal/handlers/products.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// ProductHandler handles catalog requests
type ProductHandler struct {
	responder
	ledger ports.LedgerService
}

// NewProductHandler creates a new product handler
func NewProductHandler(ledger ports.LedgerService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		responder: responder{logger: logger.With(slog.String("handler", "products"))},
		ledger:    ledger,
	}
}

// ProductResponse is a product with its derived figures
type ProductResponse struct {
	domain.Product
	ProfitMargin string             `json:"profit_margin"`
	Status       domain.StockStatus `json:"status"`
}

func newProductResponse(p domain.Product) ProductResponse {
	return ProductResponse{
		Product:      p,
		ProfitMargin: p.ProfitMargin().StringFixed(2),
		Status:       p.Status(),
	}
}

func newProductResponses(products []domain.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, newProductResponse(p))
	}
	return out
}

// RestockRequest is the body of a restock request
type RestockRequest struct {
	Quantity int `json:"quantity"`
}

// ListProducts handles GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		h.handleError(w, r, err, "list products")
		return
	}

	products, err := h.ledger.SearchProducts(r.Context(), filter)
	if err != nil {
		h.handleError(w, r, err, "list products")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"products": newProductResponses(products),
		"count":    len(products),
	})
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.handleError(w, r, err, "get product")
		return
	}

	p, err := h.ledger.GetProduct(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err, "get product")
		return
	}

	h.respondJSON(w, http.StatusOK, newProductResponse(*p))
}

// CreateProduct handles POST /api/v1/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.NewProduct
	if err := decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err, "create product")
		return
	}

	p, err := h.ledger.AddProduct(ctx, req)
	if err != nil {
		h.handleError(w, r, err, "create product")
		return
	}

	h.logger.InfoContext(ctx, "product created",
		slog.Int64("product_id", p.ID),
		slog.String("name", p.Name))

	h.respondJSON(w, http.StatusCreated, newProductResponse(*p))
}

// UpdateProduct handles PATCH /api/v1/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.handleError(w, r, err, "update product")
		return
	}

	var req domain.ProductUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err, "update product")
		return
	}

	p, err := h.ledger.UpdateProduct(r.Context(), id, req)
	if err != nil {
		h.handleError(w, r, err, "update product")
		return
	}

	h.respondJSON(w, http.StatusOK, newProductResponse(*p))
}

// DeleteProduct handles DELETE /api/v1/products/{id}. The product is only
// removed once the returned confirmation is executed.
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.handleError(w, r, err, "delete product")
		return
	}

	c, err := h.ledger.RequestProductDeletion(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err, "delete product")
		return
	}

	h.respondJSON(w, http.StatusAccepted, c)
}

// RestockProduct handles POST /api/v1/products/{id}/restock
func (h *ProductHandler) RestockProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.handleError(w, r, err, "restock product")
		return
	}

	var req RestockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err, "restock product")
		return
	}

	c, err := h.ledger.RequestRestock(r.Context(), id, req.Quantity)
	if err != nil {
		h.handleError(w, r, err, "restock product")
		return
	}

	h.respondJSON(w, http.StatusAccepted, c)
}

// Confirm handles POST /api/v1/confirmations/{token}
func (h *ProductHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.ledger.Confirm(ctx, r.PathValue("token"))
	if err != nil {
		h.handleError(w, r, err, "confirm action")
		return
	}

	h.logger.InfoContext(ctx, "action confirmed",
		slog.String("action", string(result.Action)),
		slog.Int64("target_id", result.TargetID))

	h.respondJSON(w, http.StatusOK, result)
}

func parseProductFilter(r *http.Request) (domain.ProductFilter, error) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Query:     q.Get("q"),
		Category:  q.Get("category"),
		Status:    domain.StockStatus(q.Get("status")),
		SortBy:    domain.ProductSort(q.Get("sort")),
		SortOrder: q.Get("order"),
	}

	if filter.Status != "" && !domain.IsValidStockStatus(filter.Status) {
		return filter, domain.NewValidationError("status", "is not a known stock status")
	}
	switch filter.SortBy {
	case "", domain.SortByName, domain.SortByStock, domain.SortByMargin, domain.SortByPrice:
	default:
		return filter, domain.NewValidationError("sort", "must be name, stock, margin or price")
	}
	if filter.SortOrder != "" && filter.SortOrder != "asc" && filter.SortOrder != "desc" {
		return filter, domain.NewValidationError("order", "must be asc or desc")
	}
	return filter, nil
}
