// internal/handlers/dashboard.go
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// DashboardHandler serves the owner's analytics
type DashboardHandler struct {
	responder
	analytics ports.AnalyticsService
	now       func() time.Time
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(analytics ports.AnalyticsService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		responder: responder{logger: logger.With(slog.String("handler", "dashboard"))},
		analytics: analytics,
		now:       time.Now,
	}
}

// GetDashboard handles GET /api/v1/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.Dashboard(r.Context())
	if err != nil {
		h.handleError(w, r, err, "load dashboard")
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

// GetMonthly handles GET /api/v1/dashboard/monthly?year=&month=. Missing
// values default to the current month.
func (h *DashboardHandler) GetMonthly(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	year, err := queryInt(r, "year", now.Year())
	if err != nil {
		h.handleError(w, r, err, "load monthly stats")
		return
	}
	month, err := queryInt(r, "month", int(now.Month()))
	if err != nil {
		h.handleError(w, r, err, "load monthly stats")
		return
	}

	stats, err := h.analytics.Monthly(r.Context(), year, month)
	if err != nil {
		h.handleError(w, r, err, "load monthly stats")
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

// GetAnalytics handles GET /api/v1/dashboard/analytics?range=7days
func (h *DashboardHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	result, err := h.analytics.Sales(r.Context(), domain.ParseTimeRange(r.URL.Query().Get("range")))
	if err != nil {
		h.handleError(w, r, err, "load sales analytics")
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer")
	}
	return n, nil
}
