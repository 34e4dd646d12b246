// internal/handlers/routes.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/handlers/middleware"
	"github.com/ammerola/pos-ledger/internal/pkg/config"
)

// Dependencies are the services behind the HTTP API. Tasks may be nil.
type Dependencies struct {
	Config    *config.Config
	Ledger    ports.LedgerService
	Analytics ports.AnalyticsService
	Auth      ports.AuthService
	Tasks     ports.TaskEnqueuer
	Health    *HealthHandler
	Logger    *slog.Logger
}

// NewRouter registers every route and wraps the mux in the middleware chain.
// ctx bounds background middleware work such as limiter cleanup.
func NewRouter(ctx context.Context, d Dependencies) http.Handler {
	cfg := d.Config
	mux := http.NewServeMux()

	products := NewProductHandler(d.Ledger, d.Logger)
	sales := NewSaleHandler(d.Ledger, d.Tasks, d.Logger)
	exports := NewExportHandler(d.Ledger, d.Tasks, d.Logger)
	imports := NewImportHandler(d.Ledger, d.Tasks, d.Logger,
		int64(max(cfg.Server.MaxUploadMB, 1))<<20, cfg.FileProcessing.TempDir)
	dashboard := NewDashboardHandler(d.Analytics, d.Logger)
	auth := NewAuthHandler(d.Auth, d.Logger)

	session := middleware.RequireSession(d.Auth)
	owner := middleware.RequireRole(domain.RoleOwner)

	authed := func(h http.HandlerFunc) http.Handler { return session(h) }
	ownerOnly := func(h http.HandlerFunc) http.Handler { return session(owner(h)) }

	if d.Health != nil {
		mux.HandleFunc("GET /health", d.Health.Health)
		mux.HandleFunc("GET /ready", d.Health.Readiness)
	}

	mux.HandleFunc("POST /api/v1/auth/login", auth.Login)
	mux.Handle("GET /api/v1/auth/me", authed(auth.Me))
	mux.Handle("POST /api/v1/auth/logout", authed(auth.Logout))

	mux.Handle("GET /api/v1/products", authed(products.ListProducts))
	mux.Handle("POST /api/v1/products", ownerOnly(products.CreateProduct))
	mux.Handle("GET /api/v1/products/{id}", authed(products.GetProduct))
	mux.Handle("PATCH /api/v1/products/{id}", ownerOnly(products.UpdateProduct))
	mux.Handle("DELETE /api/v1/products/{id}", ownerOnly(products.DeleteProduct))
	mux.Handle("POST /api/v1/products/{id}/restock", ownerOnly(products.RestockProduct))
	mux.Handle("POST /api/v1/confirmations/{token}", ownerOnly(products.Confirm))

	mux.Handle("GET /api/v1/sales", authed(sales.ListSales))
	mux.Handle("POST /api/v1/sales", authed(sales.RecordSale))
	mux.Handle("DELETE /api/v1/sales/{id}", ownerOnly(sales.DeleteSale))
	mux.Handle("GET /api/v1/sales/pending", authed(sales.ListPending))
	mux.Handle("POST /api/v1/sales/pending/sync", authed(sales.SyncPending))

	mux.Handle("GET /api/v1/export/{file}", ownerOnly(exports.Download))
	mux.Handle("POST /api/v1/export/archive", ownerOnly(exports.Archive))

	mux.Handle("POST /api/v1/import/catalog", ownerOnly(imports.ImportCatalog))
	mux.Handle("POST /api/v1/import/delivery-note", ownerOnly(imports.ImportDeliveryNote))

	mux.Handle("GET /api/v1/dashboard", ownerOnly(dashboard.GetDashboard))
	mux.Handle("GET /api/v1/dashboard/monthly", ownerOnly(dashboard.GetMonthly))
	mux.Handle("GET /api/v1/dashboard/analytics", ownerOnly(dashboard.GetAnalytics))

	chain := []func(http.Handler) http.Handler{
		middleware.RequestID(cfg.Security.RequestIDHeader),
		middleware.Logger(d.Logger),
		middleware.Recovery(d.Logger),
	}
	if cfg.Security.RateLimitRequests > 0 {
		chain = append(chain, middleware.RateLimit(ctx, cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration))
	}
	chain = append(chain, middleware.CORS(cfg.Security.AllowedOrigins))
	if cfg.Security.SecureHeaders {
		chain = append(chain, middleware.SecureHeaders)
	}

	return middleware.Chain(mux, chain...)
}
