// internal/core/ports/ledger_service.go
package ports

import (
	"context"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

// LedgerService is the application port for products, sales and the offline queue.
type LedgerService interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SearchProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	AddProduct(ctx context.Context, p domain.NewProduct) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, update domain.ProductUpdate) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) (bool, error)
	RestockProduct(ctx context.Context, id int64, quantity int) (*domain.Product, error)

	RecordSale(ctx context.Context, req domain.SaleRequest) (*domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
	ListPendingOfflineSales(ctx context.Context) ([]domain.Sale, error)
	SyncPendingOfflineSales(ctx context.Context) (int, error)
	DeleteSale(ctx context.Context, id int64) (bool, error)

	RequestProductDeletion(ctx context.Context, id int64) (*domain.Confirmation, error)
	RequestSaleDeletion(ctx context.Context, id int64) (*domain.Confirmation, error)
	RequestRestock(ctx context.Context, id int64, quantity int) (*domain.Confirmation, error)
	Confirm(ctx context.Context, token string) (*domain.ConfirmationResult, error)
}

// AnalyticsService computes read-only dashboard figures.
type AnalyticsService interface {
	Dashboard(ctx context.Context) (*domain.DashboardStats, error)
	Monthly(ctx context.Context, year, month int) (*domain.MonthlyStats, error)
	Sales(ctx context.Context, r domain.TimeRange) (*domain.SalesAnalytics, error)
}
