// internal/export/export.go
package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// Kind names the collection being exported
type Kind string

const (
	KindProducts Kind = "products"
	KindSales    Kind = "sales"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseKind validates a kind name
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindProducts, KindSales:
		return k, nil
	}
	return "", domain.NewValidationError("kind", "must be products or sales")
}

// ParseFormat validates a format name; empty means CSV
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return f, nil
	}
	return "", domain.NewValidationError("format", "must be csv or xlsx")
}

// ContentType returns the MIME type of f
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Headers of the two exports
var (
	ProductHeaders = []string{"ID", "Name", "Category", "Buying Price", "Selling Price", "Stock", "Profit Margin"}
	SaleHeaders    = []string{"Sale ID", "Date", "Employee", "Total", "Profit", "Items"}
)

// SalesOptions filters the sales export
type SalesOptions struct {
	// Month keeps only sales whose date starts with YYYY-MM
	Month          string
	IncludePending bool
}

// Validate checks the month filter
func (o SalesOptions) Validate() error {
	if o.Month == "" {
		return nil
	}
	if _, err := time.Parse("2006-01", o.Month); err != nil {
		return domain.NewValidationError("month", "must be formatted YYYY-MM")
	}
	return nil
}

// SelectSales applies opts to the main log and pending queue
func SelectSales(sales, pending []domain.Sale, opts SalesOptions) []domain.Sale {
	all := make([]domain.Sale, 0, len(sales)+len(pending))
	all = append(all, sales...)
	if opts.IncludePending {
		all = append(all, pending...)
	}
	if opts.Month == "" {
		return all
	}

	out := all[:0]
	for _, s := range all {
		if strings.HasPrefix(saleDate(&s), opts.Month) {
			out = append(out, s)
		}
	}
	return out
}

func productRow(p *domain.Product) []string {
	return []string{
		fmt.Sprint(p.ID),
		p.Name,
		p.Category,
		p.BuyingPrice.StringFixed(2),
		p.SellingPrice.StringFixed(2),
		fmt.Sprint(p.Stock),
		p.ProfitMargin().StringFixed(2) + "%",
	}
}

func saleRow(s *domain.Sale) []string {
	return []string{
		fmt.Sprint(s.ID),
		saleDate(s),
		s.Employee,
		s.Total.StringFixed(2),
		s.TotalProfit.StringFixed(2),
		s.ItemsSummary(),
	}
}

func saleDate(s *domain.Sale) string {
	return s.CreatedAt.Format(time.RFC3339)
}

// Exporter renders ledger collections
type Exporter struct {
	ledger ports.LedgerService
}

// NewExporter creates an exporter reading from ledger
func NewExporter(ledger ports.LedgerService) *Exporter {
	return &Exporter{ledger: ledger}
}

// Export writes kind in format to w
func (e *Exporter) Export(ctx context.Context, w io.Writer, kind Kind, format Format, opts SalesOptions) error {
	switch kind {
	case KindProducts:
		products, err := e.ledger.ListProducts(ctx)
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}
		if format == FormatXLSX {
			return ProductsXLSX(w, products)
		}
		return ProductsCSV(w, products)

	case KindSales:
		if err := opts.Validate(); err != nil {
			return err
		}
		sales, err := e.ledger.ListSales(ctx)
		if err != nil {
			return fmt.Errorf("failed to list sales: %w", err)
		}
		var pending []domain.Sale
		if opts.IncludePending {
			if pending, err = e.ledger.ListPendingOfflineSales(ctx); err != nil {
				return fmt.Errorf("failed to list pending sales: %w", err)
			}
		}
		selected := SelectSales(sales, pending, opts)
		if format == FormatXLSX {
			return SalesXLSX(w, selected)
		}
		return SalesCSV(w, selected)
	}
	return domain.NewValidationError("kind", "must be products or sales")
}

// Filename is the suggested download name for an export made at t
func Filename(kind Kind, format Format, t time.Time) string {
	return fmt.Sprintf("%s_export_%s.%s", kind, t.Format("20060102_150405"), format)
}
