// internal/importer/importer.go
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// RowError describes an input line that was not applied
type RowError struct {
	Row    int    `json:"row"`
	Input  string `json:"input,omitempty"`
	Reason string `json:"reason"`
}

// Report summarises an import
type Report struct {
	Applied  int        `json:"applied"`
	Ignored  int        `json:"ignored"`
	Rejected []RowError `json:"rejected,omitempty"`
}

// Importer applies parsed catalog and delivery files through the ledger
type Importer struct {
	ledger ports.LedgerService
	logger *slog.Logger
}

// New creates an importer
func New(ledger ports.LedgerService, logger *slog.Logger) *Importer {
	return &Importer{
		ledger: ledger,
		logger: logger.With(slog.String("component", "importer")),
	}
}

// ImportCatalog adds every valid row of the workbook at path as a new product.
// Invalid rows are reported; a persistence failure aborts the import.
func (i *Importer) ImportCatalog(ctx context.Context, path string) (*Report, error) {
	rows, rejected, err := ParseCatalogFile(path)
	if err != nil {
		return nil, err
	}
	return i.applyCatalog(ctx, rows, rejected)
}

// ImportCatalogBytes is ImportCatalog for an in-memory workbook
func (i *Importer) ImportCatalogBytes(ctx context.Context, data []byte) (*Report, error) {
	rows, rejected, err := ParseCatalog(data)
	if err != nil {
		return nil, err
	}
	return i.applyCatalog(ctx, rows, rejected)
}

func (i *Importer) applyCatalog(ctx context.Context, rows []CatalogRow, rejected []RowError) (*Report, error) {
	report := &Report{Rejected: rejected}

	for _, row := range rows {
		if _, err := i.ledger.AddProduct(ctx, row.Product); err != nil {
			if domain.IsClientError(err) {
				report.Rejected = append(report.Rejected, RowError{Row: row.Row, Input: row.Product.Name, Reason: err.Error()})
				continue
			}
			return report, fmt.Errorf("failed to add row %d: %w", row.Row, err)
		}
		report.Applied++
	}

	i.logger.InfoContext(ctx, "catalog imported",
		slog.Int("applied", report.Applied),
		slog.Int("rejected", len(report.Rejected)))
	return report, nil
}

// ApplyDeliveryNote restocks products from the delivery note PDF at path
func (i *Importer) ApplyDeliveryNote(ctx context.Context, path string) (*Report, error) {
	lines, err := ExtractPDFLines(ctx, path, i.logger)
	if err != nil {
		return nil, err
	}
	return i.ApplyDeliveryLines(ctx, lines)
}

// ApplyDeliveryLines restocks products named by lines. Lines that are not
// "<name> x <qty>" entries are ignored; entries naming an unknown product are
// rejected.
func (i *Importer) ApplyDeliveryLines(ctx context.Context, lines []string) (*Report, error) {
	entries, ignored := ParseDeliveryLines(lines)
	report := &Report{Ignored: ignored}
	if len(entries) == 0 {
		return report, nil
	}

	products, err := i.ledger.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	byName := make(map[string]int64, len(products))
	for _, p := range products {
		byName[strings.ToLower(strings.TrimSpace(p.Name))] = p.ID
	}

	for _, e := range entries {
		id, ok := byName[strings.ToLower(e.Name)]
		if !ok {
			report.Rejected = append(report.Rejected, RowError{Row: e.Line, Input: e.Name, Reason: "unknown product"})
			continue
		}
		if _, err := i.ledger.RestockProduct(ctx, id, e.Quantity); err != nil {
			if domain.IsClientError(err) {
				report.Rejected = append(report.Rejected, RowError{Row: e.Line, Input: e.Name, Reason: err.Error()})
				continue
			}
			return report, fmt.Errorf("failed to restock %q: %w", e.Name, err)
		}
		report.Applied++
	}

	i.logger.InfoContext(ctx, "delivery note applied",
		slog.Int("applied", report.Applied),
		slog.Int("ignored", report.Ignored),
		slog.Int("rejected", len(report.Rejected)))
	return report, nil
}
