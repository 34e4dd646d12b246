// internal/importer/catalog.go
package importer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

// CatalogRow is one parsed workbook row; Row is 1-based as shown in Excel
type CatalogRow struct {
	Row     int
	Product domain.NewProduct
}

// ParseCatalogFile reads the first sheet of the workbook at path
func ParseCatalogFile(path string) ([]CatalogRow, []RowError, error) {
	file, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	return parseWorkbook(file)
}

// ParseCatalog reads the first sheet of an in-memory workbook. Columns are
// Name, Category, Buying Price, Selling Price, Stock after a header row.
func ParseCatalog(data []byte) ([]CatalogRow, []RowError, error) {
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	return parseWorkbook(file)
}

func parseWorkbook(file *xlsx.File) ([]CatalogRow, []RowError, error) {
	if len(file.Sheets) == 0 {
		return nil, nil, domain.NewValidationError("file", "workbook has no sheets")
	}

	var (
		rows     []CatalogRow
		rejected []RowError
	)
	err := file.Sheets[0].ForEachRow(func(r *xlsx.Row) error {
		index := r.GetCoordinate() + 1
		if index == 1 {
			return nil
		}

		get := func(i int) string {
			c := r.GetCell(i)
			if c == nil {
				return ""
			}
			return strings.TrimSpace(c.String())
		}

		values := []string{get(0), get(1), get(2), get(3), get(4)}
		if strings.Join(values, "") == "" {
			return nil
		}

		product, reason := parseCatalogValues(values)
		if reason != "" {
			rejected = append(rejected, RowError{Row: index, Input: values[0], Reason: reason})
			return nil
		}
		rows = append(rows, CatalogRow{Row: index, Product: product})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to process Excel rows: %w", err)
	}
	return rows, rejected, nil
}

func parseCatalogValues(values []string) (domain.NewProduct, string) {
	buying, err := parseMoney(values[2])
	if err != nil {
		return domain.NewProduct{}, "invalid buying price"
	}
	selling, err := parseMoney(values[3])
	if err != nil {
		return domain.NewProduct{}, "invalid selling price"
	}

	stock := 0
	if values[4] != "" {
		f, err := strconv.ParseFloat(values[4], 64)
		if err != nil || f != float64(int(f)) {
			return domain.NewProduct{}, "invalid stock"
		}
		stock = int(f)
	}

	p := domain.NewProduct{
		Name:         values[0],
		Category:     values[1],
		BuyingPrice:  buying,
		SellingPrice: selling,
		Stock:        stock,
	}
	if err := p.Validate(); err != nil {
		return domain.NewProduct{}, err.Error()
	}
	return p, ""
}

func parseMoney(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(s), "$"), ",", "")
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
