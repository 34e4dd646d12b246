// internal/export/csv.go
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

// ProductsCSV writes the catalog as CSV
func ProductsCSV(w io.Writer, products []domain.Product) error {
	rows := make([][]string, 0, len(products))
	for i := range products {
		rows = append(rows, productRow(&products[i]))
	}
	return writeCSV(w, ProductHeaders, rows)
}

// SalesCSV writes sales as CSV
func SalesCSV(w io.Writer, sales []domain.Sale) error {
	rows := make([][]string, 0, len(sales))
	for i := range sales {
		rows = append(rows, saleRow(&sales[i]))
	}
	return writeCSV(w, SaleHeaders, rows)
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}
