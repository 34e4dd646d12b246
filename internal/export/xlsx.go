// internal/export/xlsx.go
package export

import (
	"fmt"
	"io"

	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

// ProductsXLSX writes the catalog as a workbook with a single "Products" sheet
func ProductsXLSX(w io.Writer, products []domain.Product) error {
	rows := make([][]string, 0, len(products))
	for i := range products {
		rows = append(rows, productRow(&products[i]))
	}
	return writeWorkbook(w, "Products", ProductHeaders, rows)
}

// SalesXLSX writes sales as a workbook with a single "Sales" sheet
func SalesXLSX(w io.Writer, sales []domain.Sale) error {
	rows := make([][]string, 0, len(sales))
	for i := range sales {
		rows = append(rows, saleRow(&sales[i]))
	}
	return writeWorkbook(w, "Sales", SaleHeaders, rows)
}

func writeWorkbook(w io.Writer, name string, headers []string, rows [][]string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(name)
	if err != nil {
		return fmt.Errorf("failed to add worksheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, header := range headers {
		cell := headerRow.AddCell()
		cell.Value = header
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}

	for _, values := range rows {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().Value = v
		}
	}

	for i := range headers {
		sheet.SetColWidth(i+1, i+1, 15)
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
