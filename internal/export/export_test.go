package export_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/pos-ledger/internal/adapters/memory"
	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/services"
	"github.com/ammerola/pos-ledger/internal/export"
	"github.com/ammerola/pos-ledger/test/helpers"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleProducts() []domain.Product {
	return []domain.Product{
		{ID: 1, Name: "Coffee", Category: "Beverages", BuyingPrice: d("1"), SellingPrice: d("2.5"), Stock: 40},
		{ID: 2, Name: "Chips, salted", Category: "Snacks", BuyingPrice: d("0"), SellingPrice: d("1.25"), Stock: 0},
	}
}

func sampleSales() []domain.Sale {
	march := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	april := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	return []domain.Sale{
		{
			ID: 10, CreatedAt: march, Employee: "Sam", Total: d("18"), TotalProfit: d("10"),
			Items: []domain.LineItem{
				{ProductID: 1, Name: "Widget", Quantity: 3},
				{ProductID: 2, Name: "Gadget", Quantity: 2},
			},
		},
		{
			ID: 11, CreatedAt: april, Employee: "Alex", Total: d("2.5"), TotalProfit: d("1.5"),
			Items: []domain.LineItem{{ProductID: 1, Name: "Coffee", Quantity: 1}},
		},
	}
}

func readCSV(t *testing.T, data string) [][]string {
	t.Helper()
	records, err := csv.NewReader(strings.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestProductsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.ProductsCSV(&buf, sampleProducts()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID,Name,Category,Buying Price,Selling Price,Stock,Profit Margin", lines[0])
	assert.Equal(t, "1,Coffee,Beverages,1.00,2.50,40,150.00%", lines[1])
	assert.Equal(t, `2,"Chips, salted",Snacks,0.00,1.25,0,0.00%`, lines[2])

	records := readCSV(t, buf.String())
	assert.Equal(t, "Chips, salted", records[2][1])
}

func TestSalesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.SalesCSV(&buf, sampleSales()))

	records := readCSV(t, buf.String())
	require.Len(t, records, 3)
	assert.Equal(t, export.SaleHeaders, records[0])
	assert.Equal(t, []string{"10", "2026-03-14T09:30:00Z", "Sam", "18.00", "10.00", "Widget x3; Gadget x2"}, records[1])
	assert.Equal(t, "Coffee x1", records[2][5])
}

func TestSelectSales(t *testing.T) {
	sales := sampleSales()
	pending := []domain.Sale{{ID: 12, CreatedAt: time.Date(2026, 3, 20, 8, 0, 0, 0, time.UTC), IsOffline: true}}

	tests := []struct {
		name string
		opts export.SalesOptions
		want []int64
	}{
		{name: "main_log_only", opts: export.SalesOptions{}, want: []int64{10, 11}},
		{name: "with_pending", opts: export.SalesOptions{IncludePending: true}, want: []int64{10, 11, 12}},
		{name: "month_filter", opts: export.SalesOptions{Month: "2026-03", IncludePending: true}, want: []int64{10, 12}},
		{name: "empty_month", opts: export.SalesOptions{Month: "2025-12"}, want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := export.SelectSales(sales, pending, tt.opts)
			ids := make([]int64, 0, len(got))
			for _, s := range got {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSalesOptions_Validate(t *testing.T) {
	assert.NoError(t, export.SalesOptions{}.Validate())
	assert.NoError(t, export.SalesOptions{Month: "2026-03"}.Validate())
	assert.ErrorIs(t, export.SalesOptions{Month: "March"}.Validate(), domain.ErrValidation)
	assert.ErrorIs(t, export.SalesOptions{Month: "2026-13"}.Validate(), domain.ErrValidation)
}

func TestProductsXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.ProductsXLSX(&buf, sampleProducts()))

	file, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)

	sheet := file.Sheets[0]
	assert.Equal(t, "Products", sheet.Name)
	assert.Equal(t, 3, sheet.MaxRow)

	header, err := sheet.Cell(0, 6)
	require.NoError(t, err)
	assert.Equal(t, "Profit Margin", header.Value)

	name, err := sheet.Cell(2, 1)
	require.NoError(t, err)
	assert.Equal(t, "Chips, salted", name.Value)
}

func TestExporter_Export(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewLedger(memory.NewStore(), helpers.TestLogger())
	exporter := export.NewExporter(ledger)

	products, err := ledger.ListProducts(ctx)
	require.NoError(t, err)

	_, err = ledger.RecordSale(ctx, domain.SaleRequest{
		Items:         []domain.CartItem{{ProductID: products[0].ID, Quantity: 2}},
		Employee:      "Sam",
		PaymentMethod: domain.PaymentCard,
	})
	require.NoError(t, err)

	t.Run("products_csv_lists_catalog", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, exporter.Export(ctx, &buf, export.KindProducts, export.FormatCSV, export.SalesOptions{}))
		assert.Len(t, readCSV(t, buf.String()), len(products)+1)
	})

	t.Run("offline_sale_needs_include_pending", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, exporter.Export(ctx, &buf, export.KindSales, export.FormatCSV, export.SalesOptions{}))
		assert.Len(t, readCSV(t, buf.String()), 1)

		buf.Reset()
		require.NoError(t, exporter.Export(ctx, &buf, export.KindSales, export.FormatCSV,
			export.SalesOptions{IncludePending: true}))
		records := readCSV(t, buf.String())
		require.Len(t, records, 2)
		assert.Equal(t, "Sam", records[1][2])
	})

	t.Run("sales_xlsx", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, exporter.Export(ctx, &buf, export.KindSales, export.FormatXLSX,
			export.SalesOptions{IncludePending: true}))
		file, err := xlsx.OpenBinary(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, 2, file.Sheets[0].MaxRow)
	})

	t.Run("bad_month", func(t *testing.T) {
		var buf bytes.Buffer
		err := exporter.Export(ctx, &buf, export.KindSales, export.FormatCSV, export.SalesOptions{Month: "nope"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestParseKindAndFormat(t *testing.T) {
	k, err := export.ParseKind("Sales")
	require.NoError(t, err)
	assert.Equal(t, export.KindSales, k)

	_, err = export.ParseKind("users")
	assert.ErrorIs(t, err, domain.ErrValidation)

	f, err := export.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, export.FormatCSV, f)

	f, err = export.ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, export.FormatXLSX, f)

	_, err = export.ParseFormat("pdf")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestFilename(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "sales_export_20260314_100000.xlsx", export.Filename(export.KindSales, export.FormatXLSX, at))
}
