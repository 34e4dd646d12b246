package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

func TestProduct_Validate(t *testing.T) {
	tests := []struct {
		name      string
		product   domain.Product
		wantError bool
		errorMsg  string
	}{
		{
			name: "valid_product",
			product: domain.Product{
				Name: "Coffee", Category: "Beverages",
				BuyingPrice: decimal.NewFromInt(1), SellingPrice: decimal.NewFromFloat(2.5), Stock: 10,
			},
		},
		{
			name:      "blank_name",
			product:   domain.Product{Name: "   ", Category: "Beverages"},
			wantError: true,
			errorMsg:  "name is required",
		},
		{
			name:      "missing_category",
			product:   domain.Product{Name: "Coffee"},
			wantError: true,
			errorMsg:  "category is required",
		},
		{
			name: "negative_selling_price",
			product: domain.Product{
				Name: "Coffee", Category: "Beverages", SellingPrice: decimal.NewFromInt(-1),
			},
			wantError: true,
			errorMsg:  "selling_price cannot be negative",
		},
		{
			name: "selling_below_cost_is_allowed",
			product: domain.Product{
				Name: "Loss Leader", Category: "Promo",
				BuyingPrice: decimal.NewFromInt(3), SellingPrice: decimal.NewFromInt(1),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate()
			if tt.wantError {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrValidation)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProduct_ProfitMargin(t *testing.T) {
	tests := []struct {
		name     string
		buying   string
		selling  string
		expected string
	}{
		{name: "coffee", buying: "1.00", selling: "2.50", expected: "150"},
		{name: "sandwich", buying: "3.00", selling: "5.99", expected: "99.67"},
		{name: "zero_cost", buying: "0", selling: "4.00", expected: "0"},
		{name: "loss", buying: "2.00", selling: "1.00", expected: "-50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.Product{
				BuyingPrice:  decimal.RequireFromString(tt.buying),
				SellingPrice: decimal.RequireFromString(tt.selling),
			}
			assert.Equal(t, tt.expected, p.ProfitMargin().Round(2).String())
		})
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		stock    int
		expected domain.StockStatus
	}{
		{-2, domain.StockOutOfStock},
		{0, domain.StockOutOfStock},
		{1, domain.StockCritical},
		{4, domain.StockCritical},
		{5, domain.StockLow},
		{9, domain.StockLow},
		{10, domain.StockIn},
		{250, domain.StockIn},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, domain.StatusOf(tt.stock), "stock %d", tt.stock)
	}
	assert.True(t, domain.IsValidStockStatus(domain.StockLow))
	assert.False(t, domain.IsValidStockStatus("backordered"))
}

func TestProduct_Apply(t *testing.T) {
	original := domain.Product{
		ID: 7, Name: "Chips", Category: "Snacks",
		BuyingPrice: decimal.RequireFromString("0.80"), SellingPrice: decimal.RequireFromString("1.99"), Stock: 75,
	}

	assert.True(t, domain.ProductUpdate{}.IsEmpty())

	category := " Crisps "
	stock := 60
	updated := original.Apply(domain.ProductUpdate{Category: &category, Stock: &stock})

	assert.Equal(t, "Crisps", updated.Category)
	assert.Equal(t, 60, updated.Stock)
	assert.Equal(t, "Chips", updated.Name)
	assert.Equal(t, int64(7), updated.ID)
	assert.Equal(t, "Snacks", original.Category, "original must not change")
}

func TestProduct_StockValues(t *testing.T) {
	p := domain.Product{
		BuyingPrice: decimal.RequireFromString("0.60"), SellingPrice: decimal.RequireFromString("1.50"), Stock: 80,
	}
	assert.Equal(t, "48", p.StockValue().String())
	assert.Equal(t, "120", p.PotentialRevenue().String())
	assert.Equal(t, "0.9", p.UnitProfit().String())
}

func TestProductFilter_Matches(t *testing.T) {
	p := &domain.Product{Name: "Iced Coffee", Category: "Beverages", Stock: 3}

	tests := []struct {
		name   string
		filter domain.ProductFilter
		want   bool
	}{
		{name: "empty_filter", filter: domain.ProductFilter{}, want: true},
		{name: "name_substring", filter: domain.ProductFilter{Query: "coff"}, want: true},
		{name: "category_substring", filter: domain.ProductFilter{Query: "BEV"}, want: true},
		{name: "no_match", filter: domain.ProductFilter{Query: "tea"}, want: false},
		{name: "category_exact_ignores_case", filter: domain.ProductFilter{Category: "beverages"}, want: true},
		{name: "category_mismatch", filter: domain.ProductFilter{Category: "Bev"}, want: false},
		{name: "status_match", filter: domain.ProductFilter{Status: domain.StockCritical}, want: true},
		{name: "status_mismatch", filter: domain.ProductFilter{Status: domain.StockIn}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(p))
		})
	}
}

func TestDefaultCatalog(t *testing.T) {
	catalog := domain.DefaultCatalog()
	require.Len(t, catalog, 4)
	for _, np := range catalog {
		assert.NoError(t, np.Validate(), np.Name)
	}
}
