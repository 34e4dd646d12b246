// internal/core/domain/product.go
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StockStatus classifies a product's stock level
type StockStatus string

// Stock status constants
const (
	StockOutOfStock StockStatus = "out_of_stock"
	StockCritical   StockStatus = "critical"
	StockLow        StockStatus = "low_stock"
	StockIn         StockStatus = "in_stock"
)

// Stock thresholds used by StatusOf and the dashboard low-stock count.
const (
	CriticalStockThreshold = 5
	LowStockThreshold      = 10
)

var hundred = decimal.NewFromInt(100)

// Product is a sellable catalog entry
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	BuyingPrice  decimal.Decimal `json:"buying_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Stock        int             `json:"stock"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewProduct carries the fields accepted when adding a product
type NewProduct struct {
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	BuyingPrice  decimal.Decimal `json:"buying_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Stock        int             `json:"stock"`
}

// ProductUpdate is a partial edit; nil fields are left untouched.
type ProductUpdate struct {
	Name         *string          `json:"name,omitempty"`
	Category     *string          `json:"category,omitempty"`
	BuyingPrice  *decimal.Decimal `json:"buying_price,omitempty"`
	SellingPrice *decimal.Decimal `json:"selling_price,omitempty"`
	Stock        *int             `json:"stock,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (u ProductUpdate) IsEmpty() bool {
	return u.Name == nil && u.Category == nil && u.BuyingPrice == nil &&
		u.SellingPrice == nil && u.Stock == nil
}

// Validate checks the fields of a new product
func (n *NewProduct) Validate() error {
	p := Product{
		Name:         n.Name,
		Category:     n.Category,
		BuyingPrice:  n.BuyingPrice,
		SellingPrice: n.SellingPrice,
		Stock:        n.Stock,
	}
	return p.Validate()
}

// Validate checks that a product is storable
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", "is required")
	}
	if strings.TrimSpace(p.Category) == "" {
		return NewValidationError("category", "is required")
	}
	if p.BuyingPrice.IsNegative() {
		return NewValidationError("buying_price", "cannot be negative")
	}
	if p.SellingPrice.IsNegative() {
		return NewValidationError("selling_price", "cannot be negative")
	}
	if p.Stock < 0 {
		return NewValidationError("stock", "cannot be negative")
	}
	return nil
}

// Apply merges a partial update into a copy of the product
func (p Product) Apply(u ProductUpdate) Product {
	if u.Name != nil {
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Category != nil {
		p.Category = strings.TrimSpace(*u.Category)
	}
	if u.BuyingPrice != nil {
		p.BuyingPrice = *u.BuyingPrice
	}
	if u.SellingPrice != nil {
		p.SellingPrice = *u.SellingPrice
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	return p
}

// ProfitMargin returns ((selling - buying) / buying) * 100, or zero when the
// buying price is zero.
func (p *Product) ProfitMargin() decimal.Decimal {
	if p.BuyingPrice.IsZero() {
		return decimal.Zero
	}
	return p.SellingPrice.Sub(p.BuyingPrice).Div(p.BuyingPrice).Mul(hundred)
}

// UnitProfit is the selling price minus the buying price
func (p *Product) UnitProfit() decimal.Decimal {
	return p.SellingPrice.Sub(p.BuyingPrice)
}

// StockValue is the cost of the units on hand
func (p *Product) StockValue() decimal.Decimal {
	return p.BuyingPrice.Mul(decimal.NewFromInt(int64(p.Stock)))
}

// PotentialRevenue is the selling value of the units on hand
func (p *Product) PotentialRevenue() decimal.Decimal {
	return p.SellingPrice.Mul(decimal.NewFromInt(int64(p.Stock)))
}

// Status classifies the current stock level
func (p *Product) Status() StockStatus {
	return StatusOf(p.Stock)
}

// StatusOf classifies a stock quantity
func StatusOf(stock int) StockStatus {
	switch {
	case stock <= 0:
		return StockOutOfStock
	case stock < CriticalStockThreshold:
		return StockCritical
	case stock < LowStockThreshold:
		return StockLow
	default:
		return StockIn
	}
}

// IsValidStockStatus reports whether s names a known status
func IsValidStockStatus(s StockStatus) bool {
	switch s {
	case StockOutOfStock, StockCritical, StockLow, StockIn:
		return true
	}
	return false
}

// ProductSort names a sortable product column
type ProductSort string

// Sort columns
const (
	SortByName   ProductSort = "name"
	SortByStock  ProductSort = "stock"
	SortByMargin ProductSort = "margin"
	SortByPrice  ProductSort = "price"
)

// ProductFilter narrows a product listing
type ProductFilter struct {
	Query     string      `json:"q,omitempty"`
	Category  string      `json:"category,omitempty"`
	Status    StockStatus `json:"status,omitempty"`
	SortBy    ProductSort `json:"sort_by,omitempty"`
	SortOrder string      `json:"sort_order,omitempty"`
}

// Matches reports whether p passes the filter's predicates
func (f ProductFilter) Matches(p *Product) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Category), q) {
			return false
		}
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.Status != "" && p.Status() != f.Status {
		return false
	}
	return true
}

// DefaultCatalog is the catalog seeded into an empty store
func DefaultCatalog() []NewProduct {
	return []NewProduct{
		{Name: "Coffee", Category: "Beverages", BuyingPrice: decimal.RequireFromString("1.00"), SellingPrice: decimal.RequireFromString("2.50"), Stock: 100},
		{Name: "Sandwich", Category: "Food", BuyingPrice: decimal.RequireFromString("3.00"), SellingPrice: decimal.RequireFromString("5.99"), Stock: 50},
		{Name: "Chips", Category: "Snacks", BuyingPrice: decimal.RequireFromString("0.80"), SellingPrice: decimal.RequireFromString("1.99"), Stock: 75},
		{Name: "Soda", Category: "Beverages", BuyingPrice: decimal.RequireFromString("0.60"), SellingPrice: decimal.RequireFromString("1.50"), Stock: 80},
	}
}
