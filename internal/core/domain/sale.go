// internal/core/domain/sale.go
package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how a sale was paid
type PaymentMethod string

// Payment method constants
const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentMobile PaymentMethod = "mobile"
)

// IsValid reports whether m is a known payment method
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentMobile:
		return true
	}
	return false
}

// RequiresTender reports whether the amount paid must cover the total.
// Only cash is tendered; card and mobile are charged the exact total.
func (m PaymentMethod) RequiresTender() bool {
	return m == PaymentCash
}

// LineItem is a priced snapshot of one product within a sale
type LineItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// NewLineItem snapshots the product's current prices
func NewLineItem(p *Product, quantity int) LineItem {
	qty := decimal.NewFromInt(int64(quantity))
	return LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  quantity,
		UnitPrice: p.SellingPrice,
		UnitCost:  p.BuyingPrice,
		LineTotal: p.SellingPrice.Mul(qty),
	}
}

// Profit is (unit price - unit cost) * quantity
func (li LineItem) Profit() decimal.Decimal {
	return li.UnitPrice.Sub(li.UnitCost).Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Sale is a completed transaction
type Sale struct {
	ID            int64           `json:"id"`
	Items         []LineItem      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Change        decimal.Decimal `json:"change"`
	Employee      string          `json:"employee"`
	IsOffline     bool            `json:"is_offline"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CalculateTotals returns the sum of line totals and of line profits
func CalculateTotals(items []LineItem) (total, profit decimal.Decimal) {
	total, profit = decimal.Zero, decimal.Zero
	for _, li := range items {
		total = total.Add(li.LineTotal)
		profit = profit.Add(li.Profit())
	}
	return total, profit
}

// ItemCount returns the number of units sold
func (s *Sale) ItemCount() int {
	n := 0
	for _, li := range s.Items {
		n += li.Quantity
	}
	return n
}

// ItemsSummary renders the items as "name xN" joined by "; "
func (s *Sale) ItemsSummary() string {
	parts := make([]string, 0, len(s.Items))
	for _, li := range s.Items {
		parts = append(parts, li.Name+" x"+strconv.Itoa(li.Quantity))
	}
	return strings.Join(parts, "; ")
}

// CartItem is one requested line of a sale
type CartItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// SaleRequest carries everything needed to record a sale
type SaleRequest struct {
	Items         []CartItem      `json:"items"`
	Employee      string          `json:"employee"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Online        bool            `json:"online"`
}

// Validate checks the request shape; stock and payment are checked against
// the ledger state when the sale is recorded.
func (r *SaleRequest) Validate() error {
	if len(r.Items) == 0 {
		return ErrEmptyCart
	}
	for _, item := range r.Items {
		if item.Quantity <= 0 {
			return NewValidationError("quantity", "must be positive")
		}
	}
	if r.PaymentMethod != "" && !r.PaymentMethod.IsValid() {
		return NewValidationError("payment_method", "is not supported")
	}
	if r.AmountPaid.IsNegative() {
		return NewValidationError("amount_paid", "cannot be negative")
	}
	return nil
}
