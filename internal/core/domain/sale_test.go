package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

func TestCalculateTotals(t *testing.T) {
	widget := &domain.Product{ID: 1, Name: "Widget", BuyingPrice: decimal.RequireFromString("2.00"), SellingPrice: decimal.RequireFromString("5.00")}
	gadget := &domain.Product{ID: 2, Name: "Gadget", BuyingPrice: decimal.RequireFromString("1.00"), SellingPrice: decimal.RequireFromString("1.50")}

	items := []domain.LineItem{
		domain.NewLineItem(widget, 3),
		domain.NewLineItem(gadget, 2),
	}

	total, profit := domain.CalculateTotals(items)
	assert.True(t, total.Equal(decimal.RequireFromString("18.00")), "total %s", total)
	assert.True(t, profit.Equal(decimal.RequireFromString("10.00")), "profit %s", profit)

	// Snapshots are immune to later price edits.
	widget.SellingPrice = decimal.RequireFromString("99")
	assert.True(t, items[0].UnitPrice.Equal(decimal.RequireFromString("5.00")))

	sale := domain.Sale{Items: items}
	assert.Equal(t, 5, sale.ItemCount())
	assert.Equal(t, "Widget x3; Gadget x2", sale.ItemsSummary())

	empty, emptyProfit := domain.CalculateTotals(nil)
	assert.True(t, empty.IsZero())
	assert.True(t, emptyProfit.IsZero())
}

func TestSaleRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     domain.SaleRequest
		wantErr error
	}{
		{
			name: "valid_cash",
			req:  domain.SaleRequest{Items: []domain.CartItem{{ProductID: 1, Quantity: 2}}},
		},
		{
			name:    "empty_cart",
			req:     domain.SaleRequest{},
			wantErr: domain.ErrEmptyCart,
		},
		{
			name:    "negative_quantity",
			req:     domain.SaleRequest{Items: []domain.CartItem{{ProductID: 1, Quantity: -1}}},
			wantErr: domain.ErrValidation,
		},
		{
			name: "unknown_method",
			req: domain.SaleRequest{
				Items:         []domain.CartItem{{ProductID: 1, Quantity: 1}},
				PaymentMethod: "cheque",
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "negative_amount_paid",
			req: domain.SaleRequest{
				Items:      []domain.CartItem{{ProductID: 1, Quantity: 1}},
				AmountPaid: decimal.NewFromInt(-5),
			},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPaymentMethod(t *testing.T) {
	assert.True(t, domain.PaymentCash.RequiresTender())
	assert.False(t, domain.PaymentCard.RequiresTender())
	assert.False(t, domain.PaymentMobile.RequiresTender())
	assert.True(t, domain.PaymentMobile.IsValid())
	assert.False(t, domain.PaymentMethod("voucher").IsValid())
}
