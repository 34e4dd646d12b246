package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

func TestErrorTaxonomy(t *testing.T) {
	storeErr := errors.New("disk full")

	tests := []struct {
		name     string
		err      error
		sentinel error
		client   bool
		message  string
	}{
		{
			name:     "validation",
			err:      domain.NewValidationError("stock", "cannot be negative"),
			sentinel: domain.ErrValidation,
			client:   true,
			message:  "stock cannot be negative",
		},
		{
			name:     "not_found",
			err:      &domain.NotFoundError{Resource: "product", ID: 42},
			sentinel: domain.ErrNotFound,
			client:   true,
			message:  "product not found: 42",
		},
		{
			name:     "insufficient_stock",
			err:      &domain.InsufficientStockError{ProductName: "Soda", Requested: 3, Available: 1},
			sentinel: domain.ErrInsufficientStock,
			client:   true,
			message:  `insufficient stock for "Soda": requested 3, available 1`,
		},
		{
			name:     "insufficient_payment",
			err:      &domain.InsufficientPaymentError{Total: decimal.RequireFromString("18"), Paid: decimal.RequireFromString("17.99")},
			sentinel: domain.ErrInsufficientPayment,
			client:   true,
			message:  "insufficient payment: total 18.00, paid 17.99",
		},
		{
			name:     "persistence",
			err:      &domain.PersistenceError{Op: "write", Key: "pos_sales", Err: storeErr},
			sentinel: domain.ErrPersistence,
			client:   false,
			message:  "failed to write pos_sales: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("record sale: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.client, domain.IsClientError(wrapped))
			assert.Equal(t, tt.message, tt.err.Error())
		})
	}

	var pe *domain.PersistenceError
	require.ErrorAs(t, fmt.Errorf("x: %w", &domain.PersistenceError{Op: "read", Key: "k", Err: storeErr}), &pe)
	assert.ErrorIs(t, pe, storeErr)
}
