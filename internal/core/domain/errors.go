// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors. Structured errors below unwrap to one of these so callers
// can branch with errors.Is and still get details with errors.As.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrPersistence         = errors.New("persistence failure")
	ErrInvalidConfirmation = errors.New("invalid or expired confirmation")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrSessionExpired     = errors.New("session expired")
	ErrForbidden          = errors.New("forbidden")
)

// ValidationError reports bad input shape or range.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a referenced identifier that does not exist.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientStockError names the product a sale could not be satisfied from.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InsufficientPaymentError reports a cash payment below the cart total.
type InsufficientPaymentError struct {
	Total decimal.Decimal
	Paid  decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: total %s, paid %s",
		e.Total.StringFixed(2), e.Paid.StringFixed(2))
}

func (e *InsufficientPaymentError) Unwrap() error { return ErrInsufficientPayment }

// PersistenceError wraps an underlying store read or write failure.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes both the sentinel and the store error.
func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// IsClientError reports whether err was caused by caller input rather than
// the store or the process.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInsufficientPayment) ||
		errors.Is(err, ErrInvalidConfirmation)
}
