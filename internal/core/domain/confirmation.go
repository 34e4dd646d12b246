// internal/core/domain/confirmation.go
package domain

import "time"

// ConfirmationAction names an operation that needs an explicit second step
type ConfirmationAction string

// Confirmable actions
const (
	ActionDeleteProduct ConfirmationAction = "delete_product"
	ActionDeleteSale    ConfirmationAction = "delete_sale"
	ActionRestock       ConfirmationAction = "restock"
)

// Confirmation is a pending destructive action awaiting Confirm
type Confirmation struct {
	Token     string             `json:"token"`
	Action    ConfirmationAction `json:"action"`
	TargetID  int64              `json:"target_id"`
	Quantity  int                `json:"quantity,omitempty"`
	Summary   string             `json:"summary"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// ConfirmationResult is the outcome of a confirmed action
type ConfirmationResult struct {
	Action   ConfirmationAction `json:"action"`
	TargetID int64              `json:"target_id"`
	Deleted  bool               `json:"deleted,omitempty"`
	Product  *Product           `json:"product,omitempty"`
}
