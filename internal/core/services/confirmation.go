// internal/core/services/confirmation.go
package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

// confirmationRegistry holds single-use tokens for destructive actions.
// Tokens live in process memory; a restart invalidates all of them.
type confirmationRegistry struct {
	mu      sync.Mutex
	pending map[string]domain.Confirmation
	ttl     time.Duration
}

func newConfirmationRegistry(ttl time.Duration) *confirmationRegistry {
	return &confirmationRegistry{
		pending: make(map[string]domain.Confirmation),
		ttl:     ttl,
	}
}

func (r *confirmationRegistry) issue(now time.Time, action domain.ConfirmationAction, targetID int64, quantity int, summary string) domain.Confirmation {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.purge(now)

	c := domain.Confirmation{
		Token:     uuid.New().String(),
		Action:    action,
		TargetID:  targetID,
		Quantity:  quantity,
		Summary:   summary,
		ExpiresAt: now.Add(r.ttl),
	}
	r.pending[c.Token] = c
	return c
}

// take removes and returns the confirmation for token.
func (r *confirmationRegistry) take(now time.Time, token string) (domain.Confirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.pending[token]
	if !ok {
		return domain.Confirmation{}, fmt.Errorf("%w: unknown token", domain.ErrInvalidConfirmation)
	}
	delete(r.pending, token)

	if !now.Before(c.ExpiresAt) {
		return domain.Confirmation{}, fmt.Errorf("%w: token expired", domain.ErrInvalidConfirmation)
	}
	return c, nil
}

func (r *confirmationRegistry) purge(now time.Time) {
	for token, c := range r.pending {
		if !now.Before(c.ExpiresAt) {
			delete(r.pending, token)
		}
	}
}

func (r *confirmationRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
