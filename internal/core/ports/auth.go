// internal/core/ports/auth.go
package ports

import (
	"context"
	"errors"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

// ErrUserNotFound is returned by a CredentialStore for an unknown username
var ErrUserNotFound = errors.New("user not found")

// CredentialStore looks up stored logins.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*domain.Credential, error)
}

// AuthService issues and validates terminal sessions.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, *domain.Session, error)
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
	Logout(ctx context.Context, token string) error
	Current(ctx context.Context) (*domain.Session, error)
}
