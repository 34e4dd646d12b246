// internal/adapters/memory/credentials.go
package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// CredentialStore serves logins loaded from configuration
type CredentialStore struct {
	users map[string]domain.Credential
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore indexes creds by lower-cased username
func NewCredentialStore(creds ...domain.Credential) (*CredentialStore, error) {
	users := make(map[string]domain.Credential, len(creds))
	for _, c := range creds {
		if strings.TrimSpace(c.Username) == "" {
			return nil, fmt.Errorf("credential without username")
		}
		if c.PasswordHash == "" {
			return nil, fmt.Errorf("credential %q has no password hash", c.Username)
		}
		if !c.Role.IsValid() {
			return nil, fmt.Errorf("credential %q has invalid role %q", c.Username, c.Role)
		}
		key := strings.ToLower(c.Username)
		if _, dup := users[key]; dup {
			return nil, fmt.Errorf("duplicate credential %q", c.Username)
		}
		users[key] = c
	}
	return &CredentialStore{users: users}, nil
}

// FindByUsername matches usernames case-insensitively
func (s *CredentialStore) FindByUsername(_ context.Context, username string) (*domain.Credential, error) {
	c, ok := s.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, ports.ErrUserNotFound
	}
	return &c, nil
}
