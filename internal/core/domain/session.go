// internal/core/domain/session.go
package domain

import "time"

// Role is a user's permission level
type Role string

// Role constants
const (
	RoleOwner    Role = "owner"
	RoleEmployee Role = "employee"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	return r == RoleOwner || r == RoleEmployee
}

// Credential is a stored login; the secret is only kept as a bcrypt hash.
type Credential struct {
	Username     string `json:"username"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	PasswordHash string `json:"-"`
}

// Session is the authenticated user of a terminal
type Session struct {
	TokenHash string    `json:"token_hash"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsOwner reports whether the session may manage the catalog
func (s *Session) IsOwner() bool {
	return s.Role == RoleOwner
}
