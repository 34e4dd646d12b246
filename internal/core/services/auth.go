// internal/core/services/auth.go
package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// DefaultSessionTTL is the lifetime of a terminal session
const DefaultSessionTTL = 12 * time.Hour

// Auth manages the single terminal session stored under pos_user. A new
// login replaces whatever session was active.
type Auth struct {
	store       ports.KeyValueStore
	credentials ports.CredentialStore
	ttl         time.Duration
	now         func() time.Time
	compare     func(hash, password []byte) error
	logger      *slog.Logger
}

var _ ports.AuthService = (*Auth)(nil)

var (
	unknownUserOnce sync.Once
	unknownUserHash []byte
)

// decoyHash is compared against for unknown usernames so they cost the same
// bcrypt work as a wrong password.
func decoyHash() []byte {
	unknownUserOnce.Do(func() {
		unknownUserHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	})
	return unknownUserHash
}

// AuthOption configures Auth
type AuthOption func(*Auth)

// WithSessionTTL sets the session lifetime
func WithSessionTTL(ttl time.Duration) AuthOption {
	return func(a *Auth) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithAuthClock replaces the wall clock
func WithAuthClock(now func() time.Time) AuthOption {
	return func(a *Auth) {
		a.now = now
	}
}

// NewAuth creates an auth service
func NewAuth(store ports.KeyValueStore, credentials ports.CredentialStore, logger *slog.Logger, opts ...AuthOption) *Auth {
	a := &Auth{
		store:       store,
		credentials: credentials,
		ttl:         DefaultSessionTTL,
		now:         time.Now,
		compare:     bcrypt.CompareHashAndPassword,
		logger:      logger.With(slog.String("service", "auth")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Login verifies the password and starts a session. The raw token is returned
// once; only its hash is stored.
func (a *Auth) Login(ctx context.Context, username, password string) (string, *domain.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	cred, err := a.credentials.FindByUsername(ctx, username)
	if errors.Is(err, ports.ErrUserNotFound) {
		_ = a.compare(decoyHash(), []byte(password))
		a.logger.WarnContext(ctx, "login for unknown user", slog.String("username", username))
		return "", nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	if err := a.compare([]byte(cred.PasswordHash), []byte(password)); err != nil {
		a.logger.WarnContext(ctx, "login rejected", slog.String("username", username))
		return "", nil, domain.ErrInvalidCredentials
	}

	token := uuid.New().String()
	now := a.now()
	session := &domain.Session{
		TokenHash: hashToken(token),
		Username:  cred.Username,
		Name:      cred.Name,
		Role:      cred.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(a.ttl),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := a.store.Set(ctx, ports.KeyUser, data); err != nil {
		return "", nil, &domain.PersistenceError{Op: "write", Key: ports.KeyUser, Err: err}
	}

	a.logger.InfoContext(ctx, "user logged in",
		slog.String("username", session.Username),
		slog.String("role", string(session.Role)))

	return token, session, nil
}

// Authenticate resolves a raw token to the active session
func (a *Auth) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	session, err := a.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !tokenMatches(session, token) {
		return nil, domain.ErrUnauthenticated
	}
	return session, nil
}

// Logout ends the session owned by token. Logging out without an active
// session is a no-op.
func (a *Auth) Logout(ctx context.Context, token string) error {
	session, err := a.load(ctx)
	if errors.Is(err, domain.ErrUnauthenticated) {
		return nil
	}
	if err != nil {
		return err
	}
	if !tokenMatches(session, token) {
		return domain.ErrUnauthenticated
	}

	if err := a.store.Delete(ctx, ports.KeyUser); err != nil {
		return &domain.PersistenceError{Op: "delete", Key: ports.KeyUser, Err: err}
	}

	a.logger.InfoContext(ctx, "user logged out", slog.String("username", session.Username))
	return nil
}

// Current returns the unexpired session, if any
func (a *Auth) Current(ctx context.Context) (*domain.Session, error) {
	session, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	if session.Expired(a.now()) {
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

func (a *Auth) load(ctx context.Context) (*domain.Session, error) {
	data, err := a.store.Get(ctx, ports.KeyUser)
	if errors.Is(err, ports.ErrKeyNotFound) {
		return nil, domain.ErrUnauthenticated
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "read", Key: ports.KeyUser, Err: err}
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil || session.TokenHash == "" {
		// A legacy or corrupt user record never authenticates.
		return nil, domain.ErrUnauthenticated
	}
	return &session, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func tokenMatches(session *domain.Session, token string) bool {
	return subtle.ConstantTimeCompare([]byte(session.TokenHash), []byte(hashToken(token))) == 1
}

// HashPassword returns a bcrypt hash of password at cost
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
