// internal/core/services/auth_test.go
package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/ammerola/pos-ledger/internal/adapters/memory"
	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/core/services"
	"github.com/ammerola/pos-ledger/test/helpers"
	"github.com/ammerola/pos-ledger/test/mocks"
)

func newAuth(t *testing.T, store ports.KeyValueStore, clock *testClock) *services.Auth {
	t.Helper()

	ownerHash, err := services.HashPassword("owner-pass", bcrypt.MinCost)
	require.NoError(t, err)
	employeeHash, err := services.HashPassword("till-pass", bcrypt.MinCost)
	require.NoError(t, err)

	creds, err := memory.NewCredentialStore(
		domain.Credential{Username: "Sir Mariko", Name: "Sir Mariko", Role: domain.RoleOwner, PasswordHash: ownerHash},
		domain.Credential{Username: "employee", Name: "Employee", Role: domain.RoleEmployee, PasswordHash: employeeHash},
	)
	require.NoError(t, err)

	return services.NewAuth(store, creds, helpers.TestLogger(),
		services.WithAuthClock(clock.Now),
		services.WithSessionTTL(time.Hour))
}

func TestAuth_Login(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		password  string
		wantErr   error
		wantRole  domain.Role
		wantStore bool
	}{
		{name: "owner", username: "Sir Mariko", password: "owner-pass", wantRole: domain.RoleOwner, wantStore: true},
		{name: "employee_case_insensitive", username: "EMPLOYEE", password: "till-pass", wantRole: domain.RoleEmployee, wantStore: true},
		{name: "wrong_password", username: "employee", password: "nope", wantErr: domain.ErrInvalidCredentials},
		{name: "unknown_user", username: "ghost", password: "till-pass", wantErr: domain.ErrInvalidCredentials},
		{name: "empty_password", username: "employee", password: "", wantErr: domain.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.NewStore()
			auth := newAuth(t, store, newTestClock())

			token, session, err := auth.Login(ctx, tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, getErr := store.Get(ctx, ports.KeyUser)
				assert.ErrorIs(t, getErr, ports.ErrKeyNotFound)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.Equal(t, tt.wantRole, session.Role)
			assert.NotEqual(t, token, session.TokenHash)

			raw, err := store.Get(ctx, ports.KeyUser)
			require.NoError(t, err)
			assert.NotContains(t, string(raw), token)
			assert.NotContains(t, string(raw), "pass")
		})
	}
}

func TestAuth_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	auth := newAuth(t, memory.NewStore(), clock)

	_, err := auth.Current(ctx)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	token, _, err := auth.Login(ctx, "employee", "till-pass")
	require.NoError(t, err)

	session, err := auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Employee", session.Name)

	_, err = auth.Authenticate(ctx, "forged")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = auth.Authenticate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	current, err := auth.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "employee", current.Username)

	assert.ErrorIs(t, auth.Logout(ctx, "forged"), domain.ErrUnauthenticated)
	require.NoError(t, auth.Logout(ctx, token))
	require.NoError(t, auth.Logout(ctx, token))

	_, err = auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestAuth_SessionExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	auth := newAuth(t, memory.NewStore(), clock)

	token, _, err := auth.Login(ctx, "Sir Mariko", "owner-pass")
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = auth.Authenticate(ctx, token)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestAuth_SecondLoginReplacesSession(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t, memory.NewStore(), newTestClock())

	first, _, err := auth.Login(ctx, "employee", "till-pass")
	require.NoError(t, err)
	second, _, err := auth.Login(ctx, "Sir Mariko", "owner-pass")
	require.NoError(t, err)

	_, err = auth.Authenticate(ctx, first)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	session, err := auth.Authenticate(ctx, second)
	require.NoError(t, err)
	assert.True(t, session.IsOwner())
}

func TestAuth_StoreFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		setupMocks func(*mocks.MockKeyValueStore)
		run        func(*services.Auth) error
		wantErr    error
	}{
		{
			name: "login_write_failure",
			setupMocks: func(m *mocks.MockKeyValueStore) {
				m.EXPECT().Set(gomock.Any(), ports.KeyUser, gomock.Any()).Return(errors.New("read-only"))
			},
			run: func(a *services.Auth) error {
				_, _, err := a.Login(ctx, "employee", "till-pass")
				return err
			},
			wantErr: domain.ErrPersistence,
		},
		{
			name: "current_read_failure",
			setupMocks: func(m *mocks.MockKeyValueStore) {
				m.EXPECT().Get(gomock.Any(), ports.KeyUser).Return(nil, errors.New("timeout"))
			},
			run: func(a *services.Auth) error {
				_, err := a.Current(ctx)
				return err
			},
			wantErr: domain.ErrPersistence,
		},
		{
			name: "corrupt_session_is_unauthenticated",
			setupMocks: func(m *mocks.MockKeyValueStore) {
				m.EXPECT().Get(gomock.Any(), ports.KeyUser).Return([]byte(`{"username":"legacy"}`), nil)
			},
			run: func(a *services.Auth) error {
				_, err := a.Authenticate(ctx, "anything")
				return err
			},
			wantErr: domain.ErrUnauthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := mocks.NewMockKeyValueStore(ctrl)
			tt.setupMocks(store)

			auth := newAuth(t, store, newTestClock())
			assert.ErrorIs(t, tt.run(auth), tt.wantErr)
		})
	}
}
