package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/handlers/middleware"
	"github.com/ammerola/pos-ledger/internal/pkg/logger"
	"github.com/ammerola/pos-ledger/test/helpers"
	"github.com/ammerola/pos-ledger/test/mocks"
)

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := middleware.RequestID("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		existing string
		validate func(*testing.T, *http.Response)
	}{
		{
			name: "generates_new_request_id",
			validate: func(t *testing.T, resp *http.Response) {
				id := resp.Header.Get("X-Request-ID")
				assert.Len(t, id, 36)
				assert.Equal(t, id, seen)
			},
		},
		{
			name:     "uses_existing_request_id",
			existing: "existing-id-123",
			validate: func(t *testing.T, resp *http.Response) {
				assert.Equal(t, "existing-id-123", resp.Header.Get("X-Request-ID"))
				assert.Equal(t, "existing-id-123", seen)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.existing != "" {
				req.Header.Set("X-Request-ID", tt.existing)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)
			tt.validate(t, w.Result())
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(&logger.LogConfig{Level: "info", Format: "json"}, &buf)
	wrapped := middleware.Logger(log)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/test?q=coffee", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.EqualValues(t, 200, entry["status"])
	assert.EqualValues(t, 2, entry["bytes"])
	assert.Equal(t, "q=coffee", entry["query"])
	assert.Equal(t, "/test", entry["path"])
	assert.Contains(t, entry, "duration_ms")
}

func TestRecovery(t *testing.T) {
	tests := []struct {
		name           string
		handler        http.HandlerFunc
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "recovers_from_panic",
			handler: func(http.ResponseWriter, *http.Request) {
				panic("test panic")
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"internal server error"`,
		},
		{
			name:           "passes_through_normal_response",
			handler:        okHandler,
			expectedStatus: http.StatusOK,
			expectedBody:   "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := middleware.Recovery(helpers.TestLogger())(tt.handler)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req = req.WithContext(logger.WithValue(req.Context(), logger.ContextKeyRequestID, "test-123"))
			w := httptest.NewRecorder()

			wrapped.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
		})
	}
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wrapped := middleware.RateLimit(ctx, 2, time.Minute)(http.HandlerFunc(okHandler))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "127.0.0.1:1234"
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	req.RemoteAddr = "192.168.1.1:5678"
	w = httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		origin         string
		method         string
		preflight      bool
		expectedStatus int
		checkHeaders   func(*testing.T, http.Header)
	}{
		{
			name:           "allows_wildcard_origin",
			allowedOrigins: []string{"*"},
			origin:         "https://till.example.com",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			checkHeaders: func(t *testing.T, h http.Header) {
				assert.Equal(t, "https://till.example.com", h.Get("Access-Control-Allow-Origin"))
			},
		},
		{
			name:           "allows_specific_origin",
			allowedOrigins: []string{"https://till.example.com", "https://office.example.com"},
			origin:         "https://office.example.com",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			checkHeaders: func(t *testing.T, h http.Header) {
				assert.Equal(t, "https://office.example.com", h.Get("Access-Control-Allow-Origin"))
			},
		},
		{
			name:           "handles_preflight_request",
			allowedOrigins: []string{"*"},
			origin:         "https://till.example.com",
			method:         http.MethodOptions,
			preflight:      true,
			expectedStatus: http.StatusNoContent,
			checkHeaders: func(t *testing.T, h http.Header) {
				assert.NotEmpty(t, h.Get("Access-Control-Allow-Methods"))
				assert.Contains(t, h.Get("Access-Control-Allow-Headers"), "Authorization")
			},
		},
		{
			name:           "blocks_unallowed_origin",
			allowedOrigins: []string{"https://allowed.com"},
			origin:         "https://notallowed.com",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			checkHeaders: func(t *testing.T, h http.Header) {
				assert.Empty(t, h.Get("Access-Control-Allow-Origin"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := middleware.CORS(tt.allowedOrigins)(http.HandlerFunc(okHandler))

			req := httptest.NewRequest(tt.method, "/test", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()

			wrapped.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.checkHeaders(t, w.Header())
		})
	}
}

func TestSecureHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	middleware.SecureHeaders(http.HandlerFunc(okHandler)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestRequireSession(t *testing.T) {
	owner := &domain.Session{Username: "owner", Name: "Store Owner", Role: domain.RoleOwner}

	tests := []struct {
		name           string
		header         string
		setup          func(auth *mocks.MockAuthService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "valid_token",
			header: "Bearer good-token",
			setup: func(auth *mocks.MockAuthService) {
				auth.EXPECT().Authenticate(gomock.Any(), "good-token").Return(owner, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "Store Owner",
		},
		{
			name:   "missing_token",
			header: "",
			setup: func(auth *mocks.MockAuthService) {
				auth.EXPECT().Authenticate(gomock.Any(), "").Return(nil, domain.ErrUnauthenticated)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "authentication required",
		},
		{
			name:   "expired_session",
			header: "bearer old-token",
			setup: func(auth *mocks.MockAuthService) {
				auth.EXPECT().Authenticate(gomock.Any(), "old-token").Return(nil, domain.ErrSessionExpired)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "session expired",
		},
		{
			name:   "store_failure",
			header: "Bearer good-token",
			setup: func(auth *mocks.MockAuthService) {
				auth.EXPECT().Authenticate(gomock.Any(), "good-token").
					Return(nil, &domain.PersistenceError{Op: "read", Key: "pos_user", Err: context.DeadlineExceeded})
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			auth := mocks.NewMockAuthService(ctrl)
			tt.setup(auth)

			handler := middleware.RequireSession(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				s, ok := middleware.SessionFrom(r.Context())
				require.True(t, ok)
				_, _ = w.Write([]byte(s.Name))
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := middleware.RequireRole(domain.RoleOwner)(http.HandlerFunc(okHandler))

	tests := []struct {
		name           string
		session        *domain.Session
		expectedStatus int
	}{
		{name: "owner_allowed", session: &domain.Session{Role: domain.RoleOwner}, expectedStatus: http.StatusOK},
		{name: "employee_forbidden", session: &domain.Session{Role: domain.RoleEmployee}, expectedStatus: http.StatusForbidden},
		{name: "no_session", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/products", nil)
			if tt.session != nil {
				req = req.WithContext(middleware.WithSession(req.Context(), tt.session))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := middleware.Chain(http.HandlerFunc(okHandler), mw("first"), mw("second"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"first", "second"}, order)
}
