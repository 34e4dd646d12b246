// internal/handlers/middleware/middleware.go
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/pkg/logger"
)

// DefaultRequestIDHeader carries the request id in and out
const DefaultRequestIDHeader = "X-Request-ID"

type sessionKey struct{}

// Chain applies middlewares so the first one is outermost
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RequestID adds a unique request ID to each request, reusing one set by a proxy
func RequestID(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultRequestIDHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(header)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := logger.WithValue(r.Context(), logger.ContextKeyRequestID, requestID)
			w.Header().Set(header, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Logger logs one line per request. Server errors log at error, client
// errors and requests slower than two seconds at warn.
func Logger(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.WithValue(r.Context(), logger.ContextKeyClientIP, getClientIP(r))
			ctx = logger.WithValue(ctx, logger.ContextKeyMethod, r.Method)
			ctx = logger.WithValue(ctx, logger.ContextKeyPath, r.URL.Path)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			began := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))
			took := time.Since(began)

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			} else if rec.status >= http.StatusBadRequest || took > slowRequest {
				level = slog.LevelWarn
			}

			attrs := []slog.Attr{
				slog.Int("status", rec.status),
				slog.Int("bytes", rec.bytes),
				slog.Duration("duration_ms", took),
			}
			if r.URL.RawQuery != "" {
				attrs = append(attrs, slog.String("query", r.URL.RawQuery))
			}
			l.LogAttrs(ctx, level, "request completed", attrs...)
		})
	}
}

const slowRequest = 2 * time.Second

// Recovery turns panics into a 500 response
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					l.ErrorContext(r.Context(), "panic recovered",
						slog.Any("error", err),
						slog.String("stack", string(debug.Stack())),
					)
					writeError(w, r, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit gives each client IP a token bucket refilled at requests per
// window. Buckets idle for ten minutes are dropped until ctx ends.
func RateLimit(ctx context.Context, requests int, window time.Duration) func(http.Handler) http.Handler {
	buckets := newBucketSet(rate.Every(window/time.Duration(max(requests, 1))), requests)
	go buckets.sweep(ctx, 10*time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !buckets.allow(getClientIP(r)) {
				w.Header().Set("Retry-After", "1")
				writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS handles Cross-Origin Resource Sharing
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && originAllowed(allowedOrigins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Authorization, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// SecureHeaders adds security headers
func SecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// RequireSession rejects requests without a valid bearer token and puts the
// session into the request context.
func RequireSession(auth ports.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := auth.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrSessionExpired):
					writeError(w, r, http.StatusUnauthorized, "session expired")
				case errors.Is(err, domain.ErrUnauthenticated):
					writeError(w, r, http.StatusUnauthorized, "authentication required")
				default:
					writeError(w, r, http.StatusServiceUnavailable, "session store unavailable")
				}
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, session)
			ctx = logger.WithValue(ctx, logger.ContextKeyUserID, session.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows only sessions holding one of roles. It must run inside
// RequireSession.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFrom(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			for _, role := range roles {
				if session.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, http.StatusForbidden, domain.ErrForbidden.Error())
		})
	}
}

// SessionFrom returns the session attached by RequireSession
func SessionFrom(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*domain.Session)
	return s, ok && s != nil
}

// WithSession attaches a session to ctx
func WithSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// BearerToken extracts the token of an "Authorization: Bearer" header
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{"error": message}
	if id := logger.RequestID(r.Context()); id != "" {
		body["request_id"] = id
	}
	_ = json.NewEncoder(w).Encode(body)
}

// statusRecorder remembers the status and body size written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status, rw.wroteHeader = code, true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.WriteHeader(http.StatusOK)
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *statusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

type bucket struct {
	*rate.Limiter
	lastSeen time.Time
}

// bucketSet holds one limiter per client
type bucketSet struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	clients map[string]*bucket
}

func newBucketSet(every rate.Limit, burst int) *bucketSet {
	return &bucketSet{every: every, burst: burst, clients: make(map[string]*bucket)}
}

func (s *bucketSet) allow(client string) bool {
	s.mu.Lock()
	b, ok := s.clients[client]
	if !ok {
		b = &bucket{Limiter: rate.NewLimiter(s.every, s.burst)}
		s.clients[client] = b
	}
	b.lastSeen = time.Now()
	s.mu.Unlock()
	return b.Allow()
}

func (s *bucketSet) sweep(ctx context.Context, idle time.Duration) {
	ticker := time.NewTicker(idle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for client, b := range s.clients {
				if now.Sub(b.lastSeen) > idle {
					delete(s.clients, client)
				}
			}
			s.mu.Unlock()
		}
	}
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
