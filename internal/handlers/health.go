// internal/handlers/health.go
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/pkg/config"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store     ports.KeyValueStore
	database  ports.Database
	redis     redis.UniversalClient
	inspector *asynq.Inspector
	config    *config.Config
	logger    *slog.Logger
	startTime time.Time
}

// HealthOption attaches an optional dependency to the health report
type HealthOption func(*HealthHandler)

// WithDatabase reports PostgreSQL pool health
func WithDatabase(db ports.Database) HealthOption {
	return func(h *HealthHandler) { h.database = db }
}

// WithRedis reports Redis connectivity
func WithRedis(client redis.UniversalClient) HealthOption {
	return func(h *HealthHandler) { h.redis = client }
}

// WithInspector reports the task queues
func WithInspector(inspector *asynq.Inspector) HealthOption {
	return func(h *HealthHandler) { h.inspector = inspector }
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store ports.KeyValueStore, cfg *config.Config, logger *slog.Logger, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{
		store:     store,
		config:    cfg,
		logger:    logger.With(slog.String("handler", "health")),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthStatus represents the health status of the application
type HealthStatus struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version"`
	Environment string                 `json:"environment"`
	StoreDriver string                 `json:"store_driver"`
	Uptime      string                 `json:"uptime"`
	Timestamp   time.Time              `json:"timestamp"`
	Services    map[string]ServiceInfo `json:"services"`
	System      SystemInfo             `json:"system"`
}

// ServiceInfo represents the status of a service dependency
type ServiceInfo struct {
	Status       string                 `json:"status"`
	Message      string                 `json:"message,omitempty"`
	ResponseTime string                 `json:"response_time,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// SystemInfo represents system-level information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	MemoryAllocMB uint64 `json:"memory_alloc_mb"`
	NumGC         uint32 `json:"num_gc"`
}

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
)

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := HealthStatus{
		Status:      statusHealthy,
		Version:     h.config.App.Version,
		Environment: h.config.App.Environment,
		StoreDriver: h.config.Store.Driver,
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:   time.Now(),
		Services:    h.checkAll(ctx),
		System:      systemInfo(),
	}

	for _, svc := range health.Services {
		if svc.Status != statusHealthy {
			health.Status = statusDegraded
		}
	}

	status := http.StatusOK
	if health.Status != statusHealthy {
		status = http.StatusServiceUnavailable
	}
	h.write(ctx, w, status, health)
}

// Readiness handles GET /ready. Only the ledger store gates readiness.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ready := true
	details := map[string]string{"store": "ready"}
	if err := h.store.Ping(ctx); err != nil {
		ready = false
		details["store"] = "not ready"
		h.logger.WarnContext(ctx, "store not ready", slog.String("error", err.Error()))
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	h.write(ctx, w, status, map[string]interface{}{"ready": ready, "details": details})
}

// checkAll checks every configured dependency concurrently
func (h *HealthHandler) checkAll(ctx context.Context) map[string]ServiceInfo {
	checks := map[string]func(context.Context) ServiceInfo{
		"store": h.checkStore,
	}
	if h.database != nil {
		checks["database"] = h.checkDatabase
	}
	if h.redis != nil {
		checks["redis"] = h.checkRedis
	}
	if h.inspector != nil {
		checks["queues"] = h.checkQueues
	}

	var (
		mu       sync.Mutex
		services = make(map[string]ServiceInfo, len(checks))
		g        errgroup.Group
	)
	for name, check := range checks {
		g.Go(func() error {
			start := time.Now()
			info := check(ctx)
			info.ResponseTime = time.Since(start).String()

			mu.Lock()
			services[name] = info
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return services
}

func (h *HealthHandler) checkStore(ctx context.Context) ServiceInfo {
	if err := h.store.Ping(ctx); err != nil {
		return h.unhealthy(ctx, "store", err)
	}
	return ServiceInfo{Status: statusHealthy}
}

func (h *HealthHandler) checkDatabase(ctx context.Context) ServiceInfo {
	if err := h.database.Ping(ctx); err != nil {
		return h.unhealthy(ctx, "database", err)
	}
	return ServiceInfo{Status: statusHealthy, Details: h.database.Health(ctx)}
}

func (h *HealthHandler) checkRedis(ctx context.Context) ServiceInfo {
	pong, err := h.redis.Ping(ctx).Result()
	if err != nil {
		return h.unhealthy(ctx, "redis", err)
	}

	stats := h.redis.PoolStats()
	return ServiceInfo{
		Status: statusHealthy,
		Details: map[string]interface{}{
			"ping":        pong,
			"total_conns": stats.TotalConns,
			"idle_conns":  stats.IdleConns,
			"stale_conns": stats.StaleConns,
		},
	}
}

func (h *HealthHandler) checkQueues(ctx context.Context) ServiceInfo {
	queues, err := h.inspector.Queues()
	if err != nil {
		return h.unhealthy(ctx, "queues", err)
	}

	details := make(map[string]interface{}, len(queues))
	for _, queue := range queues {
		q, err := h.inspector.GetQueueInfo(queue)
		if err != nil {
			continue
		}
		details[queue] = map[string]interface{}{
			"size":     q.Size,
			"active":   q.Active,
			"pending":  q.Pending,
			"retry":    q.Retry,
			"archived": q.Archived,
		}
	}
	return ServiceInfo{Status: statusHealthy, Details: details}
}

func (h *HealthHandler) unhealthy(ctx context.Context, name string, err error) ServiceInfo {
	h.logger.ErrorContext(ctx, name+" health check failed", slog.String("error", err.Error()))
	return ServiceInfo{Status: statusUnhealthy, Message: err.Error()}
}

func (h *HealthHandler) write(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(ctx, "failed to encode health response",
			slog.String("error", err.Error()))
	}
}

func systemInfo() SystemInfo {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		MemoryAllocMB: mem.Alloc / 1024 / 1024,
		NumGC:         mem.NumGC,
	}
}
