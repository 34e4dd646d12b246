// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ContextKey represents keys for context values
type ContextKey string

const (
	// Context keys for logging
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyUserID    ContextKey = "user_id"
	ContextKeyClientIP  ContextKey = "client_ip"
	ContextKeyMethod    ContextKey = "method"
	ContextKeyPath      ContextKey = "path"
	ContextKeyTaskID    ContextKey = "task_id"
)

var contextKeys = []ContextKey{
	ContextKeyRequestID,
	ContextKeyUserID,
	ContextKeyClientIP,
	ContextKeyMethod,
	ContextKeyPath,
	ContextKeyTaskID,
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string
	Format      string // json, text
	AddSource   bool
	ServiceName string
	Version     string
	Environment string
}

// SetupLogger builds the process logger and installs it as the slog default
func SetupLogger(level string, format string) *slog.Logger {
	logger := NewLogger(&LogConfig{
		Level:       level,
		Format:      format,
		AddSource:   level == "debug",
		ServiceName: os.Getenv("SERVICE_NAME"),
		Version:     os.Getenv("SERVICE_VERSION"),
		Environment: os.Getenv("APP_ENV"),
	}, os.Stdout)
	slog.SetDefault(logger)
	return logger
}

// NewLogger creates a logger writing to w
func NewLogger(config *LogConfig, w io.Writer) *slog.Logger {
	if config == nil {
		config = &LogConfig{Level: "info", Format: "json"}
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(config.Level),
		AddSource: config.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			return replaceAttr(config, groups, a)
		},
	}

	var handler slog.Handler
	switch config.Format {
	case "text":
		handler = newConsoleHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	handler = redactingHandler{contextHandler{handler}}

	var attrs []slog.Attr
	if config.ServiceName != "" {
		attrs = append(attrs, slog.String("app", config.ServiceName))
	}
	if config.Version != "" {
		attrs = append(attrs, slog.String("version", config.Version))
	}
	if config.Environment != "" {
		attrs = append(attrs, slog.String("env", config.Environment))
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}

	return slog.New(handler)
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithValue stores a loggable value under key
func WithValue(ctx context.Context, key ContextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// RequestID returns the request id carried by ctx
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

func extractContextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}

func replaceAttr(config *LogConfig, _ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.Format(time.RFC3339Nano))
		}
	}

	// Rename level key for log aggregators
	if a.Key == slog.LevelKey && config.Format == "json" {
		a.Key = "severity"
	}

	if strings.HasSuffix(a.Key, "_ms") {
		if d, ok := a.Value.Any().(time.Duration); ok {
			a.Value = slog.Float64Value(float64(d.Milliseconds()))
		}
	}

	return a
}
