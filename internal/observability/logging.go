package observability

import (
	"context"
	"log/slog"
	"os"
)

// LogContext holds structured logging context information.
type LogContext struct {
	BuildID string
	Trigger string
	Stage   string
}

// logContextKeyType is used for context values.
type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithBuildID adds a build ID to the context.
func WithBuildID(ctx context.Context, buildID string) context.Context {
	lc := extractLogContext(ctx)
	lc.BuildID = buildID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithTrigger adds a build trigger (initial, cli, watch, schedule) to the context.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	lc := extractLogContext(ctx)
	lc.Trigger = trigger
	return context.WithValue(ctx, logContextKey, lc)
}

// WithStage adds a stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	lc := extractLogContext(ctx)
	lc.Stage = stage
	return context.WithValue(ctx, logContextKey, lc)
}

// extractLogContext retrieves or creates a LogContext from the context.
func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

// getLogAttrs returns slog attributes from the context's LogContext.
func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := []slog.Attr{}

	if lc.BuildID != "" {
		attrs = append(attrs, slog.String("build.id", lc.BuildID))
	}
	if lc.Trigger != "" {
		attrs = append(attrs, slog.String("trigger", lc.Trigger))
	}
	if lc.Stage != "" {
		attrs = append(attrs, slog.String("stage", lc.Stage))
	}

	return attrs
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelInfo, msg, allAttrs...)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelWarn, msg, allAttrs...)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelError, msg, allAttrs...)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelDebug, msg, allAttrs...)
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}

// Setup installs the process-wide default logger. Format is "text" or "json";
// anything else falls back to text.
func Setup(level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a config-level string to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
