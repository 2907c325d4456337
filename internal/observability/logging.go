// Package observability carries structured logging context through the
// store: which user, module, mutation, and sync cycle an operation belongs
// to, without threading those values through every signature.
package observability

import (
	"context"
	"log/slog"
)

// LogContext holds the structured logging fields for store operations.
type LogContext struct {
	UserID       string
	Module       string
	MutationType string
	ActionType   string
	SyncCycle    uint64
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithUserID adds a user id to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	lc := extractLogContext(ctx)
	lc.UserID = userID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithModule adds a module name to the context.
func WithModule(ctx context.Context, module string) context.Context {
	lc := extractLogContext(ctx)
	lc.Module = module
	return context.WithValue(ctx, logContextKey, lc)
}

// WithMutationType adds a mutation type to the context.
func WithMutationType(ctx context.Context, mutationType string) context.Context {
	lc := extractLogContext(ctx)
	lc.MutationType = mutationType
	return context.WithValue(ctx, logContextKey, lc)
}

// WithActionType adds a dispatched action type to the context.
func WithActionType(ctx context.Context, actionType string) context.Context {
	lc := extractLogContext(ctx)
	lc.ActionType = actionType
	return context.WithValue(ctx, logContextKey, lc)
}

// WithSyncCycle adds a sync cycle number to the context.
func WithSyncCycle(ctx context.Context, cycle uint64) context.Context {
	lc := extractLogContext(ctx)
	lc.SyncCycle = cycle
	return context.WithValue(ctx, logContextKey, lc)
}

func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := []slog.Attr{}

	if lc.UserID != "" {
		attrs = append(attrs, slog.String("user.id", lc.UserID))
	}
	if lc.Module != "" {
		attrs = append(attrs, slog.String("module", lc.Module))
	}
	if lc.MutationType != "" {
		attrs = append(attrs, slog.String("mutation.type", lc.MutationType))
	}
	if lc.ActionType != "" {
		attrs = append(attrs, slog.String("action.type", lc.ActionType))
	}
	if lc.SyncCycle != 0 {
		attrs = append(attrs, slog.Uint64("sync.cycle", lc.SyncCycle))
	}
	return attrs
}

// InfoContext logs an info message with context fields.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	allAttrs := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, slog.LevelInfo, msg, allAttrs...)
}

// WarnContext logs a warning message with context fields.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	allAttrs := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, slog.LevelWarn, msg, allAttrs...)
}

// ErrorContext logs an error message with context fields.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	allAttrs := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, slog.LevelError, msg, allAttrs...)
}

// DebugContext logs a debug message with context fields.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	allAttrs := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, slog.LevelDebug, msg, allAttrs...)
}
