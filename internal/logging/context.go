package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/listsync/internal/item"
)

type scopeCtxKey struct{}
type opCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation fields from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 5)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if scope, ok := ScopeFromContext(ctx); ok {
		fields = append(fields,
			zap.String("scope.user", scope.UserID),
			zap.String("scope.list", scope.ListID),
		)
	}
	if opID := OpIDFromContext(ctx); opID != "" {
		fields = append(fields, zap.String("op.id", opID))
	}
	return fields
}

// WithScope attaches the list scope being worked on.
func WithScope(ctx context.Context, scope item.Scope) context.Context {
	return context.WithValue(ctx, scopeCtxKey{}, scope)
}

// ScopeFromContext returns the scope set by WithScope.
func ScopeFromContext(ctx context.Context) (item.Scope, bool) {
	s, ok := ctx.Value(scopeCtxKey{}).(item.Scope)
	return s, ok
}

// WithOpID attaches a queued operation id.
func WithOpID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, opCtxKey{}, id)
}

// OpIDFromContext returns the id set by WithOpID.
func OpIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(opCtxKey{}).(string)
	return id
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}
