// Package logging builds the zap loggers used across listsync.
//
// Library packages take a plain *zap.Logger and default to zap.NewNop().
// Binaries build a *Logger here, which adds context-aware methods that
// attach trace and scope correlation fields:
//
//	ctx = logging.WithScope(ctx, scope)
//	logger.Info(ctx, "item added", zap.String("item_id", id))
//
// emits
//
//	{"level":"info","msg":"item added","trace_id":"...","scope.user":"u1","scope.list":"groceries","item_id":"..."}
//
// Fields named like credentials (token, authorization, ...) and values that
// look like bearer tokens are redacted before encoding. Output can also be
// exported as OpenTelemetry log records through the otelzap bridge.
package logging
