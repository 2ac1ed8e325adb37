// Package telemetry wires OpenTelemetry tracing and metrics for listsync.
//
// Spans and metrics are exported over OTLP (gRPC or HTTP) to a collector.
// When export is disabled, Tracer and Meter return the otel globals, which
// are no-ops unless something else installed a provider.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx, span := tel.Tracer("listsync/engine").Start(ctx, "engine.Sync")
//	defer span.End()
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc
//	  sample_rate: 0.25
//
// Plaintext export is only allowed to loopback endpoints.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "engine.Load")
//	span.End()
//	tt.AssertSpanExists(t, "engine.Load")
package telemetry
