package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Telemetry owns the tracer and meter providers for one process.
//
// Provider failures degrade to the global no-op providers rather than
// failing startup.
type Telemetry struct {
	config *Config

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	healthy  atomic.Bool
	degraded atomic.Bool
	lastErr  atomic.Pointer[error]
}

// New validates cfg and installs the OTLP providers as the otel globals.
//
// A disabled config yields an instance whose Tracer and Meter fall back to
// the globals.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{config: cfg}
	t.healthy.Store(true)

	if !cfg.Enabled {
		return t, nil
	}

	res := newResource(cfg)
	if tp, err := newTracerProvider(ctx, cfg, res); err == nil {
		t.tracerProvider = tp
		otel.SetTracerProvider(tp)
	} else {
		t.setDegraded(err)
	}
	if mp, err := newMeterProvider(ctx, cfg, res); err == nil {
		t.meterProvider = mp
		otel.SetMeterProvider(mp)
	} else {
		t.setDegraded(err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, nil
}

// Tracer returns a tracer for the given instrumentation scope.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	var tp oteltrace.TracerProvider = otel.GetTracerProvider()
	if t != nil && t.tracerProvider != nil {
		tp = t.tracerProvider
	}
	return tp.Tracer(name, opts...)
}

// Meter returns a meter for the given instrumentation scope.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return t.MeterProvider().Meter(name, opts...)
}

// MeterProvider returns the SDK provider when export is running and the
// otel global otherwise. The item server hands it to its HTTP middleware.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t != nil && t.meterProvider != nil {
		return t.meterProvider
	}
	return otel.GetMeterProvider()
}

// LoggerProvider returns the provider for the zap OTEL bridge.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	return global.GetLoggerProvider()
}

// exporter is the lifecycle surface shared by the SDK providers.
type exporter interface {
	ForceFlush(context.Context) error
	Shutdown(context.Context) error
}

// exporters lists the running providers by signal name.
func (t *Telemetry) exporters() map[string]exporter {
	out := make(map[string]exporter, 2)
	if t.tracerProvider != nil {
		out["traces"] = t.tracerProvider
	}
	if t.meterProvider != nil {
		out["metrics"] = t.meterProvider
	}
	return out
}

func (t *Telemetry) eachExporter(verb string, fn func(exporter) error) error {
	var errs []error
	for signal, exp := range t.exporters() {
		if err := fn(exp); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", signal, verb, err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops the providers. Without a deadline on ctx the
// configured shutdown timeout applies. Export stays off afterwards.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	defer t.healthy.Store(false)

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && t.config != nil {
		bounded, cancel := context.WithTimeout(ctx, t.config.ShutdownTimeout)
		defer cancel()
		ctx = bounded
	}
	return t.eachExporter("shutdown", func(exp exporter) error {
		return exp.Shutdown(ctx)
	})
}

// ForceFlush exports everything buffered so far.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.eachExporter("flush", func(exp exporter) error {
		return exp.ForceFlush(ctx)
	})
}

// HealthStatus reports provider state.
type HealthStatus struct {
	Healthy  bool
	Degraded bool
	LastErr  error
}

// Health snapshots provider state. A nil Telemetry reports degraded.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{Degraded: true}
	}
	var last error
	if p := t.lastErr.Load(); p != nil {
		last = *p
	}
	return HealthStatus{Healthy: t.healthy.Load(), Degraded: t.degraded.Load(), LastErr: last}
}

// IsEnabled reports whether export is configured and not yet shut down.
func (t *Telemetry) IsEnabled() bool {
	return t != nil && t.config != nil && t.config.Enabled && t.healthy.Load()
}

func (t *Telemetry) setDegraded(err error) {
	t.degraded.Store(true)
	t.lastErr.Store(&err)
}
