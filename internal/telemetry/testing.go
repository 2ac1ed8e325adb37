package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry is an enabled Telemetry whose spans and metrics stay in
// memory. It never touches the otel globals, so tests may run in parallel.
type TestTelemetry struct {
	*Telemetry

	spans   *tracetest.SpanRecorder
	metrics *sdkmetric.ManualReader
}

// NewTestTelemetry returns telemetry backed by a span recorder and a manual
// metric reader.
func NewTestTelemetry() *TestTelemetry {
	tt := &TestTelemetry{
		spans:   tracetest.NewSpanRecorder(),
		metrics: sdkmetric.NewManualReader(),
	}

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	tt.Telemetry = &Telemetry{
		config:         cfg,
		tracerProvider: trace.NewTracerProvider(trace.WithSpanProcessor(tt.spans)),
		meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(tt.metrics)),
	}
	tt.healthy.Store(true)
	return tt
}

// Spans returns the spans ended so far, oldest first.
func (tt *TestTelemetry) Spans() []trace.ReadOnlySpan {
	return tt.spans.Ended()
}

// SpanByName returns the first ended span called name, or nil.
func (tt *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	for _, s := range tt.spans.Ended() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func (tt *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if tt.SpanByName(name) == nil {
		tb.Errorf("no span %q among %v", name, tt.spanNames())
	}
}

// AssertSpanAttribute checks one attribute of the named span. Integer
// attributes compare as int64.
func (tt *TestTelemetry) AssertSpanAttribute(tb testing.TB, spanName, key string, expected any) {
	tb.Helper()
	s := tt.SpanByName(spanName)
	if s == nil {
		tb.Fatalf("no span %q among %v", spanName, tt.spanNames())
	}
	got, ok := lookupAttr(s.Attributes(), key)
	switch {
	case !ok:
		tb.Errorf("span %q has no attribute %q", spanName, key)
	case got != expected:
		tb.Errorf("span %q: %s = %v (%T), want %v (%T)", spanName, key, got, got, expected, expected)
	}
}

// Collect reads the current metric state from the manual reader.
func (tt *TestTelemetry) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if err := tt.metrics.Collect(ctx, &rm); err != nil {
		return metricdata.ResourceMetrics{}, err
	}
	return rm, nil
}

// MetricByName collects and returns the instrument called name.
func (tt *TestTelemetry) MetricByName(tb testing.TB, name string) (metricdata.Metrics, bool) {
	tb.Helper()
	rm, err := tt.Collect(context.Background())
	if err != nil {
		tb.Fatalf("collect metrics: %v", err)
	}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func (tt *TestTelemetry) spanNames() []string {
	var names []string
	for _, s := range tt.spans.Ended() {
		names = append(names, s.Name())
	}
	return names
}

func lookupAttr(attrs []attribute.KeyValue, key string) (any, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value.AsInterface(), true
		}
	}
	return nil, false
}
