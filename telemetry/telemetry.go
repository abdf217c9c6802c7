// Package telemetry exports OpenTelemetry spans for the phases of a
// simulation run: load, translate, optimize, jit and run.
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Phase names used as span names.
const (
	PhaseLoad      = "load"
	PhaseTranslate = "translate"
	PhaseOptimize  = "optimize"
	PhaseJIT       = "jit"
	PhaseRun       = "run"
)

const serviceName = "clustersim"

// TelemetryClient owns the tracer provider of a run.
type TelemetryClient struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	disabled bool // no-op client; spans are discarded
}

// NewNoOpTelemetryClient returns a client whose spans go nowhere.
func NewNoOpTelemetryClient() *TelemetryClient {
	return &TelemetryClient{
		tracer:   noop.NewTracerProvider().Tracer(serviceName),
		disabled: true,
	}
}

// NewTelemetryClient exports spans over OTLP/HTTP to endpoint (host:port or
// an http(s) URL).
func NewTelemetryClient(ctx context.Context, endpoint string) (*TelemetryClient, error) {
	var opt otlptracehttp.Option
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		opt = otlptracehttp.WithEndpointURL(endpoint)
	} else {
		opt = otlptracehttp.WithEndpoint(endpoint)
	}
	opts := []otlptracehttp.Option{opt}
	if !strings.HasPrefix(endpoint, "https://") {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter %s: %w", endpoint, err)
	}
	return newClient(sdktrace.WithBatcher(exp)), nil
}

// NewTelemetryClientWithExporter is used by tests to capture spans.
func NewTelemetryClientWithExporter(exp sdktrace.SpanExporter) *TelemetryClient {
	return newClient(sdktrace.WithSyncer(exp))
}

func newClient(opt sdktrace.TracerProviderOption) *TelemetryClient {
	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))
	tp := sdktrace.NewTracerProvider(opt, sdktrace.WithResource(res))
	return &TelemetryClient{provider: tp, tracer: tp.Tracer(serviceName)}
}

// Enabled reports whether spans are exported.
func (c *TelemetryClient) Enabled() bool { return !c.disabled }

// Phase starts a span for one phase. The returned function ends it and
// records err, if any.
func (c *TelemetryClient) Phase(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := c.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int64("elapsed_us", time.Since(start).Microseconds()))
		span.End()
	}
}

// Close flushes pending spans.
func (c *TelemetryClient) Close(ctx context.Context) error {
	if c.provider == nil {
		return nil
	}
	return c.provider.Shutdown(ctx)
}

// Cluster and Hart are the attributes attached to per-cluster and per-hart
// spans.
func Cluster(i int) attribute.KeyValue { return attribute.Int("cluster", i) }

func Hart(id uint32) attribute.KeyValue { return attribute.Int64("hart", int64(id)) }
