// Package telemetry wraps OpenTelemetry tracing and metrics around the
// tool boundary and the maturity scoring engine: one span per tool
// invocation and one gauge per maturity dimension. Tracing here is
// strictly best-effort — a telemetry failure must never block or fail a
// tool call, since that would make observability itself a new way to
// violate the kernel's fail-closed contract.
package telemetry

import (
	"context"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider is a thin, always-on wrapper around an OpenTelemetry tracer
// and meter scoped to the Kaiza kernel. The zero value is not usable;
// construct with New.
type Provider struct {
	tracer trace.Tracer
	meter  metric.Meter

	mu     sync.Mutex
	gauges map[string]float64 // maturity dimension name -> last observed value
	gauge  metric.Float64ObservableGauge
}

// New builds a process-lifetime Provider. When the standard
// OTEL_EXPORTER_OTLP_ENDPOINT variable is set, spans and metrics are
// shipped over OTLP/gRPC; otherwise the SDK providers still run
// in-process so the instruments are real and queryable by anything the
// deployer attaches later, without Kaiza's own code depending on that
// choice.
func New() (*Provider, func(context.Context) error, error) {
	var traceOpts []sdktrace.TracerProviderOption
	var metricOpts []sdkmetric.Option
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		ctx := context.Background()
		if exp, err := otlptracegrpc.New(ctx); err == nil {
			traceOpts = append(traceOpts, sdktrace.WithBatcher(exp))
		}
		if exp, err := otlpmetricgrpc.New(ctx); err == nil {
			metricOpts = append(metricOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
		}
	}

	tp := sdktrace.NewTracerProvider(traceOpts...)
	mp := sdkmetric.NewMeterProvider(metricOpts...)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	p := &Provider{
		tracer: tp.Tracer("kaiza"),
		meter:  mp.Meter("kaiza"),
		gauges: make(map[string]float64),
	}

	gauge, err := p.meter.Float64ObservableGauge(
		"kaiza.maturity.dimension",
		metric.WithDescription("Current score (1.0-5.0) per maturity dimension"),
	)
	if err == nil {
		p.gauge = gauge
		_, _ = p.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			p.mu.Lock()
			defer p.mu.Unlock()
			for dim, v := range p.gauges {
				o.ObserveFloat64(p.gauge, v, metric.WithAttributes(attribute.String("dimension", dim)))
			}
			return nil
		}, gauge)
	}

	shutdown := func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}
	return p, shutdown, nil
}

// ToolSpan starts a span around one tool invocation, tagged with the
// tool name, session role, and executing plan hash. Callers must always
// call the returned End func, typically via defer.
func (p *Provider) ToolSpan(ctx context.Context, toolName, role, planHash string) (context.Context, func()) {
	if p == nil {
		return ctx, func() {}
	}
	ctx, span := p.tracer.Start(ctx, "kaiza.tool."+toolName, trace.WithAttributes(
		attribute.String("tool.name", toolName),
		attribute.String("session.role", role),
		attribute.String("plan.hash", planHash),
	))
	return ctx, func() { span.End() }
}

// RecordMaturity updates the observable gauge for dimension to value.
// Safe to call with a nil Provider (no-op), so the maturity scoring
// tool never has to branch on whether telemetry is wired.
func (p *Provider) RecordMaturity(dimension string, value float64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gauges[dimension] = value
}
