// Package observability provides OpenTelemetry tracing and metrics for the
// governance core: turn rate/errors/duration plus per-disposition counters.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // gRPC, e.g. "localhost:4317"
	Enabled        bool
}

// Provider owns the trace and metric pipelines and the turn instruments.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	logger         *slog.Logger

	turnCounter  metric.Int64Counter
	turnErrors   metric.Int64Counter
	turnDuration metric.Float64Histogram
	dispositions metric.Int64Counter
}

// NewProvider sets up OTLP export. With Enabled=false it installs no
// exporters and every instrument is a no-op recorder.
func NewProvider(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{logger: logger}

	if !cfg.Enabled {
		p.tracer = otel.Tracer("keel")
		return p, p.initInstruments(otel.Meter("keel"))
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: trace exporter: %w", err)
	}
	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: metric exporter: %w", err)
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(p.meterProvider)

	p.tracer = p.tracerProvider.Tracer("keel")
	return p, p.initInstruments(p.meterProvider.Meter("keel"))
}

func (p *Provider) initInstruments(meter metric.Meter) error {
	var err error
	if p.turnCounter, err = meter.Int64Counter("keel.turns.total",
		metric.WithDescription("Chat turns processed")); err != nil {
		return err
	}
	if p.turnErrors, err = meter.Int64Counter("keel.turns.errors",
		metric.WithDescription("Chat turns that failed before a terminal disposition")); err != nil {
		return err
	}
	if p.turnDuration, err = meter.Float64Histogram("keel.turns.duration_seconds",
		metric.WithDescription("End-to-end turn latency")); err != nil {
		return err
	}
	if p.dispositions, err = meter.Int64Counter("keel.validations.dispositions",
		metric.WithDescription("Validation outcomes by disposition")); err != nil {
		return err
	}
	return nil
}

// StartTurnSpan opens the span wrapping one orchestrated turn.
func (p *Provider) StartTurnSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "keel.turn",
		trace.WithAttributes(attribute.String("keel.session_id", sessionID)))
}

// RecordTurn records one completed turn.
func (p *Provider) RecordTurn(ctx context.Context, disposition string, duration time.Duration, failed bool) {
	p.turnCounter.Add(ctx, 1)
	p.turnDuration.Record(ctx, duration.Seconds())
	if failed {
		p.turnErrors.Add(ctx, 1)
		return
	}
	p.dispositions.Add(ctx, 1, metric.WithAttributes(attribute.String("disposition", disposition)))
}

// Shutdown flushes both pipelines.
func (p *Provider) Shutdown(ctx context.Context) error {
	var firstErr error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
