package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	stdoutmetric "go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// TracingConfig names the service that Provider's spans and metrics are
// attributed to.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
}

// Provider wraps an OpenTelemetry tracer and meter backed by stdout
// exporters. Unlike a production collector pipeline this never leaves the
// process; it exists so a library consumer can see span/metric shapes
// without standing up infrastructure, and so a real exporter can be swapped
// in later without touching call sites.
type Provider struct {
	cfg            TracingConfig
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
}

// NewProvider builds a Provider whose spans and metrics are written to
// stdout as they complete/export.
func NewProvider(cfg TracingConfig) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "palisade"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("building telemetry resource: %w", err)
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	return &Provider{
		cfg:            cfg,
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
		tracer:         tracerProvider.Tracer(cfg.ServiceName),
		meter:          meterProvider.Meter(cfg.ServiceName),
	}, nil
}

// Tracer returns the Provider's tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Meter returns the Provider's meter.
func (p *Provider) Meter() metric.Meter { return p.meter }

// StartSpan starts a span named for the tool call it wraps.
func (p *Provider) StartSpan(ctx context.Context, toolName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	spanOpts := append([]trace.SpanStartOption{
		trace.WithAttributes(attribute.String("palisade.tool_name", toolName)),
	}, opts...)
	return p.tracer.Start(ctx, "palisade.intercept", spanOpts...)
}

// Shutdown flushes and closes both providers, joining any errors from each.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
	}
	return errors.Join(errs...)
}
