// Package observability provides OpenTelemetry tracing for the govengine.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// TracingConfig controls trace export. SampleRatio outside (0, 1] means
// sample everything.
type TracingConfig struct {
	ServiceName  string
	OTLPEndpoint string
	SampleRatio  float64
}

// InitTracer wires the global tracer provider to an OTLP gRPC exporter
// and installs W3C context propagation. The returned function flushes and
// shuts the provider down; call it on service termination.
func InitTracer(serviceName, otlpEndpoint string) (func(context.Context) error, error) {
	return InitTracerWithConfig(TracingConfig{
		ServiceName:  serviceName,
		OTLPEndpoint: otlpEndpoint,
	})
}

// InitTracerWithConfig is InitTracer with explicit sampling control.
func InitTracerWithConfig(cfg TracingConfig) (func(context.Context) error, error) {
	ctx := context.Background()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(), // Use TLS in production
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}
