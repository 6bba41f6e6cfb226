// Package telemetry installs the global OpenTelemetry tracer provider and
// propagators. Spans cover pipeline builds and individual source fetches, and
// trace context is carried on render notifications.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Config names the service in exported spans.
type Config struct {
	ServiceName    string
	ServiceVersion string
}

// InitTracing installs a tracer provider and W3C trace-context propagation as
// the process globals. Extra options (span processors, samplers) are passed to
// the provider. The returned function flushes and stops the provider.
func InitTracing(ctx context.Context, cfg Config, opts ...sdktrace.TracerProviderOption) (func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "feedagg"
	}
	attrs := []resource.Option{resource.WithAttributes(semconv.ServiceName(cfg.ServiceName))}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.ServiceVersion)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(append([]sdktrace.TracerProviderOption{sdktrace.WithResource(res)}, opts...)...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer provider: %w", err)
		}
		return nil
	}, nil
}
