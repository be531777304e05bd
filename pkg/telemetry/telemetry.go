// Package telemetry initializes the global OpenTelemetry tracer provider
// used by otelecho (HTTP request spans) and pkg/logger (trace/span id
// correlation in structured logs).
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config holds configuration for OpenTelemetry tracing.
type Config struct {
	// ServiceName identifies this service in traces.
	ServiceName string `env:"OTEL_SERVICE_NAME" env-default:"busgateway"`
}

// Init installs a sampling TracerProvider and a tracecontext propagator as
// the process-wide defaults, and returns a shutdown function to call on
// graceful exit. There is no span exporter wired here: the gateway emits
// trace_id/span_id for log correlation (pkg/logger) rather than exporting
// spans to a collector, so this stays a local, dependency-free provider.
func Init(_ Config) (func(context.Context) error, error) {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}
