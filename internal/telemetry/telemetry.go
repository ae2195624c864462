// Package telemetry initializes OpenTelemetry tracing and metrics exporters
// and defines the router's instruments.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Shutdown flushes and stops the exporters.
type Shutdown func(ctx context.Context) error

// Init configures the global OpenTelemetry tracer and meter providers.
// If endpoint is empty, OTEL is disabled and no-op providers are used.
// Returns a shutdown function that must be called during graceful shutdown.
func Init(ctx context.Context, endpoint, serviceName, version string, insecure bool) (Shutdown, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
	}

	traceExp, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}

	metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		var firstErr error
		if err := tp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := mp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}, nil
}

// Meter returns the global meter for the given instrumentation scope.
func Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// Tracer returns the global tracer for the given instrumentation scope.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Instruments are the counters and histograms recorded by the turn loop.
// Creation errors leave the affected instrument as a no-op.
type Instruments struct {
	Turns        metric.Int64Counter
	ToolCalls    metric.Int64Counter
	Handoffs     metric.Int64Counter
	FatalErrors  metric.Int64Counter
	ToolDuration metric.Float64Histogram
	ModelLatency metric.Float64Histogram
}

// NewInstruments creates the router instruments on meter.
func NewInstruments(meter metric.Meter) *Instruments {
	turns, _ := meter.Int64Counter("vaxmesh.turns",
		metric.WithDescription("Model invocations by agent"))
	toolCalls, _ := meter.Int64Counter("vaxmesh.tool_calls",
		metric.WithDescription("Direct tool executions by tool and outcome"))
	handoffs, _ := meter.Int64Counter("vaxmesh.handoffs",
		metric.WithDescription("Delegations between agents"))
	fatal, _ := meter.Int64Counter("vaxmesh.fatal_errors",
		metric.WithDescription("Turn loops aborted by a fatal error"))
	toolDur, _ := meter.Float64Histogram("vaxmesh.tool.duration",
		metric.WithDescription("Tool execution time (ms)"), metric.WithUnit("ms"))
	modelLat, _ := meter.Float64Histogram("vaxmesh.model.duration",
		metric.WithDescription("Model invocation time (ms)"), metric.WithUnit("ms"))

	return &Instruments{
		Turns:        turns,
		ToolCalls:    toolCalls,
		Handoffs:     handoffs,
		FatalErrors:  fatal,
		ToolDuration: toolDur,
		ModelLatency: modelLat,
	}
}
