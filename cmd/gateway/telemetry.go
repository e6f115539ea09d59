package main

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/nanobridge/orchestrator/internal/config"
)

// shutdownGrace bounds how long graceful shutdown (draining brokers,
// flushing the background processor, exporting remaining spans) is
// allowed to run before the process exits anyway.
const shutdownGrace = 10 * time.Second

// setupTelemetry wires the real OpenTelemetry SDK tracer provider behind
// the global otel.Tracer used by internal/tracing.Collector, exporting
// to an OTLP collector when cfg.Telemetry.Enabled. With telemetry
// disabled (the default for standalone mode) it leaves the no-op global
// tracer in place and returns a nil shutdown func.
func setupTelemetry(cfg *config.Config) (func(context.Context), error) {
	tc := cfg.Telemetry
	if !tc.Enabled || tc.Endpoint == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exporter, err := newOTLPExporter(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build exporter: %w", err)
	}

	serviceName := tc.ServiceName
	if serviceName == "" {
		serviceName = "nanobridge-gateway"
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func(shutdownCtx context.Context) {
		_ = tp.Shutdown(shutdownCtx)
	}, nil
}

func newOTLPExporter(ctx context.Context, tc config.TelemetryConfig) (*otlptrace.Exporter, error) {
	headers := tc.Headers

	if tc.Protocol == "http" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(tc.Endpoint)}
		if tc.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(headers))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(tc.Endpoint)}
	if tc.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}
