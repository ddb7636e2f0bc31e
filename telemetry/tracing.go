// Package telemetry installs the process-wide OpenTelemetry tracer provider.
//
// Spans are opened by the api package through the global provider. Without
// Setup they are no-ops; after Setup every request carries a real trace id
// and, with the stdout exporter, finished spans are written as JSON.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names accepted by Setup.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// ServiceName is reported on every span.
const ServiceName = "vip-engine"

// ShutdownFunc flushes pending spans and releases the provider.
type ShutdownFunc func(ctx context.Context) error

// Setup installs a tracer provider for the named exporter on stdout.
func Setup(exporter string) (ShutdownFunc, error) {
	return SetupWriter(os.Stdout, exporter)
}

// SetupWriter is Setup with an explicit destination for the stdout exporter.
//
// "none" still installs a sampling provider so trace ids are real; spans
// are just not exported anywhere.
func SetupWriter(w io.Writer, exporter string) (ShutdownFunc, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", ServiceName),
		)),
	}

	switch strings.ToLower(exporter) {
	case "", ExporterNone:
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unknown trace exporter: %s", exporter)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
