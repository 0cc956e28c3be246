// Package telemetry configures OpenTelemetry tracing for crawl runs, API
// requests and published run events.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/JakeFAU/castcrawler"

// Supported span exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// Config selects where spans go.
type Config struct {
	// Exporter is "none" (spans are created and propagated but dropped) or "stdout".
	Exporter    string `mapstructure:"exporter"`
	ServiceName string `mapstructure:"service_name"`
}

// Init installs the global tracer provider and the W3C trace-context
// propagator. Stdout spans are written to w. The returned func flushes
// pending spans and stops the provider.
func Init(cfg Config, version string, w io.Writer) (func(context.Context) error, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "castcrawler"
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(name),
			semconv.ServiceVersion(version),
		)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}

	switch cfg.Exporter {
	case "", ExporterNone:
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unknown trace exporter %q (want %s or %s)", cfg.Exporter, ExporterNone, ExporterStdout)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
	)
	return tp.Shutdown, nil
}

// Tracer returns the tracer shared by castcrawler packages.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
