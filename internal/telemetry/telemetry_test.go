package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestInitStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(Config{Exporter: ExporterStdout, ServiceName: "castcrawler-test"}, "v0.0.1", &buf)
	require.NoError(t, err)

	ctx, span := Tracer().Start(context.Background(), "crawler.Run")
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.NotEmpty(t, carrier.Get("traceparent"))
	assert.Contains(t, buf.String(), "\n\t\"Name\": \"crawler.Run\"", "spans are indented one field per line")
	assert.Contains(t, buf.String(), "castcrawler-test")
}

func TestInitWithoutExporter(t *testing.T) {
	shutdown, err := Init(Config{}, "", nil)
	require.NoError(t, err)
	_, span := Tracer().Start(context.Background(), "noop")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, shutdown(context.Background()))
}

func TestInitRejectsUnknownExporter(t *testing.T) {
	_, err := Init(Config{Exporter: "jaeger"}, "", nil)
	require.ErrorContains(t, err, `unknown trace exporter "jaeger"`)
}
