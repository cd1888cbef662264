package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ironsheep/footprint-mcp/internal/logging"
)

// TracingConfig selects the span exporter.
type TracingConfig struct {
	// Exporter is "stdout" to print spans or empty/"none" to disable.
	// The stdout exporter writes to Writer (stderr when nil) since the
	// real stdout carries the protocol.
	Exporter    string
	ServiceName string
	Writer      io.Writer
}

// InitTracing installs a tracer provider and returns the function that
// flushes it.
func InitTracing(ctx context.Context, cfg TracingConfig, log logrus.FieldLogger) (func(context.Context) error, error) {
	log = logging.OrDiscard(log)

	switch strings.ToLower(strings.TrimSpace(cfg.Exporter)) {
	case "", "none", "off":
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug("tracing disabled")
		return func(context.Context) error { return nil }, nil
	case "stdout":
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	service := cfg.ServiceName
	if service == "" {
		service = "footprint-mcp"
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", service)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	log.WithField("service_name", service).Info("tracing enabled")
	return tp.Shutdown, nil
}

// ShutdownWithTimeout calls shutdown with a five second deadline and logs
// any failure.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logrus.FieldLogger) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logging.OrDiscard(log).WithError(err).Warn("tracing shutdown failed")
	}
}
