// Package otel configures OpenTelemetry tracing for divination processes.
package otel

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/divination/internal/platform/branding"
	"github.com/louisbranch/divination/internal/platform/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config selects the OTLP/HTTP exporter and sampling.
type Config struct {
	Endpoint string `env:"DIVINATION_OTEL_ENDPOINT"`
	// Enabled set to "false" turns tracing off even with an endpoint.
	Enabled     string  `env:"DIVINATION_OTEL_ENABLED"`
	SampleRatio float64 `env:"DIVINATION_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Active reports whether c exports spans.
func (c Config) Active() bool {
	return !strings.EqualFold(strings.TrimSpace(c.Enabled), "false") && strings.TrimSpace(c.Endpoint) != ""
}

// Sampler returns a parent-based sampler for SampleRatio.
func (c Config) Sampler() sdktrace.Sampler {
	switch {
	case c.SampleRatio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case c.SampleRatio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
	}
}

// Setup reads Config from the environment and initialises tracing for
// serviceName. Tracing is opt-in: without an endpoint, or with
// DIVINATION_OTEL_ENABLED=false, it returns a no-op shutdown and registers
// no global provider.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return noopShutdown, fmt.Errorf("otel config: %w", err)
	}
	return SetupWithConfig(ctx, serviceName, cfg)
}

// SetupWithConfig installs a batching tracer provider and W3C propagation.
// The returned shutdown flushes pending spans.
func SetupWithConfig(ctx context.Context, serviceName string, cfg Config) (func(context.Context) error, error) {
	if !cfg.Active() {
		return noopShutdown, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(strings.TrimSpace(cfg.Endpoint)))
	if err != nil {
		return noopShutdown, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceNamespace(strings.ToLower(branding.AppName)),
		),
	)
	if err != nil {
		return noopShutdown, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.Sampler()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func noopShutdown(context.Context) error { return nil }
