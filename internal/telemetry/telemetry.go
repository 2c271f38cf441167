// Package telemetry wires OpenTelemetry tracing and metrics for the match runtime.
package telemetry

import (
	"context"
	"errors"

	"github.com/caarlos0/env/v11"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "paddleduel"

// Config selects the OTLP collector. Exporters are installed only when Enabled.
type Config struct {
	Enabled     bool    `env:"OTEL_ENABLED"`
	Endpoint    string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4317"`
	SampleRate  float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"paddleduel"`
}

// ParseConfig reads DUEL_OTEL_* variables from environ.
func ParseConfig(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ, Prefix: "DUEL_"}); err != nil {
		return cfg, eris.Wrap(err, "parse telemetry env")
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return cfg, eris.Errorf("trace sample rate must be between 0 and 1, got %f", cfg.SampleRate)
	}
	return cfg, nil
}

// Init installs global trace and meter providers and returns a shutdown func.
// With telemetry disabled the no-op globals stay in place and shutdown does nothing.
func Init(ctx context.Context, environ map[string]string, logger runtime.Logger) (func(context.Context) error, error) {
	var shutdownFuncs []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	cfg, err := ParseConfig(environ)
	if err != nil {
		return shutdown, err
	}

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	if !cfg.Enabled {
		logger.Debug("Telemetry: exporters disabled")
		return shutdown, nil
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServiceName),
	)

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return shutdown, eris.Wrap(err, "failed to create otlp trace exporter")
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithInsecure())
	if err != nil {
		return shutdown, errors.Join(eris.Wrap(err, "failed to create otlp metric exporter"), shutdown(ctx))
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	logger.Info("Telemetry: exporting to %s (sample rate %.2f)", cfg.Endpoint, cfg.SampleRate)
	return shutdown, nil
}

// Tracer returns the tracer used for RPC spans.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
