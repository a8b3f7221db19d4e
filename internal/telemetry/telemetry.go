// Package telemetry installs the OpenTelemetry providers: the tracer
// provider used for engine spans and the meter provider the metrics
// exporter publishes through.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config enables OTLP/HTTP trace export when Endpoint is set and metric
// export when MetricsEndpoint is set.
type Config struct {
	ServiceName string
	Endpoint    string
	// SampleRatio is the parent-based sampling ratio; zero samples everything.
	SampleRatio float64

	MetricsEndpoint string
	// MetricsInterval is the push period; zero keeps the SDK default.
	MetricsInterval time.Duration
}

// Setup returns the provider the engine should trace with and a shutdown
// function that flushes pending spans. Without an endpoint it returns a
// no-op provider and registers nothing globally.
func Setup(ctx context.Context, cfg Config) (trace.TracerProvider, func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }

	if cfg.Endpoint == "" {
		return noop.NewTracerProvider(), noopShutdown, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
	)
	if err != nil {
		return nil, noopShutdown, err
	}

	tp, err := newProvider(ctx, cfg, sdktrace.WithBatcher(exporter))
	if err != nil {
		return nil, noopShutdown, err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, tp.Shutdown, nil
}

// SetupMetrics returns the meter provider the metrics exporter should use
// and its shutdown function, which pushes a final collection. Without a
// metrics endpoint the provider is a no-op.
func SetupMetrics(ctx context.Context, cfg Config) (metric.MeterProvider, func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }

	if cfg.MetricsEndpoint == "" {
		return metricnoop.NewMeterProvider(), noopShutdown, nil
	}

	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpointURL(cfg.MetricsEndpoint),
	)
	if err != nil {
		return nil, noopShutdown, err
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.MetricsInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricsInterval))
	}
	mp, err := newMeterProvider(ctx, cfg, sdkmetric.NewPeriodicReader(exporter, readerOpts...))
	if err != nil {
		return nil, noopShutdown, err
	}

	otel.SetMeterProvider(mp)
	return mp, mp.Shutdown, nil
}

func newMeterProvider(ctx context.Context, cfg Config, reader sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	), nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "goauth-server"
	}
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(name),
		),
	)
}

func newProvider(ctx context.Context, cfg Config, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	opts = append(opts,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	return sdktrace.NewTracerProvider(opts...), nil
}
