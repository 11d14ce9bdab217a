package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/propagators/autoprop"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/genops-ai/genops-go/config"
)

const scopeName = "github.com/genops-ai/genops-go"

// Telemetry bundles the tracer, metric instruments and propagator used by
// tracked operations. A zero-exporter configuration yields noop providers,
// so callers never need to branch on whether telemetry is enabled.
type Telemetry struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	metrics    *Metrics
	logger     *zap.Logger

	// registry is non-nil only when the prometheus metrics exporter is
	// selected; the admin server scrapes it.
	registry *prometheus.Registry

	// active reports whether any exporter was wired, as opposed to the
	// noop providers used when telemetry is disabled or unconfigured.
	active bool

	shutdowns []func(context.Context) error
}

// New configures OpenTelemetry from the telemetry section of the SDK
// configuration. The stdout writer receives console exporter output; pass
// os.Stdout in production.
func New(ctx context.Context, cfg config.TelemetryConfig, stdout io.Writer, logger *zap.Logger) (*Telemetry, error) {
	t := &Telemetry{
		tracer:     tracenoop.NewTracerProvider().Tracer(scopeName),
		propagator: autoprop.NewTextMapPropagator(),
		logger:     logger,
	}

	if cfg.Disabled {
		t.metrics = newMetrics(metricnoop.NewMeterProvider().Meter(scopeName))
		logger.Debug("telemetry disabled")
		return t, nil
	}

	res, err := buildResource(ctx, cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	if err := t.setupTraces(ctx, cfg, stdout, res); err != nil {
		return nil, err
	}
	if err := t.setupMetrics(ctx, cfg, stdout, res); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	return t, nil
}

func (t *Telemetry) setupTraces(ctx context.Context, cfg config.TelemetryConfig, stdout io.Writer, res *resource.Resource) error {
	exporter := cfg.TracesExporter
	if exporter == "none" || (exporter == "" && cfg.Endpoint == "") {
		return nil
	}

	var tp *sdktrace.TracerProvider
	switch exporter {
	case "console":
		// Synchronous export keeps console output ordered, which also
		// makes tests deterministic.
		exp, err := stdouttrace.New(stdouttrace.WithWriter(stdout))
		if err != nil {
			return fmt.Errorf("failed to create console trace exporter: %w", err)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(exp),
			sdktrace.WithResource(res),
		)
	default: // "otlp", or empty with an endpoint configured.
		opts := []otlptracegrpc.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpointURL(cfg.Endpoint))
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to create otlp trace exporter: %w", err)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
	}

	t.tracer = tp.Tracer(scopeName)
	t.active = true
	t.shutdowns = append(t.shutdowns, tp.Shutdown)
	return nil
}

func (t *Telemetry) setupMetrics(ctx context.Context, cfg config.TelemetryConfig, stdout io.Writer, res *resource.Resource) error {
	exporter := cfg.MetricsExporter
	if exporter == "none" || (exporter == "" && cfg.Endpoint == "") {
		t.metrics = newMetrics(metricnoop.NewMeterProvider().Meter(scopeName))
		return nil
	}

	var reader sdkmetric.Reader
	switch exporter {
	case "console":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(stdout))
		if err != nil {
			return fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp)
	case "prometheus":
		registry := prometheus.NewRegistry()
		exp, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		t.registry = registry
		reader = exp
	default: // "otlp", or empty with an endpoint configured.
		opts := []otlpmetricgrpc.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpointURL(cfg.Endpoint))
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to create otlp metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	t.metrics = newMetrics(mp.Meter(scopeName))
	t.active = true
	t.shutdowns = append(t.shutdowns, mp.Shutdown)
	return nil
}

// buildResource merges default -> fallback -> env, so OTEL_SERVICE_NAME and
// OTEL_RESOURCE_ATTRIBUTES override the configured service name.
func buildResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = "genops"
	}
	envRes, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource from env: %w", err)
	}
	fallbackRes := resource.NewSchemaless(
		semconv.ServiceName(serviceName),
	)
	res, err := resource.Merge(resource.Default(), fallbackRes)
	if err != nil {
		return nil, fmt.Errorf("failed to merge default resources: %w", err)
	}
	res, err = resource.Merge(res, envRes)
	if err != nil {
		return nil, fmt.Errorf("failed to merge env resource: %w", err)
	}
	return res, nil
}

// Tracer returns the tracer for instrumented operations.
func (t *Telemetry) Tracer() trace.Tracer { return t.tracer }

// Metrics returns the metric instruments.
func (t *Telemetry) Metrics() *Metrics { return t.metrics }

// Propagator returns the configured context propagator.
func (t *Telemetry) Propagator() propagation.TextMapPropagator { return t.propagator }

// Active reports whether any exporter is wired. False means every signal
// goes to a noop provider.
func (t *Telemetry) Active() bool { return t.active }

// PrometheusRegistry returns the scrape registry, or nil when the
// prometheus exporter is not selected.
func (t *Telemetry) PrometheusRegistry() *prometheus.Registry { return t.registry }

// Shutdown flushes and stops every provider created by New.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdowns {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdowns = nil
	return errors.Join(errs...)
}
