package metrics

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/garrichello/climatecore/pkg/core/config"
	coremetrics "github.com/garrichello/climatecore/pkg/core/metrics"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
)

const (
	moduleName      = "metrics"
	instrumentation = "github.com/garrichello/climatecore/pkg/core/engine"
)

// OtelTelemetry owns the OpenTelemetry trace and metric providers exporting
// over OTLP, and implements metrics.Tracer for the engine.
type OtelTelemetry struct {
	tracer         oteltrace.Tracer
	meter          otelmetric.Meter
	stepCounter    otelmetric.Int64Counter
	traceProvider  *sdktrace.TracerProvider
	metricProvider *sdkmetric.MeterProvider
}

var _ coremetrics.Tracer = (*OtelTelemetry)(nil)

// NewOtelTelemetry builds the providers from configuration and installs them
// globally. The protocol setting selects grpc or http OTLP transports.
func NewOtelTelemetry(ctx context.Context, cfg config.TracingConfig) (*OtelTelemetry, error) {
	traceExporter, err := newTraceExporter(ctx, cfg)
	if err != nil {
		return nil, exception.NewCoreError(moduleName, "failed to create OTLP trace exporter", err)
	}
	metricExporter, err := newMetricExporter(ctx, cfg)
	if err != nil {
		return nil, exception.NewCoreError(moduleName, "failed to create OTLP metric exporter", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "climatecore"
	}
	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(traceProvider)

	metricProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(metricProvider)

	meter := metricProvider.Meter(instrumentation)
	stepCounter, err := meter.Int64Counter("core.steps",
		otelmetric.WithDescription("Processing steps traced."))
	if err != nil {
		return nil, exception.NewCoreError(moduleName, "failed to create step counter", err)
	}

	logger.Infof("OpenTelemetry export enabled (%s to %s)", cfg.Protocol, cfg.Endpoint)
	return &OtelTelemetry{
		tracer:         traceProvider.Tracer(instrumentation),
		meter:          meter,
		stepCounter:    stepCounter,
		traceProvider:  traceProvider,
		metricProvider: metricProvider,
	}, nil
}

func newTraceExporter(ctx context.Context, cfg config.TracingConfig) (*otlptrace.Exporter, error) {
	if cfg.Protocol == "http" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func newMetricExporter(ctx context.Context, cfg config.TracingConfig) (sdkmetric.Exporter, error) {
	if cfg.Protocol == "http" {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	}
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

// StartSpan opens a span carrying the given attributes and bumps the step
// counter. The returned func ends the span, recording err when non-nil.
func (t *OtelTelemetry) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(error)) {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, attribute.String(k, v))
	}
	ctx, span := t.tracer.Start(ctx, name, oteltrace.WithAttributes(kvs...))
	t.stepCounter.Add(ctx, 1, otelmetric.WithAttributes(kvs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// Shutdown flushes and stops both providers.
func (t *OtelTelemetry) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	if err := t.traceProvider.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := t.metricProvider.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
