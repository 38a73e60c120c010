package metrics

import (
	"context"
	"net/http"

	"go.uber.org/fx"

	"github.com/garrichello/climatecore/pkg/core/config"
	coremetrics "github.com/garrichello/climatecore/pkg/core/metrics"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
)

// Module provides the configured metric recorder and tracer. When metrics or
// tracing are disabled the engine gets no-op implementations, so callers
// never branch on configuration.
var Module = fx.Options(
	fx.Provide(
		NewMetricRecorder,
		NewTracer,
	),
	fx.Invoke(startMetricsEndpoint),
)

// NewMetricRecorder selects the Prometheus recorder or the no-op one.
func NewMetricRecorder(cfg *config.Config) coremetrics.MetricRecorder {
	if !cfg.Core.Metrics.Enabled {
		return coremetrics.NewNoopRecorder()
	}
	return NewPrometheusRecorder()
}

// NewTracer selects the OTLP tracer or the no-op one, hooking provider
// shutdown into the application lifecycle.
func NewTracer(lc fx.Lifecycle, cfg *config.Config) (coremetrics.Tracer, error) {
	if !cfg.Core.Tracing.Enabled {
		return coremetrics.NewNoopTracer(), nil
	}
	telemetry, err := NewOtelTelemetry(context.Background(), cfg.Core.Tracing)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return telemetry.Shutdown(ctx)
		},
	})
	return telemetry, nil
}

// startMetricsEndpoint serves the Prometheus registry when metrics are enabled.
func startMetricsEndpoint(lc fx.Lifecycle, cfg *config.Config, recorder coremetrics.MetricRecorder) {
	promRecorder, ok := recorder.(*PrometheusRecorder)
	if !ok || !cfg.Core.Metrics.Enabled {
		return
	}
	server := &http.Server{Addr: cfg.Core.Metrics.Addr, Handler: promRecorder.Handler()}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Infof("Metrics endpoint listening on %s", cfg.Core.Metrics.Addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Errorf("Metrics endpoint failed: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
