// Package metrics provides the concrete observability backends of the Core: a
// Prometheus metric recorder and an OpenTelemetry tracer/meter exporting over
// OTLP.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/garrichello/climatecore/pkg/core/metrics"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of metrics.MetricRecorder.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	taskDurationSeconds *prometheus.HistogramVec
	taskStatusCounter   *prometheus.CounterVec
	stepDurationSeconds *prometheus.HistogramVec
	stepStatusCounter   *prometheus.CounterVec
}

var _ coremetrics.MetricRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates a recorder with its own registry, including
// the Go runtime and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		taskDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "core_task_duration_seconds",
			Help:    "Duration of task runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task_uid", "status"}),
		taskStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "core_task_status_total",
			Help: "Total task runs by status.",
		}, []string{"task_uid", "status"}),
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "core_step_duration_seconds",
			Help:    "Duration of processing steps.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task_uid", "step_uid", "class", "status"}),
		stepStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "core_step_status_total",
			Help: "Total processing steps by status.",
		}, []string{"task_uid", "step_uid", "class", "status"}),
	}

	registry.MustRegister(r.taskDurationSeconds)
	registry.MustRegister(r.taskStatusCounter)
	registry.MustRegister(r.stepDurationSeconds)
	registry.MustRegister(r.stepStatusCounter)
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler exposing the registry.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordTaskStart records the start of one task run.
func (r *PrometheusRecorder) RecordTaskStart(ctx context.Context, taskUID string) {
	logger.Debugf("Metrics: task '%s' started", taskUID)
}

// RecordTaskEnd records the end of one task run.
func (r *PrometheusRecorder) RecordTaskEnd(ctx context.Context, taskUID, status string, duration time.Duration) {
	r.taskStatusCounter.WithLabelValues(taskUID, status).Inc()
	r.taskDurationSeconds.WithLabelValues(taskUID, status).Observe(duration.Seconds())
	logger.Debugf("Metrics: task '%s' ended (%s, %.3fs)", taskUID, status, duration.Seconds())
}

// RecordStepStart records the start of one processing step.
func (r *PrometheusRecorder) RecordStepStart(ctx context.Context, taskUID, stepUID, class string) {
	logger.Debugf("Metrics: step '%s' (%s) started", stepUID, class)
}

// RecordStepEnd records the end of one processing step.
func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, taskUID, stepUID, class, status string, duration time.Duration) {
	r.stepStatusCounter.WithLabelValues(taskUID, stepUID, class, status).Inc()
	r.stepDurationSeconds.WithLabelValues(taskUID, stepUID, class, status).Observe(duration.Seconds())
	logger.Debugf("Metrics: step '%s' (%s) ended (%s, %.3fs)", stepUID, class, status, duration.Seconds())
}
