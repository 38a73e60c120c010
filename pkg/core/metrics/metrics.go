// Package metrics defines the observability contracts of the Core. Concrete
// recorders and tracers live under pkg/infrastructure/metrics; the engine
// depends only on these interfaces and falls back to no-ops.
package metrics

import (
	"context"
	"time"
)

// MetricRecorder records task and step execution metrics.
type MetricRecorder interface {
	// RecordTaskStart records the start of one task run.
	RecordTaskStart(ctx context.Context, taskUID string)
	// RecordTaskEnd records the end of one task run with its outcome.
	RecordTaskEnd(ctx context.Context, taskUID, status string, duration time.Duration)
	// RecordStepStart records the start of one processing step.
	RecordStepStart(ctx context.Context, taskUID, stepUID, class string)
	// RecordStepEnd records the end of one processing step with its outcome.
	RecordStepEnd(ctx context.Context, taskUID, stepUID, class, status string, duration time.Duration)
}

// Tracer opens spans around task and step execution.
type Tracer interface {
	// StartSpan opens a span; the returned func ends it, recording err when
	// non-nil.
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(err error))
}

// Execution outcome labels.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// NoopRecorder discards all metrics.
type NoopRecorder struct{}

var _ MetricRecorder = (*NoopRecorder)(nil)

// NewNoopRecorder creates a recorder that records nothing.
func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (*NoopRecorder) RecordTaskStart(context.Context, string)                               {}
func (*NoopRecorder) RecordTaskEnd(context.Context, string, string, time.Duration)          {}
func (*NoopRecorder) RecordStepStart(context.Context, string, string, string)               {}
func (*NoopRecorder) RecordStepEnd(context.Context, string, string, string, string, time.Duration) {
}

// NoopTracer opens no spans.
type NoopTracer struct{}

var _ Tracer = (*NoopTracer)(nil)

// NewNoopTracer creates a tracer that traces nothing.
func NewNoopTracer() *NoopTracer { return &NoopTracer{} }

func (*NoopTracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(error)) {
	return ctx, func(error) {}
}
