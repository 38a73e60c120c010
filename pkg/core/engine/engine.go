package engine

import (
	"context"
	"time"

	"github.com/garrichello/climatecore/pkg/core/access"
	"github.com/garrichello/climatecore/pkg/core/adapter"
	"github.com/garrichello/climatecore/pkg/core/config"
	"github.com/garrichello/climatecore/pkg/core/metrics"
	"github.com/garrichello/climatecore/pkg/core/processing"
	"github.com/garrichello/climatecore/pkg/core/storage"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
	"github.com/garrichello/climatecore/pkg/core/task"
)

// Engine runs task documents. Any step failure aborts the whole task; there
// is no retry and no partial continuation.
type Engine struct {
	cfg      *config.Config
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
	storage  *storage.Provider
}

// NewEngine wires an engine from its collaborators.
func NewEngine(cfg *config.Config, recorder metrics.MetricRecorder, tracer metrics.Tracer,
	storageProvider *storage.Provider) *Engine {
	return &Engine{
		cfg:      cfg,
		recorder: recorder,
		tracer:   tracer,
		storage:  storageProvider,
	}
}

// LoadTask parses a task document from disk.
func (e *Engine) LoadTask(path string) (*task.Task, error) {
	return task.ParseFile(path)
}

// LoadTaskBytes parses a task document from raw bytes.
func (e *Engine) LoadTaskBytes(data []byte) (*task.Task, error) {
	return task.Parse(data)
}

// RunTask executes every processing step strictly in document order. The
// base directory anchors all relative file paths of the run; intermediate
// arrays live in a store private to this call.
func (e *Engine) RunTask(ctx context.Context, t *task.Task, baseDir string) error {
	env := &adapter.Env{
		MetaDB:  t.Metadb,
		BaseDir: baseDir,
		Arrays:  adapter.NewArrayStore(),
	}

	start := time.Now()
	e.recorder.RecordTaskStart(ctx, t.UID)
	ctx, endSpan := e.tracer.StartSpan(ctx, "core.task", map[string]string{"task_uid": t.UID})

	logger.Infof("Started task '%s' (%d steps)", t.UID, len(t.Processing))
	var err error
	for i := range t.Processing {
		step := &t.Processing[i]
		if err = e.RunStep(ctx, t, step, env); err != nil {
			logger.Errorf("Task '%s' failed at step '%s': %v", t.UID, step.UID, err)
			break
		}
	}

	endSpan(err)
	status := metrics.StatusCompleted
	if err != nil {
		status = metrics.StatusFailed
	}
	e.recorder.RecordTaskEnd(ctx, t.UID, status, time.Since(start))
	if err == nil {
		logger.Infof("Finished task '%s'", t.UID)
	}
	return err
}

// RunStep resolves one step's arguments, builds a fresh facade over them and
// runs the step's processing module. Facades are never shared across steps.
func (e *Engine) RunStep(ctx context.Context, t *task.Task, step *task.ProcessingStep, env *adapter.Env) error {
	start := time.Now()
	e.recorder.RecordStepStart(ctx, t.UID, step.UID, step.Class)
	ctx, endSpan := e.tracer.StartSpan(ctx, "core.step", map[string]string{
		"task_uid": t.UID,
		"step_uid": step.UID,
		"class":    step.Class,
	})

	err := e.runStep(t, step, env)

	endSpan(err)
	status := metrics.StatusCompleted
	if err != nil {
		status = metrics.StatusFailed
	}
	e.recorder.RecordStepEnd(ctx, t.UID, step.UID, step.Class, status, time.Since(start))
	return err
}

func (e *Engine) runStep(t *task.Task, step *task.ProcessingStep, env *adapter.Env) error {
	logger.Infof("Running step '%s' (%s)", step.UID, step.Class)

	resolved, err := ResolveStep(t, step)
	if err != nil {
		return err
	}
	facade, err := access.New(resolved.Inputs, resolved.Outputs, env)
	if err != nil {
		return err
	}
	module, err := processing.New(step.Class, facade)
	if err != nil {
		return err
	}
	return module.Run()
}
