package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// fxEventLogger routes fx application-assembly events into the core logger so
// wiring problems show up in the same stream as task execution. Successful
// assembly is debug-level noise; anything failed is an error.
type fxEventLogger struct{}

// NewFxLoggerAdapter returns the fxevent.Logger installed via fx.WithLogger.
func NewFxLoggerAdapter() fxevent.Logger {
	return fxEventLogger{}
}

func (fxEventLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		Debugf("Lifecycle OnStart: %s", hookName(e.FunctionName))
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			Errorf("Lifecycle OnStart %s failed after %v: %v", hookName(e.FunctionName), e.Runtime, e.Err)
		}
	case *fxevent.OnStopExecuting:
		Debugf("Lifecycle OnStop: %s", hookName(e.FunctionName))
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			Errorf("Lifecycle OnStop %s failed after %v: %v", hookName(e.FunctionName), e.Runtime, e.Err)
		}
	case *fxevent.Supplied:
		if e.Err != nil {
			Errorf("Supplying %s failed: %v", e.TypeName, e.Err)
		}
	case *fxevent.Provided:
		if e.Err != nil {
			Errorf("Constructor %s failed: %v", hookName(e.ConstructorName), e.Err)
		}
	case *fxevent.Decorated:
		if e.Err != nil {
			Errorf("Decorator %s failed: %v", hookName(e.DecoratorName), e.Err)
		}
	case *fxevent.Invoking:
		Debugf("Invoking %s", hookName(e.FunctionName))
	case *fxevent.Invoked:
		if e.Err != nil {
			Errorf("Invoking %s failed: %v", hookName(e.FunctionName), e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("Application failed to start: %v", e.Err)
		} else {
			Infof("Application assembled and started.")
		}
	case *fxevent.Stopping:
		Infof("Shutting down on %v.", e.Signal)
	case *fxevent.Stopped:
		if e.Err != nil {
			Errorf("Shutdown finished with error: %v", e.Err)
		}
	case *fxevent.RollingBack:
		Errorf("Startup failed, rolling back: %v", e.StartErr)
	case *fxevent.RolledBack:
		if e.Err != nil {
			Errorf("Rollback failed: %v", e.Err)
		}
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			Errorf("Event-logger installation failed: %v", e.Err)
		}
	}
}

// hookName trims the ".funcN" suffix fx generates for anonymous hooks so log
// lines point at the declaring function instead.
func hookName(name string) string {
	if i := strings.Index(name, ".func"); i != -1 {
		return name[:i]
	}
	return name
}
