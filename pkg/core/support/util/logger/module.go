package logger

import "go.uber.org/fx"

// Module is an Fx module that provides an fx.Logger adapter routing Fx events
// through the Core logger.
var Module = fx.Options(
	fx.WithLogger(NewFxLoggerAdapter),
)
