package engine

import "go.uber.org/fx"

// Module provides the task engine to Fx.
var Module = fx.Options(
	fx.Provide(NewEngine),
)
