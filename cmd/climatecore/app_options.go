package main

import (
	"context"

	"go.uber.org/fx"

	"github.com/garrichello/climatecore/pkg/core/config"
	"github.com/garrichello/climatecore/pkg/core/engine"
	"github.com/garrichello/climatecore/pkg/core/storage"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
	inframetrics "github.com/garrichello/climatecore/pkg/infrastructure/metrics"
)

// GetApplicationOptions builds the uber-fx options and returns them as a
// slice. Configuration is loaded eagerly so a broken document fails the
// process before any component starts.
func GetApplicationOptions(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, taskPath, resultPath string) []fx.Option {
	cfg, err := config.LoadConfig(envFilePath, embeddedConfig)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	var options []fx.Option

	options = append(options, fx.Supply(
		cfg,
		fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
		fx.Annotate(taskPath, fx.ResultTags(`name:"taskPath"`)),
		fx.Annotate(resultPath, fx.ResultTags(`name:"resultPath"`)),
	))
	options = append(options, logger.Module)
	options = append(options, config.Module)
	options = append(options, inframetrics.Module)
	options = append(options, storage.Module)
	options = append(options, engine.Module)
	options = append(options, fx.Invoke(fx.Annotate(
		startTaskExecution,
		fx.ParamTags("", "", "", "", `name:"appCtx"`, `name:"taskPath"`, `name:"resultPath"`),
	)))

	return options
}
