package storage

import (
	"context"

	"go.uber.org/fx"

	"github.com/garrichello/climatecore/pkg/core/config"
)

// NewFxProvider builds the storage provider and closes every cached
// connection on application shutdown.
func NewFxProvider(lc fx.Lifecycle, cfg *config.Config) *Provider {
	p := NewProvider(cfg)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return p.CloseAll()
		},
	})
	return p
}

// Module provides the storage connection provider to Fx.
var Module = fx.Options(
	fx.Provide(NewFxProvider),
)
