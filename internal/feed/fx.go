package feed

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewController),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, c *Controller) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return c.Start(ctx)
		},
		OnStop: func(context.Context) error {
			return c.Stop()
		},
	})
}
