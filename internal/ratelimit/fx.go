package ratelimit

import (
	"github.com/orgball2608/ephemeral-feed/pkg/config"
	"go.uber.org/fx"
)

// NewFromConfig builds the limiter that throttles reaction toggles per post.
func NewFromConfig(cfg *config.Config) *InMemoryLimiter {
	return NewInMemoryLimiter(cfg.Feed.ReactionRate, cfg.Feed.ReactionPer, cfg.Feed.ReactionBurst)
}

var Module = fx.Provide(
	fx.Annotate(
		NewFromConfig,
		fx.As(new(Limiter)),
	),
)
