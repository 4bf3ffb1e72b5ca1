package settings

import (
	"github.com/orgball2608/ephemeral-feed/pkg/config"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"github.com/spf13/afero"
	"go.uber.org/fx"
)

func NewFromConfig(cfg *config.Config, logger logger.Logger) (*Store, error) {
	return NewStore(afero.NewOsFs(), cfg.Settings.Path, logger)
}

var Module = fx.Provide(
	fx.Annotate(
		NewFromConfig,
		fx.As(fx.Self()),
		fx.As(new(Reader)),
	),
)
