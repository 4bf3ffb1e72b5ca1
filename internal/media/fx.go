package media

import (
	"github.com/orgball2608/ephemeral-feed/pkg/config"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"github.com/spf13/afero"
	"go.uber.org/fx"
)

func NewFromConfig(cfg *config.Config, logger logger.Logger) *Bucket {
	fs := afero.NewBasePathFs(afero.NewOsFs(), cfg.Media.Root)
	return NewBucket(fs, cfg.Media.BaseURL, Limits{
		MaxImageBytes: cfg.Media.MaxImageBytes,
		MaxVideoBytes: cfg.Media.MaxVideoBytes,
	}, logger)
}

var Module = fx.Provide(
	fx.Annotate(
		NewFromConfig,
		fx.As(new(Store)),
	),
)
