package app

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/ephemeral-feed/internal/api"
	"github.com/orgball2608/ephemeral-feed/internal/backend"
	"github.com/orgball2608/ephemeral-feed/internal/backend/backendimpl"
	"github.com/orgball2608/ephemeral-feed/internal/feed"
	"github.com/orgball2608/ephemeral-feed/internal/media"
	"github.com/orgball2608/ephemeral-feed/internal/migrations"
	"github.com/orgball2608/ephemeral-feed/internal/ratelimit"
	"github.com/orgball2608/ephemeral-feed/internal/realtime"
	"github.com/orgball2608/ephemeral-feed/internal/realtime/kafkafeed"
	"github.com/orgball2608/ephemeral-feed/internal/realtime/redisfeed"
	repositories "github.com/orgball2608/ephemeral-feed/internal/repositories/fx"
	"github.com/orgball2608/ephemeral-feed/internal/settings"
	"github.com/orgball2608/ephemeral-feed/pkg/config"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"github.com/orgball2608/ephemeral-feed/pkg/pgx"
	"github.com/orgball2608/ephemeral-feed/pkg/retry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
		pgx.New,
		pgx.AsQuerier,
		clockwork.NewRealClock,
		newTransport,
	),
	// registered first so the schema exists before the feed engine loads
	fx.Invoke(migrate),
	repositories.Module,
	media.Module,
	settings.Module,
	ratelimit.Module,
	backendimpl.Module,
	feed.Module,
	fx.Provide(
		func(c *feed.Controller) api.FeedService { return c },
		func(s *settings.Store) api.SettingsStore { return s },
	),
	api.Module,
)

// Transport is the change feed chosen by REALTIME_TRANSPORT. The same value
// subscribes the engine and publishes backend writes.
type Transport struct {
	fx.Out

	Feed      backend.ChangeFeed
	Publisher realtime.Publisher
}

type closer interface {
	backend.ChangeFeed
	realtime.Publisher
	Close() error
}

func newTransport(lc fx.Lifecycle, cfg *config.Config, log logger.Logger) (Transport, error) {
	t, err := openTransport(cfg, log)
	if err != nil {
		return Transport{}, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return t.Close()
		},
	})
	return Transport{Feed: t, Publisher: t}, nil
}

func openTransport(cfg *config.Config, log logger.Logger) (closer, error) {
	switch cfg.Realtime.Transport {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		log.Info("Using redis change feed", "addr", cfg.Redis.Addr)
		return redisTransport{Feed: redisfeed.New(client, "", log), client: client}, nil
	case "kafka":
		log.Info("Using kafka change feed", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
		return kafkafeed.NewFromConfig(cfg, log), nil
	default:
		return nil, fmt.Errorf("unsupported realtime transport %q", cfg.Realtime.Transport)
	}
}

type redisTransport struct {
	*redisfeed.Feed
	client *redis.Client
}

func (t redisTransport) Close() error {
	return t.client.Close()
}

func migrate(lc fx.Lifecycle, cfg *config.Config, log logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			db, err := migrations.Open(cfg.GetDSN())
			if err != nil {
				return err
			}
			defer db.Close()

			// postgres may still be starting next to us
			return retry.Do(ctx, log, "migrate", func() error {
				n, err := migrations.Up(ctx, db)
				if err != nil {
					return err
				}
				log.Info("Migrations applied", "count", n)
				return nil
			}, retry.DefaultConfig())
		},
	})
}
