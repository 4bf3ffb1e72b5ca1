package app

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/orgball2608/ephemeral-feed/internal/realtime/kafkafeed"
	"github.com/orgball2608/ephemeral-feed/pkg/config"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenTransport(t *testing.T) {
	srv := miniredis.RunT(t)

	cfg := &config.Config{}
	cfg.Redis.Addr = srv.Addr()
	cfg.Kafka.Brokers = "localhost:9092"
	cfg.Kafka.Topic = "feed-changes"
	cfg.Kafka.GroupID = "feed-client"
	cfg.Session.UserID = "me"

	cfg.Realtime.Transport = "redis"
	tr, err := openTransport(cfg, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, redisTransport{}, tr)
	assert.NoError(t, tr.Close())

	cfg.Realtime.Transport = "kafka"
	tr, err = openTransport(cfg, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &kafkafeed.Feed{}, tr)
	assert.NoError(t, tr.Close())

	cfg.Realtime.Transport = "nats"
	_, err = openTransport(cfg, logger.NewNop())
	assert.Error(t, err)
}
