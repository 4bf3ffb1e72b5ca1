package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
)

type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      1.5,
	}
}

func newBackOff(cfg Config) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.MaxInterval = cfg.MaxInterval
	bo.Multiplier = cfg.Multiplier
	bo.Reset()
	return bo
}

func notifier(log logger.Logger, operationName string) backoff.Notify {
	return func(err error, t time.Duration) {
		log.Warn(
			"Operation failed, retrying...",
			"operation", operationName,
			"error", err,
			"next_attempt_in", t.Round(time.Millisecond).String(),
		)
	}
}

func Do(ctx context.Context, log logger.Logger, operationName string, operation func() error, cfg Config) error {
	retryable := backoff.WithMaxRetries(newBackOff(cfg), cfg.MaxRetries)
	retryableWithContext := backoff.WithContext(retryable, ctx)

	return backoff.RetryNotify(operation, retryableWithContext, notifier(log, operationName))
}

// Forever retries operation until it succeeds, returns a backoff.Permanent
// error, or ctx is done. MaxRetries is ignored.
func Forever(ctx context.Context, log logger.Logger, operationName string, operation func() error, cfg Config) error {
	bo := newBackOff(cfg)
	bo.MaxElapsedTime = 0

	return backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notifier(log, operationName))
}
