package redisfeed

import (
	"context"
	"fmt"
	"sync"

	"github.com/orgball2608/ephemeral-feed/internal/backend"
	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/internal/realtime"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Feed carries change events over Redis pub/sub, one channel per author.
type Feed struct {
	client *redis.Client
	prefix string
	logger logger.Logger
}

var (
	_ backend.ChangeFeed = (*Feed)(nil)
	_ realtime.Publisher = (*Feed)(nil)
)

func New(client *redis.Client, prefix string, logger logger.Logger) *Feed {
	if prefix == "" {
		prefix = realtime.DefaultChannelPrefix
	}
	return &Feed{
		client: client,
		prefix: prefix,
		logger: logger.WithComponent("RedisFeed"),
	}
}

func (f *Feed) Publish(ctx context.Context, event domain.ChangeEvent) error {
	payload, err := realtime.Encode(event)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, realtime.Channel(f.prefix, event.Topic), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// Subscribe waits until redis confirmed every channel. Messages that arrive
// before the last confirmation are kept for Next.
func (f *Feed) Subscribe(ctx context.Context, authorIDs []string) (backend.Stream, error) {
	channels := realtime.Channels(f.prefix, authorIDs)
	if len(channels) == 0 {
		return nil, fmt.Errorf("subscribe needs at least one author")
	}

	ps := f.client.Subscribe(ctx)
	if err := ps.Subscribe(ctx, channels...); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	s := &stream{ps: ps, prefix: f.prefix, logger: f.logger}
	pending := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		pending[ch] = struct{}{}
	}

	for len(pending) > 0 {
		msg, err := ps.Receive(ctx)
		if err != nil {
			_ = ps.Close()
			return nil, fmt.Errorf("failed waiting for subscription ack: %w", err)
		}
		switch m := msg.(type) {
		case *redis.Subscription:
			delete(pending, m.Channel)
		case *redis.Message:
			s.early = append(s.early, m)
		}
	}

	f.logger.Debug("Subscribed", "channels", len(channels))
	return s, nil
}

type stream struct {
	ps     *redis.PubSub
	prefix string
	logger logger.Logger

	mu     sync.Mutex
	early  []*redis.Message
	closed bool
}

func (s *stream) Next(ctx context.Context) (domain.ChangeEvent, error) {
	msg, err := s.receive(ctx)
	if err != nil {
		return domain.ChangeEvent{}, err
	}

	event, err := realtime.Decode([]byte(msg.Payload))
	if err != nil {
		return domain.ChangeEvent{}, err
	}
	if event.Topic == "" {
		event.Topic, _ = realtime.UserFromChannel(s.prefix, msg.Channel)
	}
	return event, nil
}

func (s *stream) receive(ctx context.Context) (*redis.Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, realtime.ErrClosed
	}
	if len(s.early) > 0 {
		msg := s.early[0]
		s.early = s.early[1:]
		s.mu.Unlock()
		return msg, nil
	}
	s.mu.Unlock()

	msg, err := s.ps.ReceiveMessage(ctx)
	if err != nil {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return nil, realtime.ErrClosed
		}
		return nil, fmt.Errorf("failed to receive change event: %w", err)
	}
	return msg, nil
}

func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.early = nil
	s.mu.Unlock()

	return s.ps.Close()
}
