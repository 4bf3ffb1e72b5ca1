package kafkafeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orgball2608/ephemeral-feed/internal/backend"
	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/internal/realtime"
	"github.com/orgball2608/ephemeral-feed/pkg/config"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// Reader defines the part of kafka.Reader a stream needs.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Writer defines the part of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Feed publishes every change to one topic keyed by author id. Streams read
// the whole topic and keep only the keys they subscribed to.
type Feed struct {
	writer    Writer
	newReader func() Reader
	logger    logger.Logger
}

var (
	_ backend.ChangeFeed = (*Feed)(nil)
	_ realtime.Publisher = (*Feed)(nil)
)

func New(writer Writer, newReader func() Reader, logger logger.Logger) *Feed {
	return &Feed{
		writer:    writer,
		newReader: newReader,
		logger:    logger.WithComponent("KafkaFeed"),
	}
}

func NewFromConfig(cfg *config.Config, logger logger.Logger) *Feed {
	brokers := cfg.KafkaBrokers()
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}
	groupID := cfg.Kafka.GroupID + "-" + cfg.Session.UserID
	newReader := func() Reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        groupID,
			Topic:          cfg.Kafka.Topic,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
			StartOffset:    kafka.LastOffset,
		})
	}
	return New(writer, newReader, logger)
}

func (f *Feed) Publish(ctx context.Context, event domain.ChangeEvent) error {
	payload, err := realtime.Encode(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(event.Topic), Value: payload}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write change event: %w", err)
	}
	return nil
}

// Subscribe has no broker acknowledgment to wait for; the stream is live as
// soon as its reader exists.
func (f *Feed) Subscribe(ctx context.Context, authorIDs []string) (backend.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	authors := make(map[string]struct{}, len(authorIDs))
	for _, id := range authorIDs {
		if id != "" {
			authors[id] = struct{}{}
		}
	}
	if len(authors) == 0 {
		return nil, fmt.Errorf("subscribe needs at least one author")
	}

	f.logger.Debug("Subscribed", "authors", len(authors))
	return &stream{reader: f.newReader(), authors: authors}, nil
}

func (f *Feed) Close() error {
	return f.writer.Close()
}

type stream struct {
	reader  Reader
	authors map[string]struct{}

	mu     sync.Mutex
	closed bool
}

func (s *stream) Next(ctx context.Context) (domain.ChangeEvent, error) {
	for {
		if s.isClosed() {
			return domain.ChangeEvent{}, realtime.ErrClosed
		}

		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if s.isClosed() {
				return domain.ChangeEvent{}, realtime.ErrClosed
			}
			return domain.ChangeEvent{}, fmt.Errorf("failed to read change event: %w", err)
		}

		if _, ok := s.authors[string(msg.Key)]; !ok {
			continue
		}

		event, err := realtime.Decode(msg.Value)
		if err != nil {
			return domain.ChangeEvent{}, err
		}
		if event.Topic == "" {
			event.Topic = string(msg.Key)
		}
		return event, nil
	}
}

func (s *stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.reader.Close()
}
