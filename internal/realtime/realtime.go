package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orgball2608/ephemeral-feed/internal/backend"
	"github.com/orgball2608/ephemeral-feed/internal/domain"
)

var (
	ErrClosed    = backend.ErrStreamClosed
	ErrMalformed = backend.ErrMalformedEvent
)

const DefaultChannelPrefix = "feed:changes:"

//go:generate go run go.uber.org/mock/mockgen -source=realtime.go -destination=mocks/mock.go

// Publisher pushes row changes onto the channel of event.Topic.
type Publisher interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
}

func Channel(prefix, userID string) string {
	return prefix + userID
}

func UserFromChannel(prefix, channel string) (string, bool) {
	return strings.CutPrefix(channel, prefix)
}

// Channels maps author ids to channel names, dropping blanks and duplicates.
func Channels(prefix string, authorIDs []string) []string {
	seen := make(map[string]struct{}, len(authorIDs))
	out := make([]string, 0, len(authorIDs))
	for _, id := range authorIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, Channel(prefix, id))
	}
	return out
}

func Encode(event domain.ChangeEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode change event: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (domain.ChangeEvent, error) {
	var event domain.ChangeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if event.Table == "" || event.Type == "" {
		return domain.ChangeEvent{}, fmt.Errorf("%w: missing table or type", ErrMalformed)
	}
	return event, nil
}

// NewEvent builds an event with record marshalled into Record (or OldRecord
// for deletes).
func NewEvent(table string, changeType domain.ChangeType, topic string, record any) (domain.ChangeEvent, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("failed to encode %s record: %w", table, err)
	}
	event := domain.ChangeEvent{Table: table, Type: changeType, Topic: topic}
	if changeType == domain.ChangeDelete {
		event.OldRecord = data
	} else {
		event.Record = data
	}
	return event, nil
}
