package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/ephemeral-feed/internal/backend"
	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"github.com/orgball2608/ephemeral-feed/pkg/retry"
)

type IngestorState int

const (
	StateClosed IngestorState = iota
	StateConnecting
	StateLive
	StateReconnecting
)

func (s IngestorState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "closed"
	}
}

type IngestorOpts struct {
	Feed     backend.ChangeFeed
	Client   backend.Client
	Cache    *PostCache
	ViewerID string
	Clock    clockwork.Clock
	Logger   logger.Logger
	Retry    retry.Config

	// OnFriendshipChange runs on its own goroutine when a friendship event
	// involving the viewer arrives.
	OnFriendshipChange func()

	// SkipViewerReaction suppresses echoes of the viewer's own reactions while
	// a local toggle on that post is still unresolved.
	SkipViewerReaction func(postID string) bool
}

// Ingestor turns change feed events into cache operations. Each Open starts a
// new generation; events of older generations are dropped.
type Ingestor struct {
	opts   IngestorOpts
	logger logger.Logger

	mu         sync.Mutex
	state      IngestorState
	gen        uint64
	authors    map[string]struct{}
	authorIDs  []string
	cancel     context.CancelFunc
	done       chan struct{}
	stream     backend.Stream
	leftLiveAt time.Time

	// held while an event is applied; Close takes it to wait out the one in flight
	applyMu sync.Mutex
}

func NewIngestor(opts IngestorOpts) *Ingestor {
	return &Ingestor{
		opts:   opts,
		logger: opts.Logger.WithComponent("ChangeFeedIngestor"),
	}
}

// Open tears down any current subscription and subscribes to authorIDs in
// the background.
func (i *Ingestor) Open(authorIDs []string) {
	i.Close()

	ids := append([]string(nil), authorIDs...)
	authors := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		authors[id] = struct{}{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	i.mu.Lock()
	i.gen++
	gen := i.gen
	i.state = StateConnecting
	i.authors = authors
	i.authorIDs = ids
	i.cancel = cancel
	i.done = done
	i.leftLiveAt = i.opts.Clock.Now()
	i.mu.Unlock()

	i.logger.Info("Opening change feed", "authors", len(ids), "generation", gen)
	go i.run(ctx, gen, ids, done)
}

// Close stops the subscription. Once it returns no event of the closed
// subscription is applied any more.
func (i *Ingestor) Close() {
	i.mu.Lock()
	if i.state == StateClosed && i.cancel == nil {
		i.mu.Unlock()
		return
	}
	i.gen++
	i.state = StateClosed
	cancel, done, stream := i.cancel, i.done, i.stream
	i.cancel, i.done, i.stream = nil, nil, nil
	i.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		_ = stream.Close()
	}

	i.applyMu.Lock()
	i.applyMu.Unlock() //nolint:staticcheck // barrier

	if done != nil {
		<-done
	}
	i.logger.Info("Change feed closed")
}

func (i *Ingestor) State() IngestorState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Authors returns the author ids the current subscription is bound to.
func (i *Ingestor) Authors() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.authorIDs...)
}

// Bound reports whether the subscription is open for exactly authorIDs.
func (i *Ingestor) Bound(authorIDs []string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state != StateClosed && sameIDs(i.authorIDs, authorIDs)
}

// NotLiveSince is when the subscription last left Live; zero while Live.
func (i *Ingestor) NotLiveSince() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.leftLiveAt
}

func (i *Ingestor) current(gen uint64) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.gen == gen
}

func (i *Ingestor) inScope(gen uint64, authorID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.gen != gen {
		return false
	}
	_, ok := i.authors[authorID]
	return ok
}

func (i *Ingestor) setState(gen uint64, state IngestorState) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.gen != gen || i.state == state {
		return
	}
	if i.state == StateLive {
		i.leftLiveAt = i.opts.Clock.Now()
	}
	if state == StateLive {
		i.leftLiveAt = time.Time{}
		i.logger.Info("Change feed live", "generation", gen)
	}
	i.state = state
}

func (i *Ingestor) setStream(gen uint64, stream backend.Stream) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.gen != gen {
		return false
	}
	i.stream = stream
	return true
}

// apply runs fn unless the subscription moved on.
func (i *Ingestor) apply(gen uint64, fn func()) bool {
	i.applyMu.Lock()
	defer i.applyMu.Unlock()

	if !i.current(gen) {
		return false
	}
	fn()
	return true
}

func (i *Ingestor) run(ctx context.Context, gen uint64, authorIDs []string, done chan struct{}) {
	defer close(done)

	for {
		stream, err := i.subscribe(ctx, gen, authorIDs)
		if err != nil {
			return
		}

		started := i.opts.Clock.Now()
		err = i.consume(ctx, gen, stream)
		_ = stream.Close()
		if ctx.Err() != nil {
			return
		}

		i.logger.Warn("Change feed dropped, reconnecting", "error", err, "generation", gen)
		i.setState(gen, StateReconnecting)

		// a stream that fails right away must not turn into a busy loop
		if pause := i.opts.Retry.InitialInterval - i.opts.Clock.Since(started); pause > 0 {
			timer := i.opts.Clock.NewTimer(pause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.Chan():
			}
		}
	}
}

func (i *Ingestor) subscribe(ctx context.Context, gen uint64, authorIDs []string) (backend.Stream, error) {
	var stream backend.Stream
	err := retry.Forever(ctx, i.logger, "change feed subscribe", func() error {
		s, err := i.opts.Feed.Subscribe(ctx, authorIDs)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			i.setState(gen, StateReconnecting)
			return err
		}
		if !i.setStream(gen, s) {
			_ = s.Close()
			return backoff.Permanent(context.Canceled)
		}
		stream = s
		return nil
	}, i.opts.Retry)
	if err != nil {
		return nil, err
	}

	i.setState(gen, StateLive)
	return stream, nil
}

func (i *Ingestor) consume(ctx context.Context, gen uint64, stream backend.Stream) error {
	for {
		event, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, backend.ErrMalformedEvent) {
				i.logger.Warn("Skipping malformed change event", "error", err)
				continue
			}
			return err
		}
		i.handle(ctx, gen, event)
	}
}

func (i *Ingestor) handle(ctx context.Context, gen uint64, event domain.ChangeEvent) {
	switch event.Table {
	case domain.TablePosts:
		i.handlePost(ctx, gen, event)
	case domain.TableReactions:
		i.handleReaction(gen, event)
	case domain.TableFriendships:
		i.handleFriendship(gen, event)
	default:
		i.logger.Debug("Ignoring change on unknown table", "table", event.Table)
	}
}

// recordOf returns the row payload, preferring the old row for deletes.
func recordOf(event domain.ChangeEvent) json.RawMessage {
	if event.Type == domain.ChangeDelete && len(event.OldRecord) > 0 {
		return event.OldRecord
	}
	if len(event.Record) > 0 {
		return event.Record
	}
	return event.OldRecord
}

func (i *Ingestor) handlePost(ctx context.Context, gen uint64, event domain.ChangeEvent) {
	var rec domain.PostRecord
	if err := json.Unmarshal(recordOf(event), &rec); err != nil || rec.ID == "" {
		i.logger.Warn("Skipping post event without id", "type", event.Type, "error", err)
		return
	}

	switch event.Type {
	case domain.ChangeDelete:
		i.apply(gen, func() {
			i.opts.Cache.Remove(rec.ID)
		})

	case domain.ChangeUpdate:
		patch := rec.Patch()
		if patch.Empty() {
			return
		}
		i.apply(gen, func() {
			i.opts.Cache.Patch(rec.ID, patch)
		})

	case domain.ChangeInsert:
		author := rec.UserID
		if author == "" {
			author = event.Topic
		}
		if !i.inScope(gen, author) {
			i.logger.Debug("Dropping insert outside scope", "post_id", rec.ID, "author_id", author)
			return
		}

		post := rec.ToPost()
		if !rec.Complete() {
			fetched, err := i.opts.Client.FetchPost(ctx, rec.ID)
			if err != nil {
				i.logger.Warn("Failed to complete inserted post", "post_id", rec.ID, "error", err)
				return
			}
			if !i.inScope(gen, fetched.AuthorID) {
				return
			}
			post = fetched
		}

		i.apply(gen, func() {
			i.opts.Cache.Upsert(post)
		})
	}
}

func (i *Ingestor) handleReaction(gen uint64, event domain.ChangeEvent) {
	var rec domain.ReactionRecord
	if err := json.Unmarshal(recordOf(event), &rec); err != nil || rec.PostID == "" || rec.UserID == "" {
		i.logger.Warn("Skipping reaction event without key", "type", event.Type, "error", err)
		return
	}

	var emoji *domain.Emoji
	if event.Type != domain.ChangeDelete {
		e, ok := domain.ParseEmoji(rec.Emoji)
		if !ok {
			i.logger.Warn("Skipping reaction with unknown emoji", "post_id", rec.PostID, "emoji", rec.Emoji)
			return
		}
		emoji = &e
	}

	at := event.CommitTimestamp
	if rec.CreatedAt != nil {
		at = *rec.CreatedAt
	}

	if rec.UserID == i.opts.ViewerID && i.opts.SkipViewerReaction != nil && i.opts.SkipViewerReaction(rec.PostID) {
		return
	}

	i.apply(gen, func() {
		// posts not in the cache are not backfilled
		i.opts.Cache.SetReaction(rec.PostID, rec.UserID, emoji, at)
	})
}

func (i *Ingestor) handleFriendship(gen uint64, event domain.ChangeEvent) {
	var rec domain.FriendshipRecord
	if err := json.Unmarshal(recordOf(event), &rec); err != nil {
		i.logger.Warn("Skipping malformed friendship event", "error", err)
		return
	}
	if rec.UserID != i.opts.ViewerID && rec.FriendID != i.opts.ViewerID {
		return
	}
	if i.opts.OnFriendshipChange == nil || !i.current(gen) {
		return
	}
	go i.opts.OnFriendshipChange()
}
