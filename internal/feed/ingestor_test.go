package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/ephemeral-feed/internal/backend"
	mock_backend "github.com/orgball2608/ephemeral-feed/internal/backend/mocks"
	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"github.com/orgball2608/ephemeral-feed/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const waitFor = 2 * time.Second

type fakeStream struct {
	events chan domain.ChangeEvent
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events: make(chan domain.ChangeEvent),
		errs:   make(chan error),
		closed: make(chan struct{}),
	}
}

func (s *fakeStream) Next(ctx context.Context) (domain.ChangeEvent, error) {
	select {
	case <-ctx.Done():
		return domain.ChangeEvent{}, ctx.Err()
	case <-s.closed:
		return domain.ChangeEvent{}, backend.ErrStreamClosed
	case err := <-s.errs:
		return domain.ChangeEvent{}, err
	case e := <-s.events:
		return e, nil
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// push hands e to the consumer. It reports false if the stream was closed
// before anyone took the event.
func (s *fakeStream) push(t *testing.T, e domain.ChangeEvent) bool {
	t.Helper()
	select {
	case s.events <- e:
		return true
	case <-s.closed:
		return false
	case <-time.After(waitFor):
		t.Fatalf("event %s/%s was never consumed", e.Table, e.Type)
		return false
	}
}

func (s *fakeStream) fail(t *testing.T, err error) {
	t.Helper()
	select {
	case s.errs <- err:
	case <-time.After(waitFor):
		t.Fatalf("stream error was never consumed")
	}
}

type fakeFeed struct {
	mu       sync.Mutex
	failures int
	attempts int
	authors  [][]string
	streams  chan *fakeStream
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{streams: make(chan *fakeStream, 16)}
}

func (f *fakeFeed) Subscribe(_ context.Context, authorIDs []string) (backend.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection refused")
	}
	f.authors = append(f.authors, append([]string(nil), authorIDs...))
	s := newFakeStream()
	f.streams <- s
	return s, nil
}

func (f *fakeFeed) next(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-f.streams:
		return s
	case <-time.After(waitFor):
		t.Fatalf("no subscription was opened")
		return nil
	}
}

func (f *fakeFeed) subscriptions() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.authors...)
}

func fastRetry() retry.Config {
	return retry.Config{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func insertEvent(t *testing.T, p domain.Post) domain.ChangeEvent {
	return domain.ChangeEvent{
		Table:  domain.TablePosts,
		Type:   domain.ChangeInsert,
		Topic:  p.AuthorID,
		Record: rawJSON(t, domain.PostRecordFrom(p)),
	}
}

func deleteEvent(t *testing.T, id string) domain.ChangeEvent {
	return domain.ChangeEvent{
		Table:     domain.TablePosts,
		Type:      domain.ChangeDelete,
		OldRecord: rawJSON(t, domain.PostRecord{ID: id}),
	}
}

func reactionEvent(t *testing.T, changeType domain.ChangeType, postID, author string, e domain.Emoji) domain.ChangeEvent {
	rec := domain.ReactionRecord{PostID: postID, UserID: author, Emoji: string(e)}
	event := domain.ChangeEvent{Table: domain.TableReactions, Type: changeType, CommitTimestamp: t0}
	if changeType == domain.ChangeDelete {
		event.OldRecord = rawJSON(t, rec)
	} else {
		event.Record = rawJSON(t, rec)
	}
	return event
}

type ingestorFixture struct {
	ingestor *Ingestor
	feed     *fakeFeed
	cache    *PostCache
	clock    *clockwork.FakeClock
	client   *mock_backend.MockClient
	skip     func(postID string) bool
	friends  chan struct{}
}

func newIngestorFixture(t *testing.T) *ingestorFixture {
	t.Helper()
	cache, clock := newTestCache()

	f := &ingestorFixture{
		feed:    newFakeFeed(),
		cache:   cache,
		clock:   clock,
		client:  mock_backend.NewMockClient(gomock.NewController(t)),
		friends: make(chan struct{}, 4),
	}
	f.ingestor = NewIngestor(IngestorOpts{
		Feed:     f.feed,
		Client:   f.client,
		Cache:    cache,
		ViewerID: "me",
		Clock:    clockwork.Clock(clock),
		Logger:   logger.NewNop(),
		Retry:    fastRetry(),
		OnFriendshipChange: func() {
			f.friends <- struct{}{}
		},
		SkipViewerReaction: func(postID string) bool {
			return f.skip != nil && f.skip(postID)
		},
	})
	t.Cleanup(f.ingestor.Close)
	return f
}

func (f *ingestorFixture) open(t *testing.T, authors ...string) *fakeStream {
	t.Helper()
	f.ingestor.Open(authors)
	s := f.feed.next(t)
	assert.Eventually(t, func() bool { return f.ingestor.State() == StateLive }, waitFor, time.Millisecond)
	return s
}

func TestIngestorAppliesScopedInserts(t *testing.T) {
	f := newIngestorFixture(t)
	assert.Equal(t, StateClosed, f.ingestor.State())

	s := f.open(t, "alice", "me")
	assert.True(t, f.ingestor.Bound([]string{"alice", "me"}))
	assert.True(t, f.ingestor.NotLiveSince().IsZero())

	s.push(t, insertEvent(t, newTestPost("c1", "carol", t0)))
	s.push(t, insertEvent(t, newTestPost("a1", "alice", t0)))

	assert.Eventually(t, func() bool { return f.cache.Has("a1") }, waitFor, time.Millisecond)
	assert.False(t, f.cache.Has("c1"), "authors outside the subscription are dropped")
}

func TestIngestorDeleteOfAbsentPostIsNoop(t *testing.T) {
	f := newIngestorFixture(t)
	f.cache.Upsert(newTestPost("p1", "alice", t0))
	s := f.open(t, "alice", "me")

	s.push(t, deleteEvent(t, "p2"))
	s.push(t, deleteEvent(t, "p2"))
	s.push(t, insertEvent(t, newTestPost("p3", "alice", t0)))

	assert.Eventually(t, func() bool { return f.cache.Has("p3") }, waitFor, time.Millisecond)
	assert.True(t, f.cache.Has("p1"))
	assert.Equal(t, 2, f.cache.Len())

	s.push(t, deleteEvent(t, "p1"))
	assert.Eventually(t, func() bool { return !f.cache.Has("p1") }, waitFor, time.Millisecond)
}

func TestIngestorReactions(t *testing.T) {
	f := newIngestorFixture(t)
	f.cache.Upsert(newTestPost("p1", "alice", t0))
	s := f.open(t, "alice", "me")

	s.push(t, reactionEvent(t, domain.ChangeInsert, "ghost", "bob", domain.EmojiFire))
	s.push(t, reactionEvent(t, domain.ChangeInsert, "p1", "bob", domain.EmojiFire))
	s.push(t, reactionEvent(t, domain.ChangeInsert, "p1", "bob", domain.EmojiFire))
	s.push(t, reactionEvent(t, domain.ChangeUpdate, "p1", "me", domain.EmojiSad))

	assert.Eventually(t, func() bool {
		p, _ := f.cache.Get("p1")
		return p.ViewerReaction != nil
	}, waitFor, time.Millisecond)

	p, _ := f.cache.Get("p1")
	require.Len(t, p.Reactions, 2, "replayed echoes do not duplicate")
	assert.Equal(t, domain.EmojiSad, *p.ViewerReaction)
	assert.False(t, f.cache.Has("ghost"))

	s.push(t, reactionEvent(t, domain.ChangeDelete, "p1", "bob", ""))
	assert.Eventually(t, func() bool {
		p, _ := f.cache.Get("p1")
		return len(p.Reactions) == 1
	}, waitFor, time.Millisecond)
}

func TestIngestorSkipsViewerEchoWhilePending(t *testing.T) {
	f := newIngestorFixture(t)
	f.cache.Upsert(newTestPost("p1", "alice", t0))
	f.skip = func(postID string) bool { return postID == "p1" }
	s := f.open(t, "alice", "me")

	s.push(t, reactionEvent(t, domain.ChangeInsert, "p1", "me", domain.EmojiHeart))
	s.push(t, reactionEvent(t, domain.ChangeInsert, "p1", "bob", domain.EmojiHeart))

	assert.Eventually(t, func() bool {
		p, _ := f.cache.Get("p1")
		return len(p.Reactions) == 1
	}, waitFor, time.Millisecond)
	p, _ := f.cache.Get("p1")
	assert.Nil(t, p.ViewerReaction)
}

func TestIngestorPatchesUpdates(t *testing.T) {
	f := newIngestorFixture(t)
	f.cache.Upsert(newTestPost("p1", "alice", t0))
	s := f.open(t, "alice", "me")

	views := int64(12)
	s.push(t, domain.ChangeEvent{
		Table:  domain.TablePosts,
		Type:   domain.ChangeUpdate,
		Record: rawJSON(t, domain.PostRecord{ID: "p1", ViewCount: &views}),
	})

	assert.Eventually(t, func() bool {
		p, _ := f.cache.Get("p1")
		return p.ViewCount == views
	}, waitFor, time.Millisecond)
}

func TestIngestorCompletesPartialInserts(t *testing.T) {
	f := newIngestorFixture(t)
	full := newTestPost("p1", "alice", t0)
	f.client.EXPECT().FetchPost(gomock.Any(), "p1").Return(full, nil)
	s := f.open(t, "alice", "me")

	s.push(t, domain.ChangeEvent{
		Table:  domain.TablePosts,
		Type:   domain.ChangeInsert,
		Topic:  "alice",
		Record: rawJSON(t, domain.PostRecord{ID: "p1", UserID: "alice"}),
	})

	assert.Eventually(t, func() bool { return f.cache.Has("p1") }, waitFor, time.Millisecond)
	got, _ := f.cache.Get("p1")
	assert.Equal(t, full.Media, got.Media)
}

func TestIngestorSkipsMalformedEvents(t *testing.T) {
	f := newIngestorFixture(t)
	s := f.open(t, "alice", "me")

	s.fail(t, fmt.Errorf("%w: bad json", backend.ErrMalformedEvent))
	s.push(t, domain.ChangeEvent{Table: domain.TablePosts, Type: domain.ChangeInsert, Record: json.RawMessage(`{}`)})
	s.push(t, insertEvent(t, newTestPost("p1", "alice", t0)))

	assert.Eventually(t, func() bool { return f.cache.Has("p1") }, waitFor, time.Millisecond)
	assert.Len(t, f.feed.subscriptions(), 1)
	assert.Equal(t, StateLive, f.ingestor.State())
}

func TestIngestorReconnectsWithSameFilter(t *testing.T) {
	f := newIngestorFixture(t)
	first := f.open(t, "alice", "me")

	first.fail(t, errors.New("connection reset"))

	// the stream died at once, so the reconnect waits out the initial interval
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, StateReconnecting, f.ingestor.State())
	assert.Len(t, f.feed.subscriptions(), 1)

	f.clock.Advance(fastRetry().InitialInterval)
	second := f.feed.next(t)
	assert.Eventually(t, func() bool { return f.ingestor.State() == StateLive }, waitFor, time.Millisecond)

	second.push(t, insertEvent(t, newTestPost("p1", "alice", t0)))
	assert.Eventually(t, func() bool { return f.cache.Has("p1") }, waitFor, time.Millisecond)

	subs := f.feed.subscriptions()
	require.Len(t, subs, 2)
	assert.Equal(t, subs[0], subs[1])
}

func TestIngestorRetriesSubscribe(t *testing.T) {
	f := newIngestorFixture(t)
	f.feed.failures = 3

	f.open(t, "me")

	f.feed.mu.Lock()
	defer f.feed.mu.Unlock()
	assert.Equal(t, 4, f.feed.attempts)
}

func TestIngestorCloseDropsStaleEvents(t *testing.T) {
	f := newIngestorFixture(t)
	old := f.open(t, "alice", "bob", "me")

	f.ingestor.Close()
	assert.Equal(t, StateClosed, f.ingestor.State())
	assert.False(t, f.ingestor.Bound([]string{"alice", "bob", "me"}))
	assert.False(t, old.push(t, insertEvent(t, newTestPost("b1", "bob", t0))))

	fresh := f.open(t, "alice", "me")
	fresh.push(t, insertEvent(t, newTestPost("b2", "bob", t0)))
	fresh.push(t, insertEvent(t, newTestPost("a1", "alice", t0)))

	assert.Eventually(t, func() bool { return f.cache.Has("a1") }, waitFor, time.Millisecond)
	assert.False(t, f.cache.Has("b1"))
	assert.False(t, f.cache.Has("b2"))
	assert.Equal(t, []string{"alice", "me"}, f.ingestor.Authors())
}

func TestIngestorReportsFriendshipChanges(t *testing.T) {
	f := newIngestorFixture(t)
	s := f.open(t, "me")

	s.push(t, domain.ChangeEvent{
		Table:  domain.TableFriendships,
		Type:   domain.ChangeInsert,
		Record: rawJSON(t, domain.FriendshipRecord{UserID: "carol", FriendID: "dave", Status: domain.FriendshipAccepted}),
	})
	s.push(t, domain.ChangeEvent{
		Table:  domain.TableFriendships,
		Type:   domain.ChangeInsert,
		Record: rawJSON(t, domain.FriendshipRecord{UserID: "carol", FriendID: "me", Status: domain.FriendshipAccepted}),
	})

	select {
	case <-f.friends:
	case <-time.After(waitFor):
		t.Fatal("friendship change not reported")
	}
	assert.Empty(t, f.friends)
}
