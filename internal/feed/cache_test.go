package feed

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestPost(id, author string, createdAt time.Time) domain.Post {
	return domain.Post{
		ID:        id,
		AuthorID:  author,
		Media:     domain.MediaRef{URL: "https://cdn.example/" + id + ".jpg", Kind: domain.MediaImage},
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(time.Hour),
	}
}

func newTestCache() (*PostCache, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(t0)
	return NewPostCache("me", clock, time.Hour), clock
}

func TestUpsertIsIdempotent(t *testing.T) {
	c, _ := newTestCache()
	p := newTestPost("p1", "alice", t0)
	p.Reactions = []domain.Reaction{{PostID: "p1", AuthorID: "me", Emoji: domain.EmojiFire}}

	require.True(t, c.Upsert(p))
	once := c.SelectActive(t0)
	require.True(t, c.Upsert(p))

	assert.Equal(t, once, c.SelectActive(t0))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, domain.EmojiFire, *once[0].ViewerReaction)
}

func TestUpsertKeepsCachedReactions(t *testing.T) {
	c, _ := newTestCache()
	p := newTestPost("p1", "alice", t0)
	p.Reactions = []domain.Reaction{{PostID: "p1", AuthorID: "bob", Emoji: domain.EmojiWow}}
	c.Upsert(p)

	echo := newTestPost("p1", "alice", t0)
	echo.ViewCount = 3
	c.Upsert(echo)

	got, ok := c.Get("p1")
	require.True(t, ok)
	assert.Equal(t, int64(3), got.ViewCount)
	require.Len(t, got.Reactions, 1)
}

func TestRemoveIsIdempotentAndBlocksEchoes(t *testing.T) {
	c, _ := newTestCache()
	p := newTestPost("p1", "alice", t0)
	c.Upsert(p)

	assert.True(t, c.Remove("p1"))
	assert.False(t, c.Remove("p1"))
	assert.Zero(t, c.Len())

	assert.False(t, c.Upsert(p), "late insert echo must not resurrect a removed post")

	c.ReplaceAll([]domain.Post{p})
	assert.True(t, c.Has("p1"), "a full load is authoritative")
}

func TestReplaceAllSinceHonorsNewerRemovals(t *testing.T) {
	c, _ := newTestCache()
	p1 := newTestPost("p1", "alice", t0)
	p2 := newTestPost("p2", "alice", t0)
	c.ReplaceAll([]domain.Post{p1, p2})

	c.Remove("p2")
	mark := c.Mark()
	c.Remove("p1")

	// the snapshot was taken before p1 went away
	c.ReplaceAllSince([]domain.Post{p1, p2}, mark)
	assert.False(t, c.Has("p1"))
	assert.True(t, c.Has("p2"))
	assert.False(t, c.Upsert(p1))

	c.ReplaceAllSince([]domain.Post{p1}, c.Mark())
	assert.True(t, c.Has("p1"))
}

func TestTombstoneOutlivesPost(t *testing.T) {
	c, clock := newTestCache()
	p := newTestPost("p1", "alice", t0)
	c.Upsert(p)
	c.Remove("p1")

	clock.Advance(59 * time.Minute)
	assert.False(t, c.Upsert(p))
}

func TestExpiryIsMonotonic(t *testing.T) {
	c, _ := newTestCache()
	old := newTestPost("old", "alice", t0.Add(-time.Hour-time.Second))
	fresh := newTestPost("fresh", "alice", t0)
	c.ReplaceAll([]domain.Post{old, fresh})

	assert.Len(t, c.SelectActive(t0), 1)

	removed := c.RemoveExpired(t0)
	assert.Equal(t, []string{"old"}, removed)

	assert.False(t, c.Upsert(old), "expired posts never re-enter")
	assert.Empty(t, c.RemoveExpired(t0.Add(-time.Minute)))

	for _, at := range []time.Time{t0, t0.Add(time.Minute), t0.Add(2 * time.Hour)} {
		for _, p := range c.SelectActive(at) {
			assert.NotEqual(t, "old", p.ID)
		}
	}
}

func TestSelectActiveNewestFirst(t *testing.T) {
	c, _ := newTestCache()
	c.Upsert(newTestPost("a", "alice", t0.Add(-30*time.Minute)))
	c.Upsert(newTestPost("b", "bob", t0.Add(-10*time.Minute)))
	c.Upsert(newTestPost("c", "me", t0.Add(-50*time.Minute)))

	posts := c.SelectActive(t0)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{posts[0].ID, posts[1].ID, posts[2].ID})

	// expiry == now is no longer active
	posts = c.SelectActive(t0.Add(10 * time.Minute))
	assert.Len(t, posts, 2)
}

func TestPatch(t *testing.T) {
	c, _ := newTestCache()
	views := int64(9)

	assert.False(t, c.Patch("missing", domain.PostPatch{ViewCount: &views}))

	c.Upsert(newTestPost("p1", "alice", t0))
	assert.True(t, c.Patch("p1", domain.PostPatch{ViewCount: &views}))
	assert.False(t, c.Patch("p1", domain.PostPatch{}))

	got, _ := c.Get("p1")
	assert.Equal(t, views, got.ViewCount)
}

func TestReadsReturnCopies(t *testing.T) {
	c, _ := newTestCache()
	caption := "hello"
	p := newTestPost("p1", "alice", t0)
	p.Caption = &caption
	c.Upsert(p)

	got, _ := c.Get("p1")
	*got.Caption = "mutated"
	got.Reactions = append(got.Reactions, domain.Reaction{AuthorID: "x"})

	again, _ := c.Get("p1")
	assert.Equal(t, "hello", *again.Caption)
	assert.Empty(t, again.Reactions)
}

func TestReactionsOnUnknownPostsAreIgnored(t *testing.T) {
	c, _ := newTestCache()

	assert.False(t, c.SetReaction("ghost", "alice", emoji(domain.EmojiFire), t0))
	_, _, ok := c.ApplyReaction("ghost", "me", emoji(domain.EmojiFire), t0)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestCacheReactionToggle(t *testing.T) {
	c, _ := newTestCache()
	c.Upsert(newTestPost("p1", "alice", t0))

	_, after, ok := c.ApplyReaction("p1", "me", emoji(domain.EmojiFire), t0)
	require.True(t, ok)
	assert.Equal(t, domain.EmojiFire, *after)

	// realtime echo of the same toggle
	c.SetReaction("p1", "me", emoji(domain.EmojiFire), t0)
	got, _ := c.Get("p1")
	require.Len(t, got.Reactions, 1)
	assert.Equal(t, domain.EmojiFire, *got.ViewerReaction)

	_, after, _ = c.ApplyReaction("p1", "me", emoji(domain.EmojiFire), t0)
	assert.Nil(t, after)
	got, _ = c.Get("p1")
	assert.Nil(t, got.ViewerReaction)
}
