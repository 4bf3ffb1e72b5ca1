package feed

import (
	"testing"
	"time"

	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emoji(e domain.Emoji) *domain.Emoji {
	return &e
}

func TestLedgerToggleIsAnInvolution(t *testing.T) {
	l := NewReactionLedger("me")
	p := &domain.Post{ID: "p1"}
	at := time.Now()

	before, after := l.Apply(p, "me", emoji(domain.EmojiFire), at)
	assert.Nil(t, before)
	require.NotNil(t, after)
	assert.Equal(t, domain.EmojiFire, *p.ViewerReaction)

	before, after = l.Apply(p, "me", emoji(domain.EmojiFire), at)
	assert.Equal(t, domain.EmojiFire, *before)
	assert.Nil(t, after)
	assert.Empty(t, p.Reactions)
	assert.Nil(t, p.ViewerReaction)
}

func TestLedgerKeepsOneReactionPerAuthor(t *testing.T) {
	l := NewReactionLedger("me")
	p := &domain.Post{ID: "p1"}
	at := time.Now()

	for _, e := range domain.Emojis() {
		l.Apply(p, "alice", emoji(e), at)
		l.Apply(p, "me", emoji(e), at)
	}
	l.Apply(p, "alice", emoji(domain.EmojiClap), at)

	require.Len(t, p.Reactions, 1)
	assert.Equal(t, domain.EmojiClap, *l.Of(p, "me"))
	assert.Nil(t, l.Of(p, "alice"))
	assert.Equal(t, domain.EmojiClap, *p.ViewerReaction)
	assert.Equal(t, 1, p.ReactionCounts()[domain.EmojiClap])
}

func TestLedgerSetIsIdempotent(t *testing.T) {
	l := NewReactionLedger("me")
	p := &domain.Post{ID: "p1"}
	at := time.Now()

	l.Set(p, "alice", emoji(domain.EmojiWow), at)
	l.Set(p, "alice", emoji(domain.EmojiWow), at)
	require.Len(t, p.Reactions, 1)
	assert.Nil(t, p.ViewerReaction)

	l.Set(p, "alice", nil, at)
	l.Set(p, "alice", nil, at)
	assert.Empty(t, p.Reactions)
}

func TestLedgerNormalizeCollapsesDuplicates(t *testing.T) {
	l := NewReactionLedger("me")
	p := &domain.Post{ID: "p1", Reactions: []domain.Reaction{
		{AuthorID: "me", Emoji: domain.EmojiHeart},
		{AuthorID: "alice", Emoji: domain.EmojiFire},
		{AuthorID: "me", Emoji: domain.EmojiLaugh},
	}}

	l.normalize(p)

	require.Len(t, p.Reactions, 2)
	assert.Equal(t, domain.EmojiLaugh, *p.ViewerReaction)
}
