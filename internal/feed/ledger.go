package feed

import (
	"time"

	"github.com/orgball2608/ephemeral-feed/internal/domain"
)

// ReactionLedger keeps at most one reaction per author on a post and keeps
// the viewer's own reaction pointer in sync with it.
type ReactionLedger struct {
	viewerID string
}

func NewReactionLedger(viewerID string) ReactionLedger {
	return ReactionLedger{viewerID: viewerID}
}

// Of returns authorID's current emoji on p, or nil.
func (l ReactionLedger) Of(p *domain.Post, authorID string) *domain.Emoji {
	for _, r := range p.Reactions {
		if r.AuthorID == authorID {
			e := r.Emoji
			return &e
		}
	}
	return nil
}

// Set makes authorID's reaction exactly emoji; nil removes it. Replaying the
// same call leaves p unchanged.
func (l ReactionLedger) Set(p *domain.Post, authorID string, emoji *domain.Emoji, at time.Time) {
	idx := -1
	for i, r := range p.Reactions {
		if r.AuthorID == authorID {
			idx = i
			break
		}
	}

	switch {
	case emoji == nil && idx >= 0:
		p.Reactions = append(p.Reactions[:idx:idx], p.Reactions[idx+1:]...)
	case emoji != nil && idx >= 0:
		p.Reactions[idx].Emoji = *emoji
	case emoji != nil:
		p.Reactions = append(p.Reactions, domain.Reaction{
			PostID:    p.ID,
			AuthorID:  authorID,
			Emoji:     *emoji,
			CreatedAt: at,
		})
	}

	if authorID == l.viewerID {
		l.syncViewer(p)
	}
}

// Apply is the tap semantics: the same emoji again removes the reaction, a
// different one replaces it, nil removes. It returns the reaction before and
// after.
func (l ReactionLedger) Apply(p *domain.Post, authorID string, emoji *domain.Emoji, at time.Time) (before, after *domain.Emoji) {
	before = l.Of(p, authorID)
	if emoji != nil && (before == nil || *before != *emoji) {
		e := *emoji
		after = &e
	}
	l.Set(p, authorID, after, at)
	return before, after
}

func (l ReactionLedger) syncViewer(p *domain.Post) {
	p.ViewerReaction = l.Of(p, l.viewerID)
}

// normalize enforces one reaction per author (last one wins) on a post that
// came from outside the ledger.
func (l ReactionLedger) normalize(p *domain.Post) {
	if len(p.Reactions) > 1 {
		seen := make(map[string]int, len(p.Reactions))
		out := p.Reactions[:0]
		for _, r := range p.Reactions {
			if i, ok := seen[r.AuthorID]; ok {
				out[i] = r
				continue
			}
			seen[r.AuthorID] = len(out)
			out = append(out, r)
		}
		p.Reactions = out
	}
	l.syncViewer(p)
}
