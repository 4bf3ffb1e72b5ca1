package feed

import (
	"sort"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/ephemeral-feed/internal/domain"
)

const (
	tombstoneCapacity = 4096
	tombstoneGrace    = time.Minute
)

// PostCache is the local copy of every known post. Callers always get deep
// copies back.
type PostCache struct {
	mu     sync.RWMutex
	posts  map[string]*domain.Post
	ledger ReactionLedger
	clock  clockwork.Clock

	// Removed ids, so a late insert echo cannot bring them back. They expire
	// shortly after the post itself would have. Each holds the removal
	// sequence number it was written at.
	tombstones   gcache.Cache
	tombstoneTTL time.Duration
	removals     uint64

	// Nothing expiring at or before this instant is accepted any more.
	sweptThrough time.Time
}

// NewPostCache creates an empty cache. defaultTTL bounds tombstones of ids
// whose expiry is unknown.
func NewPostCache(viewerID string, clock clockwork.Clock, defaultTTL time.Duration) *PostCache {
	return &PostCache{
		posts:  map[string]*domain.Post{},
		ledger: NewReactionLedger(viewerID),
		clock:  clock,
		tombstones: gcache.New(tombstoneCapacity).
			LRU().
			Clock(clock).
			Build(),
		tombstoneTTL: defaultTTL,
	}
}

func (c *PostCache) accepts(p *domain.Post) bool {
	if !p.ExpiresAt.After(c.sweptThrough) {
		return false
	}
	_, err := c.tombstones.Get(p.ID)
	return err != nil
}

func (c *PostCache) store(p domain.Post) {
	stored := p.Clone()
	c.ledger.normalize(&stored)
	c.posts[stored.ID] = &stored
}

// Mark returns the current removal sequence number. Take it before fetching
// a snapshot and hand it to ReplaceAllSince.
func (c *PostCache) Mark() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.removals
}

// ReplaceAll swaps the whole collection. It is authoritative, so tombstones
// are dropped.
func (c *PostCache) ReplaceAll(posts []domain.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replace(posts, c.removals)
}

// ReplaceAllSince swaps in a snapshot fetched after mark was taken. Ids
// removed after mark are left out of it, since the snapshot may predate the
// removal; older tombstones are dropped.
func (c *PostCache) ReplaceAllSince(posts []domain.Post, mark uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replace(posts, mark)
}

func (c *PostCache) replace(posts []domain.Post, mark uint64) {
	for key, value := range c.tombstones.GetALL(false) {
		if seq, ok := value.(uint64); !ok || seq <= mark {
			c.tombstones.Remove(key)
		}
	}

	c.posts = make(map[string]*domain.Post, len(posts))
	for _, p := range posts {
		if p.ID == "" || !p.ExpiresAt.After(c.sweptThrough) {
			continue
		}
		if _, err := c.tombstones.Get(p.ID); err == nil {
			continue
		}
		c.store(p)
	}
}

// Upsert inserts p or overwrites the cached copy. A nil Reactions slice keeps
// the reactions already cached. It reports whether p was stored.
func (c *PostCache) Upsert(p domain.Post) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p.ID == "" || !c.accepts(&p) {
		return false
	}
	if existing, ok := c.posts[p.ID]; ok && p.Reactions == nil {
		p.Reactions = existing.Reactions
	}
	c.store(p)
	return true
}

// Patch merges the non-nil fields of patch into the cached post. Unknown ids
// are ignored.
func (c *PostCache) Patch(id string, patch domain.PostPatch) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.posts[id]
	if !ok || patch.Empty() {
		return false
	}
	if patch.ViewCount != nil {
		p.ViewCount = *patch.ViewCount
	}
	if patch.Caption != nil {
		caption := *patch.Caption
		p.Caption = &caption
	}
	if patch.Reactions != nil {
		p.Reactions = append([]domain.Reaction(nil), patch.Reactions...)
		c.ledger.normalize(p)
	}
	return true
}

// Remove deletes id and remembers it until shortly after its expiry. It
// reports whether the id was cached.
func (c *PostCache) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ttl := c.tombstoneTTL
	p, ok := c.posts[id]
	if ok {
		ttl = p.ExpiresAt.Sub(c.clock.Now())
		delete(c.posts, id)
	}
	c.removals++
	if ttl > 0 {
		_ = c.tombstones.SetWithExpire(id, c.removals, ttl+tombstoneGrace)
	}
	return ok
}

// SelectActive returns the posts visible at now, newest first.
func (c *PostCache) SelectActive(now time.Time) []domain.Post {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Post, 0, len(c.posts))
	for _, p := range c.posts {
		if p.IsActive(now) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// RemoveExpired drops every post whose expiry is at or before now and returns
// their ids. The watermark only moves forward.
func (c *PostCache) RemoveExpired(now time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.After(c.sweptThrough) {
		c.sweptThrough = now
	}

	var removed []string
	for id, p := range c.posts {
		if !p.ExpiresAt.After(c.sweptThrough) {
			delete(c.posts, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

func (c *PostCache) Get(id string) (domain.Post, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.posts[id]
	if !ok {
		return domain.Post{}, false
	}
	return p.Clone(), true
}

func (c *PostCache) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.posts[id]
	return ok
}

func (c *PostCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.posts)
}

// SetReaction makes authorID's reaction on postID exactly emoji (nil removes).
// Unknown posts are ignored.
func (c *PostCache) SetReaction(postID, authorID string, emoji *domain.Emoji, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.posts[postID]
	if !ok {
		return false
	}
	c.ledger.Set(p, authorID, emoji, at)
	return true
}

// ApplyReaction toggles authorID's reaction on postID with tap semantics and
// returns the reaction before and after.
func (c *PostCache) ApplyReaction(postID, authorID string, emoji *domain.Emoji, at time.Time) (before, after *domain.Emoji, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.posts[postID]
	if !ok {
		return nil, nil, false
	}
	before, after = c.ledger.Apply(p, authorID, emoji, at)
	return before, after, true
}
