package feed

import (
	"sort"
	"sync"
	"time"

	"github.com/orgball2608/ephemeral-feed/internal/domain"
)

type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationReact  MutationKind = "react"
	MutationDelete MutationKind = "delete"
)

// PendingMutation is a local change applied ahead of server confirmation.
// For creates PostID is a client token, since the server id is not known yet.
type PendingMutation struct {
	Kind      MutationKind
	PostID    string
	Target    *domain.Emoji
	StartedAt time.Time

	seq uint64
}

type pendingKey struct {
	kind   MutationKind
	postID string
}

type pendingEntry struct {
	mutation PendingMutation
	// last state the server is known to hold; rollback target
	baseline *domain.Emoji
}

// pendingTracker keeps at most one mutation per (post, kind); a newer one
// supersedes the older.
type pendingTracker struct {
	mu      sync.Mutex
	seq     uint64
	entries map[pendingKey]*pendingEntry
}

func newPendingTracker() *pendingTracker {
	return &pendingTracker{entries: map[pendingKey]*pendingEntry{}}
}

// Begin records a mutation. baseline is only kept when nothing is pending for
// the key yet; otherwise the older, server-confirmed baseline stays.
func (t *pendingTracker) Begin(kind MutationKind, postID string, baseline, target *domain.Emoji, now time.Time) PendingMutation {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	m := PendingMutation{
		Kind:      kind,
		PostID:    postID,
		Target:    cloneEmoji(target),
		StartedAt: now,
		seq:       t.seq,
	}

	key := pendingKey{kind, postID}
	if entry, ok := t.entries[key]; ok {
		entry.mutation = m
		return m
	}
	t.entries[key] = &pendingEntry{mutation: m, baseline: cloneEmoji(baseline)}
	return m
}

// BeginOnce records a mutation unless one of the same kind is already pending
// for postID.
func (t *pendingTracker) BeginOnce(kind MutationKind, postID string, now time.Time) (PendingMutation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := pendingKey{kind, postID}
	if _, ok := t.entries[key]; ok {
		return PendingMutation{}, false
	}
	t.seq++
	m := PendingMutation{Kind: kind, PostID: postID, StartedAt: now, seq: t.seq}
	t.entries[key] = &pendingEntry{mutation: m}
	return m, true
}

// Succeed reports whether m was still the latest mutation for its key. If a
// newer one is pending, m's result becomes that one's rollback target.
func (t *pendingTracker) Succeed(m PendingMutation) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := pendingKey{m.Kind, m.PostID}
	entry, ok := t.entries[key]
	if !ok {
		return false
	}
	if entry.mutation.seq == m.seq {
		delete(t.entries, key)
		return true
	}
	entry.baseline = cloneEmoji(m.Target)
	return false
}

// Fail returns the state to roll back to, but only when m is still the latest
// mutation for its key; a superseded failure leaves the newer one in charge.
func (t *pendingTracker) Fail(m PendingMutation) (*domain.Emoji, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := pendingKey{m.Kind, m.PostID}
	entry, ok := t.entries[key]
	if !ok || entry.mutation.seq != m.seq {
		return nil, false
	}
	delete(t.entries, key)
	return entry.baseline, true
}

func (t *pendingTracker) Has(kind MutationKind, postID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[pendingKey{kind, postID}]
	return ok
}

// Forget drops everything pending for postID.
func (t *pendingTracker) Forget(postID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.entries {
		if key.postID == postID {
			delete(t.entries, key)
		}
	}
}

func (t *pendingTracker) List() []PendingMutation {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]PendingMutation, 0, len(t.entries))
	for _, entry := range t.entries {
		m := entry.mutation
		m.Target = cloneEmoji(m.Target)
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].seq < out[j].seq
	})
	return out
}

func cloneEmoji(e *domain.Emoji) *domain.Emoji {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}
