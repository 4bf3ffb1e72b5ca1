package feed

import (
	"errors"
	"sort"
	"sync"
)

var ErrNoViewer = errors.New("scope needs the viewer id")

// FriendScope is the set of authors whose posts the viewer may see: the
// viewer plus every accepted friend.
type FriendScope struct {
	mu      sync.RWMutex
	self    string
	members map[string]struct{}
	version uint64
}

func NewFriendScope() *FriendScope {
	return &FriendScope{members: map[string]struct{}{}}
}

// Recompute replaces the scope with {selfID} ∪ friendIDs and reports whether
// membership changed.
func (s *FriendScope) Recompute(selfID string, friendIDs []string) (bool, error) {
	if selfID == "" {
		return false, ErrNoViewer
	}

	next := make(map[string]struct{}, len(friendIDs)+1)
	next[selfID] = struct{}{}
	for _, id := range friendIDs {
		if id != "" {
			next[id] = struct{}{}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.self == selfID && sameMembers(s.members, next) {
		return false, nil
	}
	s.self = selfID
	s.members = next
	s.version++
	return true, nil
}

func sameMembers(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

func (s *FriendScope) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[id]
	return ok
}

// IDs returns the members sorted.
func (s *FriendScope) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.members))
	for id := range s.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *FriendScope) Self() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.self
}

func (s *FriendScope) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// Version increases on every membership change. Zero means never computed.
func (s *FriendScope) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
