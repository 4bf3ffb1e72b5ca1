package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeAlwaysContainsSelf(t *testing.T) {
	s := NewFriendScope()
	assert.Zero(t, s.Version())

	changed, err := s.Recompute("me", nil)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"me"}, s.IDs())
	assert.True(t, s.Contains("me"))
	assert.Equal(t, "me", s.Self())
}

func TestScopeRecomputeReportsChanges(t *testing.T) {
	s := NewFriendScope()

	changed, err := s.Recompute("me", []string{"bob", "alice", "alice", ""})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"alice", "bob", "me"}, s.IDs())
	assert.Equal(t, uint64(1), s.Version())

	changed, err = s.Recompute("me", []string{"alice", "bob"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, uint64(1), s.Version())

	changed, err = s.Recompute("me", []string{"alice"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, s.Contains("bob"))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, uint64(2), s.Version())
}

func TestScopeNeedsViewer(t *testing.T) {
	s := NewFriendScope()

	_, err := s.Recompute("", []string{"alice"})
	assert.ErrorIs(t, err, ErrNoViewer)
	assert.Zero(t, s.Len())
}
