package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneDoesNotShareState(t *testing.T) {
	caption := "sunset"
	fire := EmojiFire
	p := Post{
		ID:             "p1",
		Caption:        &caption,
		Location:       &Location{Name: "Pier", Latitude: 1, Longitude: 2},
		Reactions:      []Reaction{{PostID: "p1", AuthorID: "u1", Emoji: EmojiFire}},
		ViewerReaction: &fire,
	}

	c := p.Clone()
	*c.Caption = "changed"
	c.Location.Name = "Elsewhere"
	c.Reactions[0].Emoji = EmojiSad
	*c.ViewerReaction = EmojiSad

	assert.Equal(t, "sunset", *p.Caption)
	assert.Equal(t, "Pier", p.Location.Name)
	assert.Equal(t, EmojiFire, p.Reactions[0].Emoji)
	assert.Equal(t, EmojiFire, *p.ViewerReaction)
}

func TestIsActiveBoundary(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	p := Post{ExpiresAt: now}

	assert.False(t, p.IsActive(now))
	assert.True(t, p.IsActive(now.Add(-time.Nanosecond)))
}

func TestLocationValidate(t *testing.T) {
	assert.NoError(t, Location{City: "Austin", Latitude: 30.2, Longitude: -97.7}.Validate())
	assert.Error(t, Location{City: "Nowhere", Latitude: 91}.Validate())
	assert.Error(t, Location{City: "Nowhere", Longitude: -181}.Validate())
	assert.Error(t, Location{Latitude: 10, Longitude: 10}.Validate())
	assert.Error(t, Location{Name: "cafe", Latitude: math.NaN()}.Validate())
	assert.Error(t, Location{Name: "cafe", Longitude: math.Inf(-1)}.Validate())
}

func TestPostRecordFromWire(t *testing.T) {
	raw := `{"id":"p1","user_id":"u1","media_url":"https://cdn/p1.jpg","media_type":"image",
		"city":"Austin","latitude":30.2,"longitude":-97.7,
		"created_at":"2026-10-19T12:00:00Z","expires_at":"2026-10-19T13:00:00Z"}`

	var rec PostRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	require.True(t, rec.Complete())

	p := rec.ToPost()
	assert.Equal(t, "u1", p.AuthorID)
	assert.Equal(t, MediaImage, p.Media.Kind)
	require.NotNil(t, p.Location)
	assert.Equal(t, "Austin", p.Location.City)
	assert.Equal(t, time.Hour, p.ExpiresAt.Sub(p.CreatedAt))
	assert.Nil(t, p.Caption)
}

func TestPartialPostRecord(t *testing.T) {
	var rec PostRecord
	require.NoError(t, json.Unmarshal([]byte(`{"id":"p1","view_count":7}`), &rec))

	assert.False(t, rec.Complete())
	patch := rec.Patch()
	require.NotNil(t, patch.ViewCount)
	assert.Equal(t, int64(7), *patch.ViewCount)
	assert.Nil(t, rec.ToPost().Location)
}

func TestParseEmoji(t *testing.T) {
	e, ok := ParseEmoji("🔥")
	assert.True(t, ok)
	assert.Equal(t, EmojiFire, e)

	_, ok = ParseEmoji("🍕")
	assert.False(t, ok)
	assert.Len(t, Emojis(), 6)
}
