package domain

import (
	"encoding/json"
	"time"
)

const (
	TablePosts       = "posts"
	TableReactions   = "reactions"
	TableFriendships = "friendships"
)

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is a row change as delivered by the realtime transport. Topic is
// the user id whose channel carried the event.
type ChangeEvent struct {
	Table           string          `json:"table"`
	Type            ChangeType      `json:"type"`
	Topic           string          `json:"topic"`
	Record          json.RawMessage `json:"record,omitempty"`
	OldRecord       json.RawMessage `json:"old_record,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// PostRecord is the wire shape of a posts row. Update events may carry only
// the changed columns, delete events only the id.
type PostRecord struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id,omitempty"`
	MediaURL     string     `json:"media_url,omitempty"`
	MediaType    string     `json:"media_type,omitempty"`
	Caption      *string    `json:"caption,omitempty"`
	LocationName string     `json:"location_name,omitempty"`
	City         string     `json:"city,omitempty"`
	State        string     `json:"state,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	ViewCount    *int64     `json:"view_count,omitempty"`
}

func PostRecordFrom(p Post) PostRecord {
	createdAt, expiresAt, views := p.CreatedAt, p.ExpiresAt, p.ViewCount
	r := PostRecord{
		ID:        p.ID,
		UserID:    p.AuthorID,
		MediaURL:  p.Media.URL,
		MediaType: string(p.Media.Kind),
		Caption:   p.Caption,
		CreatedAt: &createdAt,
		ExpiresAt: &expiresAt,
		ViewCount: &views,
	}
	if p.Location != nil {
		lat, lng := p.Location.Latitude, p.Location.Longitude
		r.LocationName = p.Location.Name
		r.City = p.Location.City
		r.State = p.Location.State
		r.Latitude = &lat
		r.Longitude = &lng
	}
	return r
}

// Complete reports whether the record carries everything needed to build a
// Post without a follow-up fetch.
func (r PostRecord) Complete() bool {
	return r.ID != "" && r.UserID != "" && r.MediaURL != "" && r.CreatedAt != nil && r.ExpiresAt != nil
}

func (r PostRecord) ToPost() Post {
	p := Post{
		ID:       r.ID,
		AuthorID: r.UserID,
		Media:    MediaRef{URL: r.MediaURL, Kind: MediaKind(r.MediaType)},
		Caption:  r.Caption,
	}
	if r.CreatedAt != nil {
		p.CreatedAt = *r.CreatedAt
	}
	if r.ExpiresAt != nil {
		p.ExpiresAt = *r.ExpiresAt
	}
	if r.ViewCount != nil {
		p.ViewCount = *r.ViewCount
	}
	if r.LocationName != "" || r.City != "" || r.State != "" || r.Latitude != nil {
		loc := &Location{Name: r.LocationName, City: r.City, State: r.State}
		if r.Latitude != nil {
			loc.Latitude = *r.Latitude
		}
		if r.Longitude != nil {
			loc.Longitude = *r.Longitude
		}
		p.Location = loc
	}
	return p
}

// Patch extracts the mutable columns of an update record.
func (r PostRecord) Patch() PostPatch {
	return PostPatch{
		ViewCount: r.ViewCount,
		Caption:   r.Caption,
	}
}

type ReactionRecord struct {
	PostID    string     `json:"post_id"`
	UserID    string     `json:"user_id"`
	Emoji     string     `json:"emoji,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func ReactionRecordFrom(r Reaction) ReactionRecord {
	createdAt := r.CreatedAt
	return ReactionRecord{
		PostID:    r.PostID,
		UserID:    r.AuthorID,
		Emoji:     string(r.Emoji),
		CreatedAt: &createdAt,
	}
}

type FriendshipRecord struct {
	UserID   string `json:"user_id"`
	FriendID string `json:"friend_id"`
	Status   string `json:"status,omitempty"`
}
