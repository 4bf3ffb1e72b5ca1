package domain

import (
	"fmt"
	"math"
	"time"
)

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool {
	return k == MediaImage || k == MediaVideo
}

type MediaRef struct {
	URL  string
	Kind MediaKind
}

type Location struct {
	Name      string
	City      string
	State     string
	Latitude  float64
	Longitude float64
}

// Validate checks coordinate ranges and that the place is named somehow.
func (l Location) Validate() error {
	if !finite(l.Latitude) || !finite(l.Longitude) {
		return fmt.Errorf("coordinates %v,%v are not finite", l.Latitude, l.Longitude)
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", l.Longitude)
	}
	if l.Name == "" && l.City == "" {
		return fmt.Errorf("location needs a name or a city")
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

type Post struct {
	ID        string
	AuthorID  string
	Media     MediaRef
	Caption   *string
	Location  *Location
	CreatedAt time.Time
	ExpiresAt time.Time
	ViewCount int64

	// Reactions holds at most one entry per author.
	Reactions []Reaction
	// ViewerReaction mirrors the viewer's entry in Reactions.
	ViewerReaction *Emoji
}

// IsActive reports whether the post is still visible at now.
func (p Post) IsActive(now time.Time) bool {
	return now.Before(p.ExpiresAt)
}

// Clone returns a deep copy so cached posts never share slices or pointers
// with callers.
func (p Post) Clone() Post {
	c := p
	if p.Caption != nil {
		caption := *p.Caption
		c.Caption = &caption
	}
	if p.Location != nil {
		loc := *p.Location
		c.Location = &loc
	}
	if p.Reactions != nil {
		c.Reactions = make([]Reaction, len(p.Reactions))
		copy(c.Reactions, p.Reactions)
	}
	if p.ViewerReaction != nil {
		e := *p.ViewerReaction
		c.ViewerReaction = &e
	}
	return c
}

func (p Post) ReactionCounts() map[Emoji]int {
	counts := make(map[Emoji]int, len(p.Reactions))
	for _, r := range p.Reactions {
		counts[r.Emoji]++
	}
	return counts
}

// PostPatch is a partial update. Nil fields are left untouched.
type PostPatch struct {
	ViewCount *int64
	Caption   *string
	Reactions []Reaction
}

func (p PostPatch) Empty() bool {
	return p.ViewCount == nil && p.Caption == nil && p.Reactions == nil
}

// NewPost carries the fields the client supplies when inserting a post.
type NewPost struct {
	AuthorID  string
	Media     MediaRef
	Caption   *string
	Location  *Location
	CreatedAt time.Time
	ExpiresAt time.Time
}
