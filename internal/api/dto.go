package api

import (
	"time"

	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/internal/feed"
	"github.com/orgball2608/ephemeral-feed/internal/settings"
	"github.com/orgball2608/ephemeral-feed/pkg/formatter"
)

type locationResponse struct {
	Name      string  `json:"name,omitempty"`
	City      string  `json:"city,omitempty"`
	State     string  `json:"state,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type postResponse struct {
	ID             string               `json:"id"`
	AuthorID       string               `json:"author_id"`
	MediaURL       string               `json:"media_url"`
	MediaKind      domain.MediaKind     `json:"media_kind"`
	Caption        *string              `json:"caption,omitempty"`
	Location       *locationResponse    `json:"location,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	ExpiresAt      time.Time            `json:"expires_at"`
	ViewCount      int64                `json:"view_count"`
	Views          string               `json:"views"`
	Posted         string               `json:"posted"`
	ExpiresIn      string               `json:"expires_in"`
	Reactions      map[domain.Emoji]int `json:"reactions"`
	ViewerReaction *domain.Emoji        `json:"viewer_reaction"`
}

// newPostResponse renders p with display labels relative to now.
func newPostResponse(p domain.Post, now time.Time) postResponse {
	r := postResponse{
		ID:             p.ID,
		AuthorID:       p.AuthorID,
		MediaURL:       p.Media.URL,
		MediaKind:      p.Media.Kind,
		Caption:        p.Caption,
		CreatedAt:      p.CreatedAt,
		ExpiresAt:      p.ExpiresAt,
		ViewCount:      p.ViewCount,
		Views:          formatter.FormatNumber(p.ViewCount),
		Posted:         formatter.FormatAgo(p.CreatedAt, now),
		ExpiresIn:      formatter.FormatRemaining(p.ExpiresAt.Sub(now)),
		Reactions:      p.ReactionCounts(),
		ViewerReaction: p.ViewerReaction,
	}
	if p.Location != nil {
		r.Location = &locationResponse{
			Name:      p.Location.Name,
			City:      p.Location.City,
			State:     p.Location.State,
			Latitude:  p.Location.Latitude,
			Longitude: p.Location.Longitude,
		}
	}
	return r
}

func newPostsResponse(posts []domain.Post, now time.Time) []postResponse {
	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, newPostResponse(p, now))
	}
	return out
}

type pendingResponse struct {
	Kind      feed.MutationKind `json:"kind"`
	PostID    string            `json:"post_id"`
	Target    *domain.Emoji     `json:"target,omitempty"`
	StartedAt time.Time         `json:"started_at"`
}

type statusResponse struct {
	State       string `json:"state"`
	ScopeSize   int    `json:"scope_size"`
	CachedPosts int    `json:"cached_posts"`
	Pending     int    `json:"pending"`
	NotLiveFor  string `json:"not_live_for,omitempty"`
	Loaded      bool   `json:"loaded"`
}

func newStatusResponse(s feed.Status) statusResponse {
	r := statusResponse{
		State:       s.State,
		ScopeSize:   s.ScopeSize,
		CachedPosts: s.CachedPosts,
		Pending:     s.Pending,
		Loaded:      s.Loaded,
	}
	if s.NotLiveFor > 0 {
		r.NotLiveFor = s.NotLiveFor.Round(time.Second).String()
	}
	return r
}

type settingsBody struct {
	LocationPrecision settings.Precision `json:"location_precision"`
	ShareLocation     *bool              `json:"share_location"`
}

type reactionBody struct {
	Emoji string `json:"emoji"`
}
