package api

import (
	"context"

	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/internal/feed"
	"github.com/orgball2608/ephemeral-feed/internal/settings"
)

//go:generate go run go.uber.org/mock/mockgen -source=api.go -destination=mocks/mock.go

// FeedService is the part of the feed engine the UI shell talks to.
type FeedService interface {
	Load(ctx context.Context) error
	Refresh(ctx context.Context) error
	Foreground(ctx context.Context) error
	Active() []domain.Post

	Create(ctx context.Context, req feed.CreateRequest) (domain.Post, error)
	DeletePost(ctx context.Context, id string) error
	ToggleReaction(ctx context.Context, postID string, emoji string) (*domain.Emoji, error)
	MarkViewed(ctx context.Context, postID string) (int64, error)

	AcceptFriend(ctx context.Context, friendID string) error
	RemoveFriend(ctx context.Context, friendID string) error

	Pending() []feed.PendingMutation
	Status() feed.Status
	Health() error
}

type SettingsStore interface {
	Get() settings.Settings
	Update(s settings.Settings) error
}
