package backend

import (
	"context"
	"errors"

	"github.com/orgball2608/ephemeral-feed/internal/domain"
)

var (
	// ErrMalformedEvent marks a single undecodable event; the stream itself is still usable.
	ErrMalformedEvent = errors.New("malformed change event")
	ErrStreamClosed   = errors.New("change stream closed")
)

//go:generate go run go.uber.org/mock/mockgen -source=backend.go -destination=mocks/mock.go

// Client is the backend SDK surface the feed engine consumes. Errors are
// classified with pkg/errors codes.
type Client interface {
	// FetchPosts returns active posts by any of authorIDs, with their reactions
	FetchPosts(ctx context.Context, authorIDs []string) ([]domain.Post, error)
	FetchPost(ctx context.Context, id string) (domain.Post, error)

	// UploadMedia stores the bytes and returns a public URL
	UploadMedia(ctx context.Context, ownerID string, data []byte, kind domain.MediaKind) (string, error)
	// RemoveMedia deletes an object uploaded by UploadMedia; unknown URLs are not an error
	RemoveMedia(ctx context.Context, url string) error
	InsertPost(ctx context.Context, post domain.NewPost) (domain.Post, error)
	DeletePost(ctx context.Context, id string, authorID string) error

	UpsertReaction(ctx context.Context, postID string, authorID string, emoji domain.Emoji) (domain.Reaction, error)
	DeleteReaction(ctx context.Context, postID string, authorID string) error
	IncrementViews(ctx context.Context, id string) (domain.Post, error)

	AcceptedFriendIDs(ctx context.Context, userID string) ([]string, error)
	AcceptFriend(ctx context.Context, userID string, friendID string) error
	RemoveFriend(ctx context.Context, userID string, friendID string) error
}

// ChangeFeed opens realtime subscriptions filtered by author id.
type ChangeFeed interface {
	// Subscribe returns once the transport acknowledged the subscription
	Subscribe(ctx context.Context, authorIDs []string) (Stream, error)
}

type Stream interface {
	// Next blocks until an event arrives, ctx is done or the transport fails
	Next(ctx context.Context) (domain.ChangeEvent, error)
	Close() error
}
