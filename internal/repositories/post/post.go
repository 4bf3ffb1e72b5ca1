package post

import (
	"context"
	"errors"
	"time"

	"github.com/orgball2608/ephemeral-feed/internal/domain"
)

var (
	ErrAlreadyExists = errors.New("post already exists")
	ErrNotFound      = errors.New("post not found")
	ErrNotAuthor     = errors.New("post belongs to another user")
)

//go:generate go run go.uber.org/mock/mockgen -source=post.go -destination=mocks/mock.go
type Repository interface {
	// FetchActiveByAuthors returns posts by any of authorIDs that expire after now, newest first
	FetchActiveByAuthors(ctx context.Context, authorIDs []string, now time.Time) ([]*domain.Post, error)

	// GetByID returns a single post regardless of expiry
	GetByID(ctx context.Context, id string) (*domain.Post, error)

	// Create inserts a post and returns the stored row
	Create(ctx context.Context, post domain.NewPost) (*domain.Post, error)

	// Delete removes a post owned by authorID
	Delete(ctx context.Context, id string, authorID string) error

	// IncrementViews bumps the view counter of an active post and returns the stored row
	IncrementViews(ctx context.Context, id string, now time.Time) (*domain.Post, error)
}
