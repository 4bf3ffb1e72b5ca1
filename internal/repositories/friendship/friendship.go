package friendship

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("friendship not found")

//go:generate go run go.uber.org/mock/mockgen -source=friendship.go -destination=mocks/mock.go

// Repository stores friendships in both directions so either side can be
// queried by user_id alone.
type Repository interface {
	AcceptedFriendIDs(ctx context.Context, userID string) ([]string, error)
	Accept(ctx context.Context, userID string, friendID string) error
	Remove(ctx context.Context, userID string, friendID string) error
}
