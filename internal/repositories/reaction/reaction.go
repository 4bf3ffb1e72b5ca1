package reaction

import (
	"context"
	"errors"

	"github.com/orgball2608/ephemeral-feed/internal/domain"
)

var (
	ErrNotFound     = errors.New("reaction not found")
	ErrPostNotFound = errors.New("reacted post not found")
)

// UpsertResult describes the stored reaction after an upsert.
type UpsertResult struct {
	Reaction     domain.Reaction
	PostAuthorID string
	Inserted     bool
}

//go:generate go run go.uber.org/mock/mockgen -source=reaction.go -destination=mocks/mock.go

type Repository interface {
	// Upsert stores the reaction, replacing any earlier emoji by the same user
	Upsert(ctx context.Context, reaction domain.Reaction) (UpsertResult, error)

	// Delete removes the user's reaction and returns the author of the post it was on
	Delete(ctx context.Context, postID string, userID string) (string, error)

	ListByPostIDs(ctx context.Context, postIDs []string) ([]domain.Reaction, error)
}
