package backendimpl

import (
	"context"
	"errors"

	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/internal/repositories/reaction"
	apperrors "github.com/orgball2608/ephemeral-feed/pkg/errors"
)

func (b *BackendImpl) UpsertReaction(ctx context.Context, postID string, authorID string, emoji domain.Emoji) (domain.Reaction, error) {
	if _, ok := domain.ParseEmoji(string(emoji)); !ok {
		return domain.Reaction{}, apperrors.Validation("unsupported emoji")
	}

	result, err := b.ReactionRepo.Upsert(ctx, domain.Reaction{
		PostID:    postID,
		AuthorID:  authorID,
		Emoji:     emoji,
		CreatedAt: b.Clock.Now(),
	})
	if err != nil {
		return domain.Reaction{}, classify(err, "failed to save reaction")
	}

	changeType := domain.ChangeUpdate
	if result.Inserted {
		changeType = domain.ChangeInsert
	}
	b.publish(ctx, domain.TableReactions, changeType, result.PostAuthorID, domain.ReactionRecordFrom(result.Reaction))

	return result.Reaction, nil
}

// DeleteReaction treats a missing reaction as already deleted.
func (b *BackendImpl) DeleteReaction(ctx context.Context, postID string, authorID string) error {
	postAuthorID, err := b.ReactionRepo.Delete(ctx, postID, authorID)
	if err != nil {
		if errors.Is(err, reaction.ErrNotFound) {
			return nil
		}
		return classify(err, "failed to remove reaction")
	}

	b.publish(ctx, domain.TableReactions, domain.ChangeDelete, postAuthorID, domain.ReactionRecord{PostID: postID, UserID: authorID})
	return nil
}
