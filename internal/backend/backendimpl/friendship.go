package backendimpl

import (
	"context"

	"github.com/orgball2608/ephemeral-feed/internal/domain"
	apperrors "github.com/orgball2608/ephemeral-feed/pkg/errors"
)

func (b *BackendImpl) AcceptedFriendIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := b.FriendshipRepo.AcceptedFriendIDs(ctx, userID)
	if err != nil {
		return nil, classify(err, "failed to load friends")
	}
	return ids, nil
}

func (b *BackendImpl) AcceptFriend(ctx context.Context, userID string, friendID string) error {
	if userID == friendID {
		return apperrors.Validation("cannot befriend yourself")
	}
	if err := b.FriendshipRepo.Accept(ctx, userID, friendID); err != nil {
		return classify(err, "failed to accept friend")
	}
	b.publishFriendship(ctx, domain.ChangeUpdate, userID, friendID, domain.FriendshipAccepted)
	return nil
}

func (b *BackendImpl) RemoveFriend(ctx context.Context, userID string, friendID string) error {
	if err := b.FriendshipRepo.Remove(ctx, userID, friendID); err != nil {
		return classify(err, "failed to remove friend")
	}
	b.publishFriendship(ctx, domain.ChangeDelete, userID, friendID, "")
	return nil
}

// publishFriendship notifies both sides, each on their own channel.
func (b *BackendImpl) publishFriendship(ctx context.Context, changeType domain.ChangeType, userID, friendID, status string) {
	record := domain.FriendshipRecord{UserID: userID, FriendID: friendID, Status: status}
	b.publish(ctx, domain.TableFriendships, changeType, userID, record)
	b.publish(ctx, domain.TableFriendships, changeType, friendID, record)
}
