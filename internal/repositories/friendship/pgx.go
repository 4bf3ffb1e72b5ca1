package friendship

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/internal/repositories"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	pgxdb "github.com/orgball2608/ephemeral-feed/pkg/pgx"
)

type PgxRepository struct {
	pg     pgxdb.Querier
	logger logger.Logger
	now    func() time.Time
}

func NewPgxRepository(pg pgxdb.Querier, logger logger.Logger) *PgxRepository {
	return &PgxRepository{
		pg:     pg,
		logger: logger.WithComponent("FriendshipRepo"),
		now:    time.Now,
	}
}

var _ Repository = (*PgxRepository)(nil)

func (r *PgxRepository) AcceptedFriendIDs(ctx context.Context, userID string) ([]string, error) {
	query, args, err := repositories.SqBuilder.
		Select("friend_id").
		From("friendships").
		Where(sq.Eq{"user_id": userID, "status": domain.FriendshipAccepted}).
		OrderBy("friend_id").
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := r.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query friends: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan friend row: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating friend rows: %w", err)
	}

	return ids, nil
}

// Accept marks the pair as accepted in both directions, creating rows as needed.
func (r *PgxRepository) Accept(ctx context.Context, userID string, friendID string) error {
	now := r.now()
	query, args, err := repositories.SqBuilder.
		Insert("friendships").
		Columns("user_id", "friend_id", "status", "created_at").
		Values(userID, friendID, domain.FriendshipAccepted, now).
		Values(friendID, userID, domain.FriendshipAccepted, now).
		Suffix("ON CONFLICT (user_id, friend_id) DO UPDATE SET status = EXCLUDED.status").
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	if _, err := r.pg.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to accept friendship: %w", err)
	}

	r.logger.Info("Friendship accepted", "user_id", userID, "friend_id", friendID)
	return nil
}

func (r *PgxRepository) Remove(ctx context.Context, userID string, friendID string) error {
	query, args, err := repositories.SqBuilder.
		Delete("friendships").
		Where(sq.Or{
			sq.And{sq.Eq{"user_id": userID}, sq.Eq{"friend_id": friendID}},
			sq.And{sq.Eq{"user_id": friendID}, sq.Eq{"friend_id": userID}},
		}).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	result, err := r.pg.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to remove friendship: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.logger.Info("Friendship removed", "user_id", userID, "friend_id", friendID)
	return nil
}
