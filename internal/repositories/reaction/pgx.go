package reaction

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/internal/repositories"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	pgxdb "github.com/orgball2608/ephemeral-feed/pkg/pgx"
)

const postAuthorExpr = "COALESCE((SELECT p.user_id FROM posts p WHERE p.id = reactions.post_id), '')"

type PgxRepository struct {
	pg     pgxdb.Querier
	logger logger.Logger
}

func NewPgxRepository(pg pgxdb.Querier, logger logger.Logger) *PgxRepository {
	return &PgxRepository{
		pg:     pg,
		logger: logger.WithComponent("ReactionRepo"),
	}
}

var _ Repository = (*PgxRepository)(nil)

func (r *PgxRepository) Upsert(ctx context.Context, reaction domain.Reaction) (UpsertResult, error) {
	query, args, err := repositories.SqBuilder.
		Insert("reactions").
		Columns("post_id", "user_id", "emoji", "created_at").
		Values(reaction.PostID, reaction.AuthorID, string(reaction.Emoji), reaction.CreatedAt).
		Suffix("ON CONFLICT (post_id, user_id) DO UPDATE SET emoji = EXCLUDED.emoji").
		Suffix("RETURNING created_at, (xmax = 0) AS inserted, " + postAuthorExpr).
		ToSql()
	if err != nil {
		return UpsertResult{}, repositories.ErrBadQuery
	}

	result := UpsertResult{Reaction: reaction}
	err = r.pg.QueryRow(ctx, query, args...).Scan(
		&result.Reaction.CreatedAt,
		&result.Inserted,
		&result.PostAuthorID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == repositories.PgForeignKeyViolation {
			return UpsertResult{}, ErrPostNotFound
		}
		return UpsertResult{}, fmt.Errorf("failed to upsert reaction: %w", err)
	}

	return result, nil
}

func (r *PgxRepository) Delete(ctx context.Context, postID string, userID string) (string, error) {
	query, args, err := repositories.SqBuilder.
		Delete("reactions").
		Where(sq.Eq{"post_id": postID, "user_id": userID}).
		Suffix("RETURNING " + postAuthorExpr).
		ToSql()
	if err != nil {
		return "", repositories.ErrBadQuery
	}

	var postAuthorID string
	if err := r.pg.QueryRow(ctx, query, args...).Scan(&postAuthorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to delete reaction: %w", err)
	}

	return postAuthorID, nil
}

func (r *PgxRepository) ListByPostIDs(ctx context.Context, postIDs []string) ([]domain.Reaction, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}

	query, args, err := repositories.SqBuilder.
		Select("post_id", "user_id", "emoji", "created_at").
		From("reactions").
		Where(sq.Eq{"post_id": postIDs}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := r.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reactions: %w", err)
	}
	defer rows.Close()

	var reactions []domain.Reaction
	for rows.Next() {
		var (
			reaction domain.Reaction
			emoji    string
		)
		if err := rows.Scan(&reaction.PostID, &reaction.AuthorID, &emoji, &reaction.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reaction row: %w", err)
		}
		parsed, ok := domain.ParseEmoji(emoji)
		if !ok {
			r.logger.Warn("Skipping reaction with unknown emoji", "post_id", reaction.PostID, "emoji", emoji)
			continue
		}
		reaction.Emoji = parsed
		reactions = append(reactions, reaction)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reaction rows: %w", err)
	}

	return reactions, nil
}
