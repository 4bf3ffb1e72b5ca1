package post

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/internal/repositories"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	pgxdb "github.com/orgball2608/ephemeral-feed/pkg/pgx"
)

var columns = []string{
	"id", "user_id", "media_url", "media_type", "caption",
	"has_location", "location_name", "city", "state", "latitude", "longitude",
	"created_at", "expires_at", "view_count",
}

type PgxRepository struct {
	pg     pgxdb.Querier
	logger logger.Logger
}

func NewPgxRepository(pg pgxdb.Querier, logger logger.Logger) *PgxRepository {
	return &PgxRepository{
		pg:     pg,
		logger: logger.WithComponent("PostRepo"),
	}
}

var _ Repository = (*PgxRepository)(nil)

type row struct {
	ID           string
	UserID       string
	MediaURL     string
	MediaType    string
	Caption      string
	HasLocation  bool
	LocationName string
	City         string
	State        string
	Latitude     float64
	Longitude    float64
	CreatedAt    time.Time
	ExpiresAt    time.Time
	ViewCount    int64
}

func (r *row) dest() []any {
	return []any{
		&r.ID, &r.UserID, &r.MediaURL, &r.MediaType, &r.Caption,
		&r.HasLocation, &r.LocationName, &r.City, &r.State, &r.Latitude, &r.Longitude,
		&r.CreatedAt, &r.ExpiresAt, &r.ViewCount,
	}
}

func (r *row) toDomain() *domain.Post {
	p := &domain.Post{
		ID:        r.ID,
		AuthorID:  r.UserID,
		Media:     domain.MediaRef{URL: r.MediaURL, Kind: domain.MediaKind(r.MediaType)},
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
		ViewCount: r.ViewCount,
	}
	if r.Caption != "" {
		caption := r.Caption
		p.Caption = &caption
	}
	if r.HasLocation {
		p.Location = &domain.Location{
			Name:      r.LocationName,
			City:      r.City,
			State:     r.State,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
		}
	}
	return p
}

// FetchActiveByAuthors returns posts by any of authorIDs that expire after now, newest first
func (p *PgxRepository) FetchActiveByAuthors(ctx context.Context, authorIDs []string, now time.Time) ([]*domain.Post, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}

	query, args, err := repositories.SqBuilder.
		Select(columns...).
		From("posts").
		Where(sq.Eq{"user_id": authorIDs}).
		Where(sq.Gt{"expires_at": now}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query active posts: %w", err)
	}
	defer rows.Close()

	var posts []*domain.Post
	for rows.Next() {
		var r row
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, r.toDomain())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}

// GetByID returns a single post regardless of expiry
func (p *PgxRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	query, args, err := repositories.SqBuilder.
		Select(columns...).
		From("posts").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	var r row
	if err := p.pg.QueryRow(ctx, query, args...).Scan(r.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get post by id: %w", err)
	}

	return r.toDomain(), nil
}

// Create inserts a post and returns the stored row
func (p *PgxRepository) Create(ctx context.Context, post domain.NewPost) (*domain.Post, error) {
	var caption string
	if post.Caption != nil {
		caption = *post.Caption
	}
	loc := domain.Location{}
	if post.Location != nil {
		loc = *post.Location
	}

	query, args, err := repositories.SqBuilder.
		Insert("posts").
		Columns(
			"id", "user_id", "media_url", "media_type", "caption",
			"has_location", "location_name", "city", "state", "latitude", "longitude",
			"created_at", "expires_at",
		).
		Values(
			uuid.NewString(), post.AuthorID, post.Media.URL, string(post.Media.Kind), caption,
			post.Location != nil, loc.Name, loc.City, loc.State, loc.Latitude, loc.Longitude,
			post.CreatedAt, post.ExpiresAt,
		).
		Suffix("RETURNING " + strings.Join(columns, ", ")).
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	var r row
	if err := p.pg.QueryRow(ctx, query, args...).Scan(r.dest()...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == repositories.PgUniqueViolation {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	p.logger.Debug("Post created", "post_id", r.ID, "author_id", r.UserID)
	return r.toDomain(), nil
}

// Delete removes a post owned by authorID
func (p *PgxRepository) Delete(ctx context.Context, id string, authorID string) error {
	query, args, err := repositories.SqBuilder.
		Delete("posts").
		Where(sq.Eq{"id": id, "user_id": authorID}).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	result, err := p.pg.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete post %s: %w", id, err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	// Nothing deleted: tell a missing row apart from someone else's row.
	existing, err := p.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.AuthorID != authorID {
		return ErrNotAuthor
	}
	return ErrNotFound
}

// IncrementViews bumps the view counter of an active post and returns the stored row
func (p *PgxRepository) IncrementViews(ctx context.Context, id string, now time.Time) (*domain.Post, error) {
	query, args, err := repositories.SqBuilder.
		Update("posts").
		Set("view_count", sq.Expr("view_count + 1")).
		Where(sq.Eq{"id": id}).
		Where(sq.Gt{"expires_at": now}).
		Suffix("RETURNING " + strings.Join(columns, ", ")).
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	var r row
	if err := p.pg.QueryRow(ctx, query, args...).Scan(r.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to increment views: %w", err)
	}

	return r.toDomain(), nil
}
