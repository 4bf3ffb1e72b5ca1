package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreatePosts, downCreatePosts)
}

func upCreatePosts(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE posts (
		id            UUID PRIMARY KEY,
		user_id       VARCHAR NOT NULL,
		media_url     VARCHAR NOT NULL,
		media_type    VARCHAR NOT NULL CHECK (media_type IN ('image', 'video')),
		caption       TEXT NOT NULL DEFAULT '',
		has_location  BOOLEAN NOT NULL DEFAULT FALSE,
		location_name VARCHAR NOT NULL DEFAULT '',
		city          VARCHAR NOT NULL DEFAULT '',
		state         VARCHAR NOT NULL DEFAULT '',
		latitude      DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude     DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at    TIMESTAMP WITH TIME ZONE NOT NULL,
		expires_at    TIMESTAMP WITH TIME ZONE NOT NULL,
		view_count    BIGINT NOT NULL DEFAULT 0,
		CHECK (expires_at > created_at)
	);
	CREATE INDEX posts_user_expires_idx ON posts (user_id, expires_at);
	`)
	return err
}

func downCreatePosts(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE posts;`)
	return err
}
