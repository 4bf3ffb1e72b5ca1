package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateReactions, downCreateReactions)
}

func upCreateReactions(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE reactions (
		post_id    UUID NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
		user_id    VARCHAR NOT NULL,
		emoji      VARCHAR NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		PRIMARY KEY (post_id, user_id)
	);
	`)
	return err
}

func downCreateReactions(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE reactions;`)
	return err
}
