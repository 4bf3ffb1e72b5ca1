package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateFriendships, downCreateFriendships)
}

func upCreateFriendships(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE friendships (
		user_id    VARCHAR NOT NULL,
		friend_id  VARCHAR NOT NULL,
		status     VARCHAR NOT NULL CHECK (status IN ('pending', 'accepted')),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, friend_id),
		CHECK (user_id <> friend_id)
	);
	`)
	return err
}

func downCreateFriendships(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE friendships;`)
	return err
}
