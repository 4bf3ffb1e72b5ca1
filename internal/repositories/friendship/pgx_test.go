package friendship

import (
	"context"
	"testing"
	"time"

	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *PgxRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgxRepository(mock, logger.NewNop())
}

func TestAcceptedFriendIDs(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery(`SELECT friend_id FROM friendships WHERE status = \$1 AND user_id = \$2`).
		WithArgs("accepted", "me").
		WillReturnRows(pgxmock.NewRows([]string{"friend_id"}).AddRow("alice").AddRow("bob"))

	ids, err := repo.AcceptedFriendIDs(context.Background(), "me")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptWritesBothDirections(t *testing.T) {
	mock, repo := newMock(t)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	mock.ExpectExec(`INSERT INTO friendships .* VALUES \(\$1,\$2,\$3,\$4\),\(\$5,\$6,\$7,\$8\) ON CONFLICT`).
		WithArgs("me", "alice", "accepted", now, "alice", "me", "accepted", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	require.NoError(t, repo.Accept(context.Background(), "me", "alice"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemove(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectExec(`DELETE FROM friendships WHERE \(\(user_id = \$1 AND friend_id = \$2\) OR \(user_id = \$3 AND friend_id = \$4\)\)`).
		WithArgs("me", "alice", "alice", "me").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM friendships`).
		WithArgs("me", "alice", "alice", "me").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Remove(context.Background(), "me", "alice"))
	assert.ErrorIs(t, repo.Remove(context.Background(), "me", "alice"), ErrNotFound)
}
