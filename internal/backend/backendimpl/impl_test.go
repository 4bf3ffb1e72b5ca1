package backendimpl

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/internal/media"
	mock_media "github.com/orgball2608/ephemeral-feed/internal/media/mocks"
	mock_realtime "github.com/orgball2608/ephemeral-feed/internal/realtime/mocks"
	mock_friendship "github.com/orgball2608/ephemeral-feed/internal/repositories/friendship/mocks"
	"github.com/orgball2608/ephemeral-feed/internal/repositories/post"
	mock_post "github.com/orgball2608/ephemeral-feed/internal/repositories/post/mocks"
	"github.com/orgball2608/ephemeral-feed/internal/repositories/reaction"
	mock_reaction "github.com/orgball2608/ephemeral-feed/internal/repositories/reaction/mocks"
	"github.com/orgball2608/ephemeral-feed/pkg/config"
	apperrors "github.com/orgball2608/ephemeral-feed/pkg/errors"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	impl      *BackendImpl
	posts     *mock_post.MockRepository
	reactions *mock_reaction.MockRepository
	friends   *mock_friendship.MockRepository
	media     *mock_media.MockStore
	publisher *mock_realtime.MockPublisher
	clock     *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	cfg := &config.Config{}
	cfg.Feed.FetchBatchSize = 2
	cfg.Feed.FetchWorkers = 2

	f := &fixture{
		posts:     mock_post.NewMockRepository(ctrl),
		reactions: mock_reaction.NewMockRepository(ctrl),
		friends:   mock_friendship.NewMockRepository(ctrl),
		media:     mock_media.NewMockStore(ctrl),
		publisher: mock_realtime.NewMockPublisher(ctrl),
		clock:     clockwork.NewFakeClockAt(time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)),
	}
	f.impl = New(Opts{
		PostRepo:       f.posts,
		ReactionRepo:   f.reactions,
		FriendshipRepo: f.friends,
		Media:          f.media,
		Publisher:      f.publisher,
		Clock:          f.clock,
		Logger:         logger.NewNop(),
		Config:         cfg,
	})
	return f
}

func stored(id, author string, createdAt time.Time) *domain.Post {
	return &domain.Post{
		ID:        id,
		AuthorID:  author,
		Media:     domain.MediaRef{URL: "https://cdn.example/" + id + ".jpg", Kind: domain.MediaImage},
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(time.Hour),
	}
}

func TestFetchPostsBatchesAndAttachesReactions(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	f.posts.EXPECT().FetchActiveByAuthors(gomock.Any(), []string{"me", "alice"}, now).
		Return([]*domain.Post{stored("p1", "me", now.Add(-3*time.Minute)), stored("p2", "alice", now.Add(-time.Minute))}, nil)
	f.posts.EXPECT().FetchActiveByAuthors(gomock.Any(), []string{"bob"}, now).
		Return([]*domain.Post{stored("p3", "bob", now.Add(-2*time.Minute))}, nil)
	f.reactions.EXPECT().ListByPostIDs(gomock.Any(), []string{"p1", "p2"}).
		Return([]domain.Reaction{{PostID: "p2", AuthorID: "me", Emoji: domain.EmojiFire}}, nil)
	f.reactions.EXPECT().ListByPostIDs(gomock.Any(), []string{"p3"}).Return(nil, nil)

	posts, err := f.impl.FetchPosts(context.Background(), []string{"me", "alice", "bob"})
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{"p2", "p3", "p1"}, []string{posts[0].ID, posts[1].ID, posts[2].ID})
	require.Len(t, posts[0].Reactions, 1)
	assert.Equal(t, domain.EmojiFire, posts[0].Reactions[0].Emoji)
}

func TestFetchPostsFailureIsTransient(t *testing.T) {
	f := newFixture(t)

	f.posts.EXPECT().FetchActiveByAuthors(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection reset"))

	_, err := f.impl.FetchPosts(context.Background(), []string{"me"})
	assert.ErrorIs(t, err, apperrors.ErrTransient)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestInsertPostPublishesInsert(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()
	created := stored("p1", "me", now)

	f.posts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(created, nil)
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event domain.ChangeEvent) error {
			assert.Equal(t, domain.TablePosts, event.Table)
			assert.Equal(t, domain.ChangeInsert, event.Type)
			assert.Equal(t, "me", event.Topic)

			var rec domain.PostRecord
			require.NoError(t, json.Unmarshal(event.Record, &rec))
			assert.True(t, rec.Complete())
			return errors.New("redis down")
		})

	got, err := f.impl.InsertPost(context.Background(), domain.NewPost{
		AuthorID: "me", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
}

func TestInsertPostRejectsBadExpiry(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	_, err := f.impl.InsertPost(context.Background(), domain.NewPost{AuthorID: "me", CreatedAt: now, ExpiresAt: now})
	assert.Error(t, err)
}

func TestDeletePost(t *testing.T) {
	t.Run("not the author", func(t *testing.T) {
		f := newFixture(t)
		f.posts.EXPECT().GetByID(gomock.Any(), "p1").Return(stored("p1", "alice", f.clock.Now()), nil)
		f.posts.EXPECT().Delete(gomock.Any(), "p1", "me").Return(post.ErrNotAuthor)

		err := f.impl.DeletePost(context.Background(), "p1", "me")
		assert.ErrorIs(t, err, apperrors.ErrAuthorization)
	})

	t.Run("owner", func(t *testing.T) {
		f := newFixture(t)
		p := stored("p1", "me", f.clock.Now())
		f.posts.EXPECT().GetByID(gomock.Any(), "p1").Return(p, nil)
		f.posts.EXPECT().Delete(gomock.Any(), "p1", "me").Return(nil)
		f.media.EXPECT().Remove(gomock.Any(), p.Media.URL).Return(nil)
		f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, event domain.ChangeEvent) error {
				assert.Equal(t, domain.ChangeDelete, event.Type)
				assert.JSONEq(t, `{"id":"p1"}`, string(event.OldRecord))
				return nil
			})

		require.NoError(t, f.impl.DeletePost(context.Background(), "p1", "me"))
	})

	t.Run("missing", func(t *testing.T) {
		f := newFixture(t)
		f.posts.EXPECT().GetByID(gomock.Any(), "p1").Return(nil, post.ErrNotFound)

		assert.ErrorIs(t, f.impl.DeletePost(context.Background(), "p1", "me"), apperrors.ErrNotFound)
	})
}

func TestUploadMediaClassification(t *testing.T) {
	f := newFixture(t)

	f.media.EXPECT().Put(gomock.Any(), "me", gomock.Any(), domain.MediaVideo).Return("", media.ErrTooLarge)
	f.media.EXPECT().Put(gomock.Any(), "me", gomock.Any(), domain.MediaImage).Return("", media.ErrAlreadyExists)

	_, err := f.impl.UploadMedia(context.Background(), "me", []byte{1}, domain.MediaVideo)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.impl.UploadMedia(context.Background(), "me", []byte{1}, domain.MediaImage)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.False(t, apperrors.IsRetryable(err))
}

func TestRemoveMedia(t *testing.T) {
	f := newFixture(t)

	f.media.EXPECT().Remove(gomock.Any(), "https://cdn.example/me/1.jpg").Return(nil)
	f.media.EXPECT().Remove(gomock.Any(), "https://cdn.example/me/2.jpg").Return(media.ErrNotFound)
	f.media.EXPECT().Remove(gomock.Any(), "https://cdn.example/me/3.jpg").Return(errors.New("disk full"))

	assert.NoError(t, f.impl.RemoveMedia(context.Background(), "https://cdn.example/me/1.jpg"))
	assert.NoError(t, f.impl.RemoveMedia(context.Background(), "https://cdn.example/me/2.jpg"))
	assert.ErrorIs(t, f.impl.RemoveMedia(context.Background(), "https://cdn.example/me/3.jpg"), apperrors.ErrTransient)
}

func TestUpsertReactionPublishesToPostAuthor(t *testing.T) {
	f := newFixture(t)

	f.reactions.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r domain.Reaction) (reaction.UpsertResult, error) {
			return reaction.UpsertResult{Reaction: r, PostAuthorID: "alice", Inserted: true}, nil
		})
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event domain.ChangeEvent) error {
			assert.Equal(t, domain.TableReactions, event.Table)
			assert.Equal(t, domain.ChangeInsert, event.Type)
			assert.Equal(t, "alice", event.Topic)
			return nil
		})

	r, err := f.impl.UpsertReaction(context.Background(), "p1", "me", domain.EmojiClap)
	require.NoError(t, err)
	assert.Equal(t, domain.EmojiClap, r.Emoji)

	_, err = f.impl.UpsertReaction(context.Background(), "p1", "me", domain.Emoji("🍕"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestDeleteReactionMissingIsSuccess(t *testing.T) {
	f := newFixture(t)

	f.reactions.EXPECT().Delete(gomock.Any(), "p1", "me").Return("", reaction.ErrNotFound)

	assert.NoError(t, f.impl.DeleteReaction(context.Background(), "p1", "me"))
}

func TestFriendshipsNotifyBothSides(t *testing.T) {
	f := newFixture(t)

	f.friends.EXPECT().Accept(gomock.Any(), "me", "alice").Return(nil)
	var topics []string
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(2).DoAndReturn(
		func(_ context.Context, event domain.ChangeEvent) error {
			topics = append(topics, event.Topic)
			return nil
		})

	require.NoError(t, f.impl.AcceptFriend(context.Background(), "me", "alice"))
	assert.ElementsMatch(t, []string{"me", "alice"}, topics)

	assert.ErrorIs(t, f.impl.AcceptFriend(context.Background(), "me", "me"), apperrors.ErrValidation)
}

func TestChunk(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, chunk([]string{"a", "b", "c"}, 2))
	assert.Equal(t, [][]string{{"a", "b", "c"}}, chunk([]string{"a", "b", "c"}, 0))
	assert.Nil(t, chunk(nil, 2))
}
