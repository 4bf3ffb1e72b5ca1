package backendimpl

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/ephemeral-feed/internal/backend"
	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/internal/media"
	"github.com/orgball2608/ephemeral-feed/internal/realtime"
	"github.com/orgball2608/ephemeral-feed/internal/repositories/friendship"
	"github.com/orgball2608/ephemeral-feed/internal/repositories/post"
	"github.com/orgball2608/ephemeral-feed/internal/repositories/reaction"
	"github.com/orgball2608/ephemeral-feed/pkg/config"
	apperrors "github.com/orgball2608/ephemeral-feed/pkg/errors"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	PostRepo       post.Repository
	ReactionRepo   reaction.Repository
	FriendshipRepo friendship.Repository
	Media          media.Store
	Publisher      realtime.Publisher
	Clock          clockwork.Clock
	Logger         logger.Logger
	Config         *config.Config
}

// BackendImpl is the backend SDK the feed engine talks to: postgres rows,
// the media bucket and change events published after every write.
type BackendImpl struct {
	PostRepo       post.Repository
	ReactionRepo   reaction.Repository
	FriendshipRepo friendship.Repository
	Media          media.Store
	Publisher      realtime.Publisher
	Clock          clockwork.Clock
	Logger         logger.Logger
	Config         *config.Config
}

func New(opts Opts) *BackendImpl {
	return &BackendImpl{
		PostRepo:       opts.PostRepo,
		ReactionRepo:   opts.ReactionRepo,
		FriendshipRepo: opts.FriendshipRepo,
		Media:          opts.Media,
		Publisher:      opts.Publisher,
		Clock:          opts.Clock,
		Logger:         opts.Logger.WithComponent("Backend"),
		Config:         opts.Config,
	}
}

var _ backend.Client = (*BackendImpl)(nil)

// classify maps storage failures onto the error taxonomy the engine surfaces.
func classify(err error, message string) error {
	if err == nil {
		return nil
	}
	if apperrors.GetCode(err) != "" {
		return err
	}

	switch {
	case errors.Is(err, post.ErrNotFound),
		errors.Is(err, reaction.ErrPostNotFound),
		errors.Is(err, friendship.ErrNotFound),
		errors.Is(err, media.ErrNotFound):
		return apperrors.WrapWithCode(err, apperrors.CodeNotFound, message)
	case errors.Is(err, post.ErrNotAuthor):
		return apperrors.WrapWithCode(err, apperrors.CodeAuthorization, message)
	case errors.Is(err, post.ErrAlreadyExists),
		errors.Is(err, media.ErrAlreadyExists):
		return apperrors.Conflict(err, message)
	case errors.Is(err, media.ErrEmpty),
		errors.Is(err, media.ErrTooLarge),
		errors.Is(err, media.ErrUnsupported):
		return apperrors.WrapWithCode(err, apperrors.CodeValidation, message)
	}
	return apperrors.Transient(err, message)
}

// publish is best effort: the row is already committed, a lost event only
// costs freshness until the next load.
func (b *BackendImpl) publish(ctx context.Context, table string, changeType domain.ChangeType, topic string, record any) {
	event, err := realtime.NewEvent(table, changeType, topic, record)
	if err != nil {
		b.Logger.Error("Failed to build change event", "table", table, "error", err)
		return
	}
	event.CommitTimestamp = b.Clock.Now()

	if err := b.Publisher.Publish(ctx, event); err != nil {
		b.Logger.Warn("Failed to publish change event", "table", table, "type", changeType, "topic", topic, "error", err)
	}
}
