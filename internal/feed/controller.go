package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/ephemeral-feed/internal/backend"
	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/internal/ratelimit"
	"github.com/orgball2608/ephemeral-feed/internal/settings"
	"github.com/orgball2608/ephemeral-feed/pkg/config"
	apperrors "github.com/orgball2608/ephemeral-feed/pkg/errors"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"github.com/orgball2608/ephemeral-feed/pkg/retry"
	"go.uber.org/fx"
)

const (
	maxLoadAttempts = 3
	scopeTimeout    = 15 * time.Second
)

var errScopeMoved = errors.New("friend scope kept changing during load")

type Opts struct {
	fx.In

	Client   backend.Client
	Feed     backend.ChangeFeed
	Settings settings.Reader
	Limiter  ratelimit.Limiter
	Clock    clockwork.Clock
	Logger   logger.Logger
	Config   *config.Config
}

// CreateRequest is what the UI hands over when posting.
type CreateRequest struct {
	Data     []byte
	Kind     domain.MediaKind
	Caption  *string
	Location *domain.Location
}

type Status struct {
	State       string        `json:"state"`
	ScopeSize   int           `json:"scope_size"`
	CachedPosts int           `json:"cached_posts"`
	Pending     int           `json:"pending"`
	NotLiveFor  time.Duration `json:"not_live_for"`
	Loaded      bool          `json:"loaded"`
}

// Controller is the feed engine's public surface. It owns the cache, the
// friend scope, the expiry sweep and the change feed subscription.
type Controller struct {
	client   backend.Client
	settings settings.Reader
	limiter  ratelimit.Limiter
	clock    clockwork.Clock
	logger   logger.Logger
	cfg      *config.Config
	viewerID string

	scope    *FriendScope
	cache    *PostCache
	expiry   *ExpiryClock
	ingestor *Ingestor
	pending  *pendingTracker

	loadMu  sync.Mutex
	scopeMu sync.Mutex

	stateMu sync.Mutex
	loaded  bool
	stopped bool

	// network calls for the viewer's reaction on a post run one at a time
	reactionLocks keyedMutex
}

func NewController(opts Opts) *Controller {
	cfg := opts.Config
	viewerID := cfg.Session.UserID
	log := opts.Logger.WithComponent("FeedSyncController")

	c := &Controller{
		client:   opts.Client,
		settings: opts.Settings,
		limiter:  opts.Limiter,
		clock:    opts.Clock,
		logger:   log,
		cfg:      cfg,
		viewerID: viewerID,
		scope:    NewFriendScope(),
		cache:    NewPostCache(viewerID, opts.Clock, cfg.Feed.TTL),
		pending:  newPendingTracker(),
	}

	c.expiry = NewExpiryClock(c.cache, opts.Clock, cfg.Feed.SweepInterval, opts.Logger)
	c.expiry.OnSweep(c.forgetExpired)

	c.ingestor = NewIngestor(IngestorOpts{
		Feed:     opts.Feed,
		Client:   opts.Client,
		Cache:    c.cache,
		ViewerID: viewerID,
		Clock:    opts.Clock,
		Logger:   opts.Logger,
		Retry: retry.Config{
			InitialInterval: cfg.Realtime.ReconnectInitial,
			MaxInterval:     cfg.Realtime.ReconnectMax,
			Multiplier:      cfg.Realtime.ReconnectFactor,
		},
		OnFriendshipChange: c.onFriendshipChange,
		SkipViewerReaction: func(postID string) bool {
			return c.pending.Has(MutationReact, postID)
		},
	})

	return c
}

// Start schedules the expiry sweep and performs the first load. A failed
// first load is logged only; the UI can refresh.
func (c *Controller) Start(ctx context.Context) error {
	c.stateMu.Lock()
	c.stopped = false
	c.stateMu.Unlock()

	if err := c.expiry.Start(); err != nil {
		return err
	}
	if err := c.Load(ctx); err != nil {
		c.logger.Warn("Initial load failed", "error", err)
	}
	return nil
}

// Stop closes the subscription and clears the sweep timer.
func (c *Controller) Stop() error {
	c.stateMu.Lock()
	c.stopped = true
	c.stateMu.Unlock()

	c.ingestor.Close()
	if err := c.expiry.Stop(); err != nil {
		return err
	}
	c.logger.Info("Feed engine stopped")
	return nil
}

func (c *Controller) isStopped() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.stopped
}

func (c *Controller) Load(ctx context.Context) error {
	return c.load(ctx, "load")
}

// Refresh has the same semantics as Load; it exists so the UI can tell a
// pull-to-refresh apart in logs.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.load(ctx, "refresh")
}

func (c *Controller) load(ctx context.Context, reason string) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	if c.scope.Version() == 0 {
		if _, err := c.recompute(ctx); err != nil {
			return err
		}
	}

	for attempt := 0; attempt < maxLoadAttempts; attempt++ {
		version := c.scope.Version()
		ids := c.scope.IDs()
		// deletes that land while the fetch is in flight outrank its snapshot
		mark := c.cache.Mark()

		posts, err := c.client.FetchPosts(ctx, ids)
		if err != nil {
			c.logger.Warn("Fetch failed, cache left unchanged", "reason", reason, "error", err)
			return apperrors.Transient(err, "failed to fetch posts")
		}

		// the scope moved while the fetch was in flight; its result is stale
		if c.scope.Version() != version {
			continue
		}

		now := c.clock.Now()
		visible := make([]domain.Post, 0, len(posts))
		for _, p := range posts {
			if c.scope.Contains(p.AuthorID) && p.IsActive(now) {
				visible = append(visible, p)
			}
		}

		rebind := !c.ingestor.Bound(ids)
		if rebind {
			c.ingestor.Close()
		}
		c.cache.ReplaceAllSince(visible, mark)
		if rebind && !c.isStopped() {
			c.ingestor.Open(ids)
		}

		c.stateMu.Lock()
		c.loaded = true
		c.stateMu.Unlock()

		c.logger.Info("Feed loaded", "reason", reason, "posts", len(visible), "authors", len(ids), "rebound", rebind)
		return nil
	}

	return apperrors.Transient(errScopeMoved, "failed to load feed")
}

// recompute refreshes the scope from the backend friend graph.
func (c *Controller) recompute(ctx context.Context) (bool, error) {
	c.scopeMu.Lock()
	defer c.scopeMu.Unlock()

	friends, err := c.client.AcceptedFriendIDs(ctx, c.viewerID)
	if err != nil {
		return false, apperrors.Transient(err, "failed to fetch friends")
	}

	changed, err := c.scope.Recompute(c.viewerID, friends)
	if err != nil {
		return false, apperrors.WrapWithCode(err, apperrors.CodeValidation, "failed to compute scope")
	}
	if changed {
		c.logger.Info("Friend scope changed", "size", c.scope.Len(), "version", c.scope.Version())
	}
	return changed, nil
}

// RecomputeScope refreshes the friend scope and, when membership changed
// after a load, resynchronizes the whole feed under the new scope.
func (c *Controller) RecomputeScope(ctx context.Context) (bool, error) {
	changed, err := c.recompute(ctx)
	if err != nil || !changed {
		return changed, err
	}

	c.stateMu.Lock()
	loaded := c.loaded
	c.stateMu.Unlock()
	if !loaded {
		return true, nil
	}
	return true, c.load(ctx, "scope change")
}

// Foreground is called when the app returns to the foreground.
func (c *Controller) Foreground(ctx context.Context) error {
	c.expiry.Sweep()
	_, err := c.RecomputeScope(ctx)
	return err
}

func (c *Controller) onFriendshipChange() {
	if c.isStopped() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), scopeTimeout)
	defer cancel()

	if _, err := c.RecomputeScope(ctx); err != nil {
		c.logger.Warn("Scope recompute after friendship change failed", "error", err)
	}
}

func (c *Controller) AcceptFriend(ctx context.Context, friendID string) error {
	if friendID == "" || friendID == c.viewerID {
		return apperrors.Validation("cannot befriend yourself")
	}
	if err := c.client.AcceptFriend(ctx, c.viewerID, friendID); err != nil {
		return apperrors.Transient(err, "failed to accept friend")
	}
	_, err := c.RecomputeScope(ctx)
	return err
}

func (c *Controller) RemoveFriend(ctx context.Context, friendID string) error {
	if friendID == "" {
		return apperrors.Validation("friend id is required")
	}
	if err := c.client.RemoveFriend(ctx, c.viewerID, friendID); err != nil {
		return apperrors.Transient(err, "failed to remove friend")
	}
	_, err := c.RecomputeScope(ctx)
	return err
}

func (c *Controller) validate(req *CreateRequest, prefs settings.Settings) error {
	if req.Caption != nil {
		if maxLen := c.cfg.Feed.CaptionMaxLength; maxLen > 0 && utf8.RuneCountInString(*req.Caption) > maxLen {
			return apperrors.Validation(fmt.Sprintf("caption exceeds %d characters", maxLen))
		}
	}

	if !req.Kind.Valid() {
		return apperrors.Validation(fmt.Sprintf("unsupported media kind %q", req.Kind))
	}
	if len(req.Data) == 0 {
		return apperrors.Validation("media is empty")
	}
	limit := c.cfg.Media.MaxImageBytes
	if req.Kind == domain.MediaVideo {
		limit = c.cfg.Media.MaxVideoBytes
	}
	if limit > 0 && int64(len(req.Data)) > limit {
		return apperrors.Validation(fmt.Sprintf("media exceeds %d bytes", limit))
	}

	if c.cfg.Feed.RequireLocation {
		if !prefs.ShareLocation {
			return apperrors.Validation("location sharing is disabled")
		}
		if req.Location == nil {
			return apperrors.Validation("location is required")
		}
	}
	if req.Location != nil {
		if err := req.Location.Validate(); err != nil {
			return apperrors.Validation(err.Error())
		}
	}
	return nil
}

// Create uploads the media, inserts the post and caches the stored record.
// Nothing is cached before the server confirms.
func (c *Controller) Create(ctx context.Context, req CreateRequest) (domain.Post, error) {
	prefs := c.settings.Get()
	if err := c.validate(&req, prefs); err != nil {
		return domain.Post{}, err
	}

	var location *domain.Location
	if req.Location != nil && prefs.ShareLocation {
		loc := prefs.LocationPrecision.Apply(*req.Location)
		location = &loc
	}

	token := uuid.NewString()
	c.pending.BeginOnce(MutationCreate, token, c.clock.Now())
	defer c.pending.Forget(token)

	url, err := c.client.UploadMedia(ctx, c.viewerID, req.Data, req.Kind)
	if err != nil {
		c.logger.Warn("Media upload failed", "token", token, "error", err)
		return domain.Post{}, apperrors.Transient(err, "failed to upload media")
	}

	now := c.clock.Now()
	post, err := c.client.InsertPost(ctx, domain.NewPost{
		AuthorID:  c.viewerID,
		Media:     domain.MediaRef{URL: url, Kind: req.Kind},
		Caption:   req.Caption,
		Location:  location,
		CreatedAt: now,
		ExpiresAt: now.Add(c.cfg.Feed.TTL),
	})
	if err != nil {
		c.logger.Warn("Post insert failed", "token", token, "error", err)
		if rmErr := c.client.RemoveMedia(ctx, url); rmErr != nil {
			c.logger.Warn("Failed to remove orphaned media", "url", url, "error", rmErr)
		}
		return domain.Post{}, apperrors.Transient(err, "failed to create post")
	}

	c.cache.Upsert(post)
	c.logger.Info("Post created", "post_id", post.ID)

	if cached, ok := c.cache.Get(post.ID); ok {
		return cached, nil
	}
	return post, nil
}

// DeletePost removes the viewer's own post. The cache is updated before the
// backend call and not restored if it fails; the next load does that.
func (c *Controller) DeletePost(ctx context.Context, id string) error {
	p, ok := c.cache.Get(id)
	if !ok {
		return apperrors.NotFound("post not found")
	}
	if p.AuthorID != c.viewerID {
		return apperrors.Authorization("only the author can delete a post")
	}

	m, ok := c.pending.BeginOnce(MutationDelete, id, c.clock.Now())
	if !ok {
		return nil
	}

	c.cache.Remove(id)

	if err := c.client.DeletePost(ctx, id, c.viewerID); err != nil {
		c.pending.Fail(m)
		c.logger.Warn("Delete failed, post stays hidden until next load", "post_id", id, "error", err)
		return apperrors.Transient(err, "failed to delete post")
	}

	c.pending.Succeed(m)
	c.limiter.Forget(id)
	return nil
}

// ToggleReaction applies tap semantics to the viewer's reaction on postID and
// returns the resulting reaction. On failure the previous reaction is
// restored.
func (c *Controller) ToggleReaction(ctx context.Context, postID string, emoji string) (*domain.Emoji, error) {
	e, ok := domain.ParseEmoji(emoji)
	if !ok {
		return nil, apperrors.Validation(fmt.Sprintf("unsupported emoji %q", emoji))
	}
	if !c.cache.Has(postID) {
		return nil, apperrors.NotFound("post not found")
	}

	now := c.clock.Now()
	if !c.limiter.Allow(postID, now) {
		return nil, apperrors.RateLimited("too many reactions on this post, slow down")
	}

	unlock := c.reactionLocks.Lock(postID)
	defer unlock()

	before, after, ok := c.cache.ApplyReaction(postID, c.viewerID, &e, now)
	if !ok {
		return nil, apperrors.NotFound("post not found")
	}
	m := c.pending.Begin(MutationReact, postID, before, after, now)

	var err error
	if after == nil {
		err = c.client.DeleteReaction(ctx, postID, c.viewerID)
	} else {
		var confirmed domain.Reaction
		confirmed, err = c.client.UpsertReaction(ctx, postID, c.viewerID, *after)
		if err == nil {
			now = confirmed.CreatedAt
		}
	}

	if err != nil {
		if baseline, latest := c.pending.Fail(m); latest {
			c.cache.SetReaction(postID, c.viewerID, baseline, now)
		}
		c.logger.Warn("Reaction failed, rolled back", "post_id", postID, "error", err)
		return nil, apperrors.Transient(err, "failed to update reaction")
	}

	if c.pending.Succeed(m) {
		c.cache.SetReaction(postID, c.viewerID, after, now)
	}
	return cloneEmoji(after), nil
}

// MarkViewed bumps the server view counter and patches the cached count.
func (c *Controller) MarkViewed(ctx context.Context, postID string) (int64, error) {
	if !c.cache.Has(postID) {
		return 0, apperrors.NotFound("post not found")
	}

	p, err := c.client.IncrementViews(ctx, postID)
	if err != nil {
		return 0, apperrors.Transient(err, "failed to record view")
	}

	views := p.ViewCount
	c.cache.Patch(postID, domain.PostPatch{ViewCount: &views})
	return views, nil
}

// Active is the UI's only read path: active posts within the current scope,
// newest first.
func (c *Controller) Active() []domain.Post {
	posts := c.cache.SelectActive(c.clock.Now())
	out := posts[:0]
	for _, p := range posts {
		if c.scope.Contains(p.AuthorID) {
			out = append(out, p)
		}
	}
	return out
}

func (c *Controller) Get(postID string) (domain.Post, bool) {
	p, ok := c.cache.Get(postID)
	if !ok || !p.IsActive(c.clock.Now()) || !c.scope.Contains(p.AuthorID) {
		return domain.Post{}, false
	}
	return p, true
}

func (c *Controller) Pending() []PendingMutation {
	return c.pending.List()
}

func (c *Controller) Scope() []string {
	return c.scope.IDs()
}

func (c *Controller) Status() Status {
	c.stateMu.Lock()
	loaded := c.loaded
	c.stateMu.Unlock()

	s := Status{
		State:       c.ingestor.State().String(),
		ScopeSize:   c.scope.Len(),
		CachedPosts: c.cache.Len(),
		Pending:     len(c.pending.List()),
		Loaded:      loaded,
	}
	if since := c.ingestor.NotLiveSince(); !since.IsZero() {
		s.NotLiveFor = c.clock.Since(since)
	}
	return s
}

// Health returns a degraded error while live updates are not flowing.
func (c *Controller) Health() error {
	if state := c.ingestor.State(); state != StateLive {
		return apperrors.Degraded("live updates paused: " + state.String())
	}
	return nil
}

func (c *Controller) forgetExpired(removed []string) {
	for _, id := range removed {
		c.pending.Forget(id)
		c.limiter.Forget(id)
	}
}
