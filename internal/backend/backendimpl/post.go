package backendimpl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/internal/media"
	"github.com/panjf2000/ants/v2"
)

// FetchPosts loads the author set in batches on a worker pool and attaches
// each post's reactions.
func (b *BackendImpl) FetchPosts(ctx context.Context, authorIDs []string) ([]domain.Post, error) {
	batches := chunk(authorIDs, b.Config.Feed.FetchBatchSize)
	if len(batches) == 0 {
		return nil, nil
	}

	workers := b.Config.Feed.FetchWorkers
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers, ants.WithPreAlloc(true))
	if err != nil {
		return nil, classify(err, "failed to start fetch workers")
	}
	defer pool.Release()

	now := b.Clock.Now()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		posts    []domain.Post
		firstErr error
	)

	for i, batch := range batches {
		wg.Add(1)
		batchToFetch := batch
		batchNo := i

		err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}

			fetched, err := b.fetchBatch(ctx, batchToFetch, now)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				b.Logger.Error("Failed to fetch post batch", "batch", batchNo, "authors", len(batchToFetch), "error", err)
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			posts = append(posts, fetched...)
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, classify(err, "fetch cancelled")
	}
	if firstErr != nil {
		return nil, classify(firstErr, "failed to fetch posts")
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	b.Logger.Debug("Fetched posts", "authors", len(authorIDs), "batches", len(batches), "posts", len(posts))
	return posts, nil
}

func (b *BackendImpl) fetchBatch(ctx context.Context, authorIDs []string, now time.Time) ([]domain.Post, error) {
	rows, err := b.PostRepo.FetchActiveByAuthors(ctx, authorIDs, now)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, len(rows))
	for i, p := range rows {
		ids[i] = p.ID
	}

	reactions, err := b.ReactionRepo.ListByPostIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byPost := make(map[string][]domain.Reaction, len(rows))
	for _, r := range reactions {
		byPost[r.PostID] = append(byPost[r.PostID], r)
	}

	out := make([]domain.Post, len(rows))
	for i, p := range rows {
		out[i] = *p
		out[i].Reactions = byPost[p.ID]
	}
	return out, nil
}

func (b *BackendImpl) FetchPost(ctx context.Context, id string) (domain.Post, error) {
	p, err := b.PostRepo.GetByID(ctx, id)
	if err != nil {
		return domain.Post{}, classify(err, "failed to fetch post")
	}

	reactions, err := b.ReactionRepo.ListByPostIDs(ctx, []string{id})
	if err != nil {
		return domain.Post{}, classify(err, "failed to fetch reactions")
	}

	out := *p
	out.Reactions = reactions
	return out, nil
}

func (b *BackendImpl) UploadMedia(ctx context.Context, ownerID string, data []byte, kind domain.MediaKind) (string, error) {
	url, err := b.Media.Put(ctx, ownerID, data, kind)
	if err != nil {
		return "", classify(err, "failed to upload media")
	}
	return url, nil
}

func (b *BackendImpl) RemoveMedia(ctx context.Context, url string) error {
	if err := b.Media.Remove(ctx, url); err != nil && !errors.Is(err, media.ErrNotFound) {
		return classify(err, "failed to remove media")
	}
	return nil
}

func (b *BackendImpl) InsertPost(ctx context.Context, newPost domain.NewPost) (domain.Post, error) {
	if !newPost.ExpiresAt.After(newPost.CreatedAt) {
		return domain.Post{}, classify(fmt.Errorf("expiry %s is not after creation %s", newPost.ExpiresAt, newPost.CreatedAt), "invalid post")
	}

	created, err := b.PostRepo.Create(ctx, newPost)
	if err != nil {
		return domain.Post{}, classify(err, "failed to insert post")
	}

	b.publish(ctx, domain.TablePosts, domain.ChangeInsert, created.AuthorID, domain.PostRecordFrom(*created))
	return *created, nil
}

func (b *BackendImpl) DeletePost(ctx context.Context, id string, authorID string) error {
	existing, err := b.PostRepo.GetByID(ctx, id)
	if err != nil {
		return classify(err, "failed to delete post")
	}

	if err := b.PostRepo.Delete(ctx, id, authorID); err != nil {
		return classify(err, "failed to delete post")
	}

	if err := b.Media.Remove(ctx, existing.Media.URL); err != nil {
		b.Logger.Warn("Failed to remove media of deleted post", "post_id", id, "error", err)
	}

	b.publish(ctx, domain.TablePosts, domain.ChangeDelete, authorID, domain.PostRecord{ID: id})
	return nil
}

func (b *BackendImpl) IncrementViews(ctx context.Context, id string) (domain.Post, error) {
	updated, err := b.PostRepo.IncrementViews(ctx, id, b.Clock.Now())
	if err != nil {
		return domain.Post{}, classify(err, "failed to record view")
	}

	views := updated.ViewCount
	b.publish(ctx, domain.TablePosts, domain.ChangeUpdate, updated.AuthorID, domain.PostRecord{ID: id, ViewCount: &views})
	return *updated, nil
}

func chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
