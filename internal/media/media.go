package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
)

var (
	ErrEmpty         = errors.New("media is empty")
	ErrTooLarge      = errors.New("media exceeds size limit")
	ErrUnsupported   = errors.New("media content does not match its kind")
	ErrAlreadyExists = errors.New("media object already exists")
	ErrNotFound      = errors.New("media object not found")
)

//go:generate go run go.uber.org/mock/mockgen -source=media.go -destination=mocks/mock.go

type Store interface {
	// Put stores data under a fresh object key owned by ownerID and returns its public URL
	Put(ctx context.Context, ownerID string, data []byte, kind domain.MediaKind) (string, error)

	// Remove deletes the object behind a URL returned by Put
	Remove(ctx context.Context, url string) error

	Open(key string) (io.ReadCloser, string, error)
}

type Limits struct {
	MaxImageBytes int64
	MaxVideoBytes int64
}

func (l Limits) For(kind domain.MediaKind) int64 {
	if kind == domain.MediaVideo {
		return l.MaxVideoBytes
	}
	return l.MaxImageBytes
}

// Bucket keeps media objects on an afero filesystem rooted at Root.
type Bucket struct {
	fs      afero.Fs
	baseURL string
	limits  Limits
	logger  logger.Logger
	newKey  func() string
}

var _ Store = (*Bucket)(nil)

func NewBucket(fs afero.Fs, baseURL string, limits Limits, logger logger.Logger) *Bucket {
	return &Bucket{
		fs:      fs,
		baseURL: strings.TrimRight(baseURL, "/"),
		limits:  limits,
		logger:  logger.WithComponent("MediaBucket"),
		newKey: func() string {
			return ksuid.New().String()
		},
	}
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

func (b *Bucket) Put(ctx context.Context, ownerID string, data []byte, kind domain.MediaKind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown kind %q", ErrUnsupported, kind)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if limit := b.limits.For(kind); limit > 0 && int64(len(data)) > limit {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), limit)
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, string(kind)+"/") {
		return "", fmt.Errorf("%w: detected %s for %s", ErrUnsupported, contentType, kind)
	}

	dir := path.Clean("/" + ownerID)
	if err := b.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create owner directory: %w", err)
	}

	key := path.Join(dir, b.newKey()+extensions[contentType])
	f, err := b.fs.OpenFile(key, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrAlreadyExists, key)
		}
		return "", fmt.Errorf("failed to create media object: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = b.fs.Remove(key)
		return "", fmt.Errorf("failed to write media object: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close media object: %w", err)
	}

	b.logger.Debug("Stored media", "key", key, "bytes", len(data), "content_type", contentType)
	return b.baseURL + key, nil
}

func (b *Bucket) Remove(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, ok := strings.CutPrefix(url, b.baseURL)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if err := b.fs.Remove(path.Clean("/" + key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to remove media object: %w", err)
	}
	return nil
}

// Open returns the object stored under key along with its sniffed content type.
func (b *Bucket) Open(key string) (io.ReadCloser, string, error) {
	f, err := b.fs.Open(path.Clean("/" + key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to open media object: %w", err)
	}

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, "", fmt.Errorf("failed to rewind media object: %w", err)
	}
	return f, http.DetectContentType(head[:n]), nil
}
