package imagecache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"
	"golang.org/x/sync/singleflight"

	"github.com/smarteating/tray/internal/logging"
)

// DefaultTTL is how long a cached image stays fresh.
const DefaultTTL = 24 * time.Hour

// Fetcher downloads an image. *cafeteria.Client implements it.
type Fetcher interface {
	FetchImage(ctx context.Context, src string) ([]byte, error)
}

// Status is the load state of one image.
type Status string

const (
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusError   Status = "error"
)

// ImageStatus reports how one URL fared in Warm.
type ImageStatus struct {
	Src    string `json:"src"`
	Status Status `json:"status"`
	Cached bool   `json:"cached"`
}

// WarmResult is the outcome of warming a set of URLs.
type WarmResult struct {
	Images []ImageStatus `json:"images"`
}

// AllLoaded reports whether every image has settled, loaded or failed.
func (w WarmResult) AllLoaded() bool {
	for _, img := range w.Images {
		if img.Status != StatusLoaded && img.Status != StatusError {
			return false
		}
	}
	return true
}

// Loader serves images from the Store and fetches misses. Concurrent loads
// of the same key share one download.
type Loader struct {
	store   *Store
	fetcher Fetcher
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
	flight  singleflight.Group
}

// NewLoader builds a Loader. ttl <= 0 uses DefaultTTL.
func NewLoader(store *Store, fetcher Fetcher, ttl time.Duration, logger *slog.Logger) *Loader {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Loader{
		store:   store,
		fetcher: fetcher,
		ttl:     ttl,
		logger:  logging.OrNop(logger).With("component", "imagecache"),
		now:     time.Now,
	}
}

// Get returns the image for src. cached is true when it came from the store.
// A record older than the TTL is treated as absent and refetched.
func (l *Loader) Get(ctx context.Context, src string) (data []byte, cached bool, err error) {
	key := Key(src)
	if key == "" {
		return nil, false, fmt.Errorf("image url is empty")
	}

	rec, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.logger.Warn("image cache read failed", "key", key, "error", err)
	} else if ok && l.now().Sub(rec.Timestamp) < l.ttl {
		return rec.Blob, true, nil
	}

	v, err, _ := l.flight.Do(key, func() (any, error) {
		blob, err := l.fetcher.FetchImage(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("fetch image: %w", err)
		}
		if err := l.store.Put(ctx, Record{Key: key, Blob: blob, Timestamp: l.now()}); err != nil {
			l.logger.Warn("image cache write failed", "key", key, "error", err)
		}
		return blob, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// Warm loads every URL concurrently and reports each one's status. Empty
// URLs count as loaded, matching slices that have no photo.
func (l *Loader) Warm(ctx context.Context, urls []string) WarmResult {
	result := WarmResult{Images: make([]ImageStatus, len(urls))}
	var wg conc.WaitGroup
	for i, src := range urls {
		result.Images[i] = ImageStatus{Src: src, Status: StatusLoading}
		if src == "" {
			result.Images[i].Status = StatusLoaded
			continue
		}
		i, src := i, src
		wg.Go(func() {
			_, cached, err := l.Get(ctx, src)
			if err != nil {
				l.logger.Warn("image warmup failed", "src", src, "error", err)
				result.Images[i].Status = StatusError
				return
			}
			result.Images[i].Status = StatusLoaded
			result.Images[i].Cached = cached
		})
	}
	wg.Wait()
	return result
}

// Prune removes records older than the TTL.
func (l *Loader) Prune(ctx context.Context) (int64, error) {
	return l.store.Prune(ctx, l.now().Add(-l.ttl))
}
