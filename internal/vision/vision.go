// Package vision wraps an external image-description collaborator with a
// URL-keyed persistent cache and bounded-concurrency batching.
package vision

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ibeckermayer/reply4me/internal/store"
)

// FallbackDescription is returned for a URL whose description could not be
// produced. It is cached like any other description so a flapping collaborator
// is not hammered, subject to the retry TTL.
const FallbackDescription = "description unavailable"

// Describer produces a text description for a single image URL.
type Describer interface {
	Describe(ctx context.Context, url string) (string, error)
}

// Store is the persistence surface the cache needs.
type Store interface {
	ImageDescription(url string) (string, time.Time, error)
	SaveImageDescription(url, description string) error
}

// Cache is the content-addressed description cache. Concurrent requests for
// the same URL collapse into a single collaborator call.
type Cache struct {
	store              Store
	describer          Describer
	concurrency        int
	retryFallbackAfter time.Duration // 0 retries cached fallbacks immediately
	group              singleflight.Group
	log                *zap.Logger
}

// New creates a Cache. concurrency bounds simultaneous collaborator calls and
// defaults to 5. retryFallbackAfter is how long a cached fallback entry is
// honored before the collaborator is tried again.
func New(s Store, d Describer, concurrency int, retryFallbackAfter time.Duration, log *zap.Logger) *Cache {
	if concurrency <= 0 {
		concurrency = 5
	}

	return &Cache{
		store:              s,
		describer:          d,
		concurrency:        concurrency,
		retryFallbackAfter: retryFallbackAfter,
		log:                log,
	}
}

// Describe returns one description per URL, positionally. It never fails: a
// URL whose lookup and collaborator call both fail yields the fallback string
// while its siblings proceed.
func (c *Cache) Describe(ctx context.Context, urls []string) []string {
	if len(urls) == 0 {
		return nil
	}

	results := make([]string, len(urls))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, url := range urls {
		i, url := i, url
		g.Go(func() error {
			results[i] = c.describeOne(ctx, url)
			return nil
		})
	}
	g.Wait()

	return results
}

func (c *Cache) describeOne(ctx context.Context, url string) string {
	v, _, _ := c.group.Do(url, func() (any, error) {
		return c.lookupOrFetch(ctx, url), nil
	})
	return v.(string)
}

func (c *Cache) lookupOrFetch(ctx context.Context, url string) string {
	desc, createdAt, err := c.store.ImageDescription(url)
	switch {
	case err == nil:
		if desc != FallbackDescription {
			return desc
		}
		if c.retryFallbackAfter > 0 && time.Since(createdAt) < c.retryFallbackAfter {
			return desc
		}
		// Expired fallback entry: try the collaborator again.
	case !errors.Is(err, store.ErrNotFound):
		c.log.Warn("image cache lookup failed", zap.String("url", url), zap.Error(err))
	}

	desc, err = c.describer.Describe(ctx, url)
	if err != nil {
		c.log.Warn("image description failed", zap.String("url", url), zap.Error(err))
		desc = FallbackDescription
	}

	if err := c.store.SaveImageDescription(url, desc); err != nil {
		c.log.Warn("failed to cache image description", zap.String("url", url), zap.Error(err))
	}

	return desc
}
