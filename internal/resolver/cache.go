package resolver

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/JakeFAU/cornell-notes/internal/metrics"
	"github.com/JakeFAU/cornell-notes/internal/note"
)

const defaultCacheSize = 4096

type cacheKey struct {
	canonical string
	width     int
}

// Cache is a bounded, shared (canonical, width) to rendition URL map in front of a Transformer.
// The least recently used entry is evicted when the cache is full.
type Cache struct {
	transformer note.Transformer
	entries     *lru.Cache[cacheKey, string]
}

// NewCache wraps transformer. A non-positive size uses the default.
func NewCache(transformer note.Transformer, size int) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[cacheKey, string](size)
	return &Cache{transformer: transformer, entries: entries}
}

// Transform returns the cached rendition URL, calling the transformer on a miss.
func (c *Cache) Transform(ctx context.Context, canonicalOrID string, width int) (string, error) {
	key := cacheKey{canonical: canonicalOrID, width: width}
	if url, ok := c.entries.Get(key); ok {
		metrics.ObserveRendition(true)
		return url, nil
	}

	metrics.ObserveRendition(false)
	url, err := c.transformer.Transform(ctx, canonicalOrID, width)
	if err != nil {
		return "", err
	}
	c.entries.Add(key, url)
	return url, nil
}

// Len reports the number of cached renditions.
func (c *Cache) Len() int { return c.entries.Len() }
