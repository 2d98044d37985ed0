package embed

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder wraps an Embedder with an LRU cache keyed by text.
// Embeddings are deterministic per provider, so entries never expire;
// capacity bounds memory.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with a cache of the given size.
func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &CachedEmbedder{inner: inner, cache: cache}
}

// Embed returns the cached vector or delegates to the inner provider.
// Errors are never cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, vec)
	return vec, nil
}

// IsAvailable delegates to the inner provider.
func (c *CachedEmbedder) IsAvailable(ctx context.Context) bool {
	return c.inner.IsAvailable(ctx)
}

// Dimension delegates to the inner provider.
func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

// Purge drops all cached embeddings.
func (c *CachedEmbedder) Purge() {
	c.cache.Purge()
}
