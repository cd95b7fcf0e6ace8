package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of embeddings to cache.
// At 768 dimensions * 4 bytes * 1000 entries it is about 3MB of memory.
const DefaultCacheSize = 1000

// Cached wraps an Embedder with LRU caching so overlapping chunks and
// repeated queries do not recompute embeddings.
type Cached struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCached creates a cached embedder wrapping inner. size determines the
// number of unique embeddings kept in memory; size <= 0 selects the
// default.
func NewCached(inner Embedder, size int) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &Cached{
		inner: inner,
		cache: cache,
	}
}

// cacheKey hashes text together with the embedder name so switching
// backends never serves stale vectors.
func (c *Cached) cacheKey(text string) string {
	combined := text + "\x00" + c.inner.Name()
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// Embed returns the cached embedding if available, otherwise computes and
// caches it.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, vec)
	return vec, nil
}

// Dimensions implements Embedder.
func (c *Cached) Dimensions() int { return c.inner.Dimensions() }

// Name implements Embedder.
func (c *Cached) Name() string { return c.inner.Name() }

// Len returns the number of cached embeddings.
func (c *Cached) Len() int { return c.cache.Len() }
