package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachedEmbedder memoizes an inner provider behind a ristretto cache keyed by
// the content hash. Embeddings are deterministic per model version, so a hit
// is always valid; in the store path this absorbs the double embedding the
// duplicate check and the upsert would otherwise pay for.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder wraps inner with an in-process cache sized for roughly a
// hundred thousand vectors.
func NewCachedEmbedder(inner Embedder) (*CachedEmbedder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     64 << 20, // bytes of cached vectors
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if v, ok := c.cache.Get(key); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, vec, int64(len(vec)*4))
	return vec, nil
}

func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

// Wait flushes pending cache writes; only tests need it.
func (c *CachedEmbedder) Wait() { c.cache.Wait() }

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
