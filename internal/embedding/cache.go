package embedding

import (
	"context"

	"go.uber.org/zap"

	"github.com/policy-rag/backend/pkg/logger"
	"github.com/policy-rag/backend/pkg/utils"
)

// VectorCache is the slice of the redis client the decorator needs. Lookup
// misses return (nil, nil).
type VectorCache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, error)
	SetEmbedding(ctx context.Context, key string, vector []float32) error
}

// CachedEmbedder wraps another embedder with a vector cache keyed by
// md5(model|text). Cache failures are logged and ignored; the inner embedder
// is always the source of truth.
type CachedEmbedder struct {
	inner Embedder
	cache VectorCache
}

func NewCachedEmbedder(inner Embedder, cache VectorCache) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		key := c.cacheKey(text)
		vec, err := c.cache.GetEmbedding(ctx, key)
		if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		}
		if vec != nil {
			vectors[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	fresh, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}

	for j, vec := range fresh {
		i := missingIdx[j]
		vectors[i] = vec
		if err := c.cache.SetEmbedding(ctx, c.cacheKey(texts[i]), vec); err != nil {
			logger.Warn("Embedding cache store failed", zap.Error(err))
		}
	}

	return vectors, nil
}

func (c *CachedEmbedder) cacheKey(text string) string {
	return utils.HashString(c.inner.ModelName() + "|" + text)
}

func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }
