package vectorstore

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/suPer8Hu/travel-assistant/internal/ai"
)

// CachingEmbedder memoizes embeddings by exact text. Repeated questions
// skip the embedding round trip.
type CachingEmbedder struct {
	next  ai.Embedder
	cache *cache.Cache
}

func NewCachingEmbedder(next ai.Embedder, ttl time.Duration) *CachingEmbedder {
	return &CachingEmbedder{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (e *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return v.([]float32), nil
	}
	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.SetDefault(text, vec)
	return vec, nil
}
