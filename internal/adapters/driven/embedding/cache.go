// Package embedding provides decorators shared by the provider adapters.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
)

// Ensure CachedService implements the interface.
var _ driven.EmbeddingService = (*CachedService)(nil)

// DefaultCacheSize is the number of embeddings kept in memory.
const DefaultCacheSize = 4096

// CachedService wraps an EmbeddingService with an LRU cache keyed by
// model and content hash. Re-ingesting overlapping documents skips
// provider calls for chunks embedded before.
type CachedService struct {
	inner driven.EmbeddingService
	cache *lru.Cache[string, []float32]
}

// NewCachedService wraps inner with an embedding cache of the given size.
func NewCachedService(inner driven.EmbeddingService, size int) (*CachedService, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &CachedService{inner: inner, cache: cache}, nil
}

// key derives the cache key for a text. The model name is part of the
// key so switching models never serves a stale vector.
func (s *CachedService) key(text string) string {
	sum := sha256.Sum256([]byte(s.inner.ModelName() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed returns a cached vector or delegates to the provider.
func (s *CachedService) Embed(ctx context.Context, text string) ([]float32, error) {
	k := s.key(text)
	if vec, ok := s.cache.Get(k); ok {
		return vec, nil
	}

	vec, err := s.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.Add(k, vec)
	return vec, nil
}

// EmbedBatch resolves cached items locally and sends only the misses to
// the provider, merging results back into input order.
func (s *CachedService) EmbedBatch(ctx context.Context, texts []string) ([]driven.EmbeddingResult, error) {
	results := make([]driven.EmbeddingResult, len(texts))

	var missTexts []string
	var missIndices []int
	for i, text := range texts {
		if vec, ok := s.cache.Get(s.key(text)); ok {
			results[i] = driven.EmbeddingResult{Embedding: vec}
			continue
		}
		missTexts = append(missTexts, text)
		missIndices = append(missIndices, i)
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	missed, err := s.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		if len(missTexts) == len(texts) {
			return nil, err
		}
		// Cached items are already resolved; report the provider
		// failure on the missing items only.
		for _, i := range missIndices {
			results[i] = driven.EmbeddingResult{Err: err}
		}
		return results, nil
	}
	if len(missed) != len(missTexts) {
		return nil, fmt.Errorf("%w: provider returned %d results for %d texts",
			domain.ErrEmbeddingTransient, len(missed), len(missTexts))
	}

	for j, res := range missed {
		i := missIndices[j]
		results[i] = res
		if res.Err == nil {
			s.cache.Add(s.key(texts[i]), res.Embedding)
		}
	}
	return results, nil
}

// Dimensions returns the embedding vector size.
func (s *CachedService) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the name of the embedding model being used.
func (s *CachedService) ModelName() string {
	return s.inner.ModelName()
}

// Ping validates the underlying service is reachable.
func (s *CachedService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close releases resources.
func (s *CachedService) Close() error {
	s.cache.Purge()
	return s.inner.Close()
}
