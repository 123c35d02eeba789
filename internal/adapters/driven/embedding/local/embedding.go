// Package local provides a deterministic embedding service with no
// external dependencies. Vectors are built from hashed tokens, so the
// same text always embeds to the same vector and texts sharing
// vocabulary land near each other. Intended for development and tests,
// not for semantic quality.
package local

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultDimensions is the vector size of the built-in model.
const DefaultDimensions = 256

// EmbeddingService generates hash-derived embeddings.
type EmbeddingService struct {
	dimensions int
}

// NewEmbeddingService creates a deterministic embedding service.
func NewEmbeddingService(dimensions int) *EmbeddingService {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &EmbeddingService{dimensions: dimensions}
}

// Embed generates a vector embedding for the given text. Each token
// hashes to a bucket with a hash-derived sign; the accumulated vector
// is scaled to unit length.
func (s *EmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum32()
		bucket := int(sum % uint32(s.dimensions))
		if sum&(1<<31) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}
	normalise(vec)
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts. Items never fail
// individually; the only failure mode is cancellation.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([]driven.EmbeddingResult, error) {
	results := make([]driven.EmbeddingResult, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = driven.EmbeddingResult{Embedding: vec}
	}
	return results, nil
}

// normalise scales the vector to unit length so cosine similarity
// behaves like a plain dot product. Empty text maps to a fixed unit
// vector.
func normalise(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		vec[0] = 1
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return fmt.Sprintf("hash-%d", s.dimensions)
}

// Ping always succeeds; there is nothing to reach.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
