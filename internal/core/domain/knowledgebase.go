package domain

import (
	"fmt"
	"time"
)

// FailurePolicy controls how a document reacts to chunks that exhaust
// their embedding retry budget.
type FailurePolicy string

// Available failure policies.
const (
	// PolicyStrict fails the whole document if any chunk cannot be embedded.
	PolicyStrict FailurePolicy = "strict"

	// PolicyPartial lets the document reach ready with failed chunks
	// excluded from both indices and counted on the document.
	PolicyPartial FailurePolicy = "partial"
)

// IsValid returns true if the policy is recognised.
func (p FailurePolicy) IsValid() bool {
	return p == PolicyStrict || p == PolicyPartial
}

// String returns the string representation.
func (p FailurePolicy) String() string {
	return string(p)
}

// ChunkConfig holds the chunker parameters for one ingestion.
// A document keeps the config it was ingested with even if the knowledge
// base defaults change later.
type ChunkConfig struct {
	// ChunkSize is the target chunk length in tokens.
	ChunkSize int

	// ChunkOverlap is the number of tokens shared between consecutive
	// chunks. Must be strictly smaller than ChunkSize.
	ChunkOverlap int
}

// DefaultChunkConfig returns the chunking defaults applied when a
// knowledge base is created without explicit values.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{ChunkSize: 512, ChunkOverlap: 64}
}

// DefaultHybridWeight is the ranking blend applied when a knowledge base
// is created without one. It weights vector and lexical scores equally.
const DefaultHybridWeight = 0.5

// Validate rejects configurations the chunker cannot honour.
func (c ChunkConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidChunkConfig, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be in [0,%d)", ErrInvalidChunkConfig, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// KnowledgeBase is a scoped corpus of documents sharing one embedding
// model, one chunking default and one ranking blend.
type KnowledgeBase struct {
	// ID is the unique identifier for the knowledge base.
	ID string

	// Name is the human-readable name.
	Name string

	// Owner identifies who administers the knowledge base.
	Owner string

	// ChunkConfig is the default chunking configuration for new documents.
	ChunkConfig ChunkConfig

	// EmbeddingModelID names the embedding model. It fixes the vector
	// dimensionality for every chunk in this knowledge base.
	EmbeddingModelID string

	// HybridWeight is the ranking blend factor in [0,1].
	// 0 is pure lexical, 1 is pure vector.
	HybridWeight float64

	// FailurePolicy controls document failure on exhausted chunks.
	FailurePolicy FailurePolicy

	// CreatedAt is when the knowledge base was created.
	CreatedAt time.Time

	// UpdatedAt is when the configuration last changed.
	UpdatedAt time.Time
}

// Validate checks the knowledge base configuration.
func (kb *KnowledgeBase) Validate() error {
	if kb.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if kb.EmbeddingModelID == "" {
		return fmt.Errorf("%w: embedding model is required", ErrInvalidInput)
	}
	if kb.HybridWeight < 0 || kb.HybridWeight > 1 {
		return fmt.Errorf("%w: hybrid weight %.2f must be in [0,1]", ErrInvalidInput, kb.HybridWeight)
	}
	if !kb.FailurePolicy.IsValid() {
		return fmt.Errorf("%w: unknown failure policy %q", ErrInvalidInput, kb.FailurePolicy)
	}
	return kb.ChunkConfig.Validate()
}
