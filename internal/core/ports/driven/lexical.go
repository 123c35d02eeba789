package driven

import (
	"context"

	"github.com/plinth-labs/retrieva/internal/core/domain"
)

// LexicalIndex provides full-text retrieval over token postings.
// Postings are scoped per knowledge base and scored BM25-style.
type LexicalIndex interface {
	// Index adds or updates chunks in the postings. Insertions are
	// visible to queries as soon as the call returns.
	Index(ctx context.Context, knowledgeBaseID string, chunks []domain.Chunk) error

	// Delete removes chunks from the postings. Absent IDs are ignored.
	Delete(ctx context.Context, knowledgeBaseID string, chunkIDs []string) error

	// DropKnowledgeBase discards every posting for a knowledge base.
	// Used when rebuilding after corruption.
	DropKnowledgeBase(ctx context.Context, knowledgeBaseID string) error

	// Search performs a ranked keyword search and returns matching
	// chunk IDs with raw scores.
	Search(ctx context.Context, knowledgeBaseID string, query string, limit int) ([]LexicalHit, error)

	// Close releases resources.
	Close() error
}

// LexicalHit represents a keyword search result.
type LexicalHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the raw relevance score (BM25).
	Score float64
}
