package driven

import "context"

// VectorEntry pairs a chunk with its embedding for index insertion.
type VectorEntry struct {
	// ChunkID is the chunk being indexed.
	ChunkID string

	// Embedding is the chunk's vector.
	Embedding []float32
}

// VectorIndex provides semantic similarity search operations.
// Entries are scoped per knowledge base; each knowledge base has a fixed
// vector dimensionality set by its embedding model.
type VectorIndex interface {
	// Add inserts vectors for the given knowledge base. Insertions are
	// visible to queries as soon as the call returns.
	Add(ctx context.Context, knowledgeBaseID string, entries []VectorEntry) error

	// Delete removes vectors from the index. Absent IDs are ignored.
	Delete(ctx context.Context, knowledgeBaseID string, chunkIDs []string) error

	// DropKnowledgeBase discards every vector for a knowledge base.
	// Used when rebuilding after corruption.
	DropKnowledgeBase(ctx context.Context, knowledgeBaseID string) error

	// Search finds the k nearest neighbours to the query vector by
	// cosine similarity.
	Search(ctx context.Context, knowledgeBaseID string, query []float32, k int) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score.
	Similarity float64
}
