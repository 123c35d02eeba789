package driven

import "context"

// EmbeddingResult is the outcome for one input text of a batch call.
// Exactly one of Embedding and Err is set.
type EmbeddingResult struct {
	// Embedding is the vector for the corresponding input text.
	Embedding []float32

	// Err is the per-item failure, wrapping domain.ErrEmbeddingTransient
	// or domain.ErrEmbeddingPermanent.
	Err error
}

// EmbeddingService generates vector embeddings from text.
//
// Note: This is separate from VectorIndex which stores and searches vectors.
// EmbeddingService generates vectors; VectorIndex stores them.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
//   - The built-in deterministic embedder for development
type EmbeddingService interface {
	// Embed generates a vector embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one provider
	// call. The result slice has the same length and order as the input;
	// individual texts may fail without failing the call. A non-nil error
	// means the whole batch failed.
	EmbedBatch(ctx context.Context, texts []string) ([]EmbeddingResult, error)

	// Dimensions returns the embedding vector size (e.g., 384, 1536).
	// This is determined by the model and must match the knowledge base.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
