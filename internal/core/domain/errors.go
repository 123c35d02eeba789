package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Ingestion Errors.

	// ErrInvalidChunkConfig indicates an unusable chunking configuration.
	// Rejected before any state change.
	ErrInvalidChunkConfig = errors.New("invalid chunk config")

	// ErrBackpressure indicates the pending-chunk queue is full.
	// The caller should retry the ingestion later.
	ErrBackpressure = errors.New("ingestion backpressure")

	// ErrIngestionCancelled indicates the document was deleted while
	// its ingestion was still in flight.
	ErrIngestionCancelled = errors.New("ingestion cancelled")

	// Embedding Errors.

	// ErrEmbeddingTransient indicates a retryable provider failure.
	// Retried automatically; invisible to callers unless the budget runs out.
	ErrEmbeddingTransient = errors.New("transient embedding failure")

	// ErrEmbeddingPermanent indicates a chunk that cannot be embedded.
	// Surfaced through document status under the strict policy.
	ErrEmbeddingPermanent = errors.New("permanent embedding failure")

	// ErrEmbeddingUnavailable indicates no embedding provider is configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrDimensionMismatch indicates a vector whose length does not match
	// the knowledge base's embedding model.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// Index Errors.

	// ErrIndexCorruption indicates an index that can no longer be trusted.
	// Fatal for the knowledge base: its indices must be rebuilt from the
	// persisted chunk records, never served as-is.
	ErrIndexCorruption = errors.New("index corruption")

	// ErrStaleCitation indicates a result chunk whose document vanished
	// between ranking and resolution. Dropped from results, never fatal.
	ErrStaleCitation = errors.New("stale citation")
)
