package domain

import "time"

// DocumentStatus tracks a document through the ingestion lifecycle.
type DocumentStatus string

// Document lifecycle states.
const (
	// DocumentPending means the ingestion request is accepted but not started.
	DocumentPending DocumentStatus = "pending"

	// DocumentChunking means the chunker is splitting the text.
	DocumentChunking DocumentStatus = "chunking"

	// DocumentEmbedding means chunks exist and embeddings are in flight.
	DocumentEmbedding DocumentStatus = "embedding"

	// DocumentReady means every retained chunk is embedded and queryable.
	DocumentReady DocumentStatus = "ready"

	// DocumentFailed means ingestion gave up under the strict failure policy.
	DocumentFailed DocumentStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentPending, DocumentChunking, DocumentEmbedding, DocumentReady, DocumentFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions occur from this status.
func (s DocumentStatus) Terminal() bool {
	return s == DocumentReady || s == DocumentFailed
}

// String returns the string representation.
func (s DocumentStatus) String() string {
	return string(s)
}

// Document represents one ingested text within a knowledge base.
// The original text itself is not retained after chunking; chunks carry
// the content.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// KnowledgeBaseID links to the owning KnowledgeBase.
	KnowledgeBaseID string

	// Title is an optional display name (file name, page title).
	Title string

	// ContentHash is the SHA-256 of the normalised input text, used to
	// detect re-ingestion of identical content.
	ContentHash string

	// Status is the current lifecycle state.
	Status DocumentStatus

	// ChunkConfig is the chunking configuration snapshot taken at
	// ingestion time. Later knowledge base config changes never touch it.
	ChunkConfig ChunkConfig

	// ChunkCount is the number of chunks produced by the chunker.
	ChunkCount int

	// FailedChunks counts chunks that exhausted their embedding retries.
	// Non-zero only under the partial failure policy once ready.
	FailedChunks int

	// CreatedAt is when the ingestion request was accepted.
	CreatedAt time.Time

	// UpdatedAt is when the document last changed state.
	UpdatedAt time.Time
}

// EmbeddingStatus tracks a chunk's progress through the embedding pipeline.
type EmbeddingStatus string

// Chunk embedding states.
const (
	// EmbeddingPending means no embedding attempt has succeeded yet.
	EmbeddingPending EmbeddingStatus = "pending"

	// EmbeddingEmbedded means the chunk has a vector.
	EmbeddingEmbedded EmbeddingStatus = "embedded"

	// EmbeddingFailed means the retry budget was exhausted.
	EmbeddingFailed EmbeddingStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s EmbeddingStatus) IsValid() bool {
	switch s {
	case EmbeddingPending, EmbeddingEmbedded, EmbeddingFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s EmbeddingStatus) String() string {
	return string(s)
}

// Span is a half-open [Start,End) range of token offsets in the source text.
type Span struct {
	// Start is the inclusive first token offset.
	Start int

	// End is the exclusive last token offset.
	End int
}

// Len returns the number of tokens covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Chunk represents a bounded span of a document's text.
// It is the unit of embedding, indexing and retrieval.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// KnowledgeBaseID links to the owning KnowledgeBase.
	// Denormalised so index operations can scope without a lookup.
	KnowledgeBaseID string

	// Ordinal is the 0-based position within the document.
	// Ordinals are dense: a document with n chunks has ordinals 0..n-1.
	Ordinal int

	// Span locates the chunk in the source text. Consecutive chunks
	// overlap by the configured overlap; the union covers the source.
	Span Span

	// Content is the text content of this chunk.
	Content string

	// TokenCount is the number of tokens in Content.
	TokenCount int

	// Embedding is the vector representation. Nil until embedded.
	Embedding []float32

	// EmbeddingStatus is the chunk's embedding state.
	EmbeddingStatus EmbeddingStatus
}
