package driving

import (
	"context"

	"github.com/plinth-labs/retrieva/internal/core/domain"
)

// Ingestor accepts text for ingestion and manages document lifecycle.
type Ingestor interface {
	// Ingest accepts pre-extracted text for asynchronous processing.
	// It returns as soon as the document record exists; callers poll
	// Status for lifecycle transitions. A full pending-chunk queue is
	// reported as domain.ErrBackpressure with no state change.
	Ingest(ctx context.Context, req IngestRequest) (*IngestReceipt, error)

	// Delete removes a document and all derived index state.
	// Idempotent: deleting an unknown ID is a no-op success. Issued
	// against an in-flight ingestion it cancels remaining work and
	// compensates out already-committed chunks.
	Delete(ctx context.Context, documentID string) error

	// Status reports a document's lifecycle state and chunk progress.
	Status(ctx context.Context, documentID string) (*IngestionStatus, error)
}

// IngestRequest carries one ingestion submission.
type IngestRequest struct {
	// KnowledgeBaseID selects the owning knowledge base.
	KnowledgeBaseID string

	// Text is the normalised document text. Extraction from source
	// formats happens upstream.
	Text string

	// Title is an optional display name used in citations.
	Title string

	// ChunkConfig overrides the knowledge base chunking defaults
	// when non-nil.
	ChunkConfig *domain.ChunkConfig
}

// IngestReceipt acknowledges an accepted ingestion.
type IngestReceipt struct {
	// IngestionID identifies the ingestion; it is the document ID.
	IngestionID string

	// Status is the initial document status.
	Status domain.DocumentStatus
}

// IngestionStatus reports document progress for polling callers.
type IngestionStatus struct {
	// DocumentID identifies the document.
	DocumentID string

	// Status is the current lifecycle state.
	Status domain.DocumentStatus

	// TotalChunks is the number of chunks the chunker produced.
	TotalChunks int

	// EmbeddedChunks counts chunks that reached embedded.
	EmbeddedChunks int

	// FailedChunks counts chunks that exhausted their retry budget.
	FailedChunks int
}
