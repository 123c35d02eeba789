package driven

import (
	"context"

	"github.com/plinth-labs/retrieva/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Backed by SQLite; it is the system of record the indices rebuild from.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// SaveChunks stores the full chunk set for a document atomically.
	// Either every chunk is persisted or none are.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// UpdateChunkEmbedding records the outcome of one chunk's embedding.
	// The embedding may be nil when status is failed.
	UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32, status domain.EmbeddingStatus) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// FindDocumentByHash looks up a document in a knowledge base by its
	// content hash. Returns domain.ErrNotFound when no document matches.
	FindDocumentByHash(ctx context.Context, knowledgeBaseID, contentHash string) (*domain.Document, error)

	// GetChunks retrieves all chunks for a document, ordered by ordinal.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// ListEmbeddedChunks returns every embedded chunk in a knowledge
	// base, embeddings included, regardless of document status. This
	// is the source an index rebuild replays.
	ListEmbeddedChunks(ctx context.Context, knowledgeBaseID string) ([]domain.Chunk, error)

	// DeleteDocument removes a document and its chunks.
	// Deleting an absent document is not an error.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns documents for a knowledge base.
	ListDocuments(ctx context.Context, knowledgeBaseID string) ([]domain.Document, error)
}

// KnowledgeBaseStore persists knowledge base configuration.
type KnowledgeBaseStore interface {
	// SaveKnowledgeBase stores or updates a knowledge base.
	SaveKnowledgeBase(ctx context.Context, kb *domain.KnowledgeBase) error

	// GetKnowledgeBase retrieves a knowledge base by ID.
	GetKnowledgeBase(ctx context.Context, id string) (*domain.KnowledgeBase, error)

	// ListKnowledgeBases returns all knowledge bases.
	ListKnowledgeBases(ctx context.Context) ([]domain.KnowledgeBase, error)
}
