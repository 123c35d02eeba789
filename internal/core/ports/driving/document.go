package driving

import (
	"context"

	"github.com/plinth-labs/retrieva/internal/core/domain"
)

// DocumentService exposes read access to ingested documents.
type DocumentService interface {
	// ListByKnowledgeBase returns all documents in a knowledge base.
	ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]domain.Document, error)

	// Get retrieves a single document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// GetContent reassembles the original document text from its stored
	// chunks.
	GetContent(ctx context.Context, documentID string) (string, error)
}
