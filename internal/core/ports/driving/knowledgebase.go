package driving

import (
	"context"

	"github.com/plinth-labs/retrieva/internal/core/domain"
)

// KnowledgeBaseService manages knowledge base configuration.
type KnowledgeBaseService interface {
	// Create registers a new knowledge base. The ID and timestamps are
	// assigned by the service; configuration is validated first.
	Create(ctx context.Context, kb domain.KnowledgeBase) (*domain.KnowledgeBase, error)

	// Get retrieves a knowledge base by ID, or by exact name when no
	// ID matches.
	Get(ctx context.Context, id string) (*domain.KnowledgeBase, error)

	// List returns all knowledge bases.
	List(ctx context.Context) ([]domain.KnowledgeBase, error)
}
