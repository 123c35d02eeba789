package driven

import (
	"context"

	"github.com/plinth-labs/retrieva/internal/core/domain"
)

// AIConfigValidator validates embedding provider configurations.
// Implementations verify a configuration by building a client and
// issuing a lightweight request against the provider.
type AIConfigValidator interface {
	// ValidateEmbedding validates an embedding configuration by pinging
	// the provider. Returns nil if the configuration works or is not
	// configured at all.
	ValidateEmbedding(ctx context.Context, config *domain.EmbeddingSettings) error
}
