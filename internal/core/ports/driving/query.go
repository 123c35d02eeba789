package driving

import (
	"context"

	"github.com/plinth-labs/retrieva/internal/core/domain"
)

// Querier serves retrieval queries against a knowledge base.
type Querier interface {
	// Query runs hybrid retrieval and returns ranked, citable spans.
	// Results are best-effort: chunks whose documents vanished between
	// ranking and resolution are dropped and Partial is set.
	Query(ctx context.Context, knowledgeBaseID, query string, opts domain.QueryOptions) (*domain.QueryResponse, error)
}
