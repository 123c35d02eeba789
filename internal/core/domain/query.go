package domain

// DefaultTopK is the result count used when a query does not request one.
const DefaultTopK = 10

// QueryOptions configures a retrieval query.
type QueryOptions struct {
	// TopK is the maximum number of results to return.
	TopK int

	// Alpha overrides the knowledge base hybrid weight when non-nil.
	Alpha *float64
}

// Citation locates a result span in its source document for display.
type Citation struct {
	// DocumentID is the owning document.
	DocumentID string

	// DocumentTitle is the document's display name, if one was supplied.
	DocumentTitle string

	// Owner is the knowledge base owner.
	Owner string

	// Ordinal is the chunk's position within the document.
	Ordinal int

	// Span is the chunk's token range in the source text.
	Span Span
}

// QueryResult represents a single ranked hit.
type QueryResult struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocumentID is the owning document.
	DocumentID string

	// Span is the chunk's token range in the source text.
	Span Span

	// Score is the combined hybrid score.
	Score float64

	// Content is the chunk text.
	Content string

	// Citation carries resolved document metadata.
	Citation Citation
}

// QueryResponse is the full answer to one query.
type QueryResponse struct {
	// Results are ranked hits, best first.
	Results []QueryResult

	// Partial is true when stale chunks were dropped during citation
	// resolution, so fewer than the ranked count are returned.
	Partial bool
}
