package mcp

import (
	"github.com/plinth-labs/retrieva/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Querier serves retrieval queries.
	Querier driving.Querier

	// Ingestor accepts text and manages document lifecycle.
	Ingestor driving.Ingestor

	// KnowledgeBase lists knowledge base configurations.
	KnowledgeBase driving.KnowledgeBaseService

	// Document serves document listings and reassembled content.
	Document driving.DocumentService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Querier == nil {
		return ErrMissingQuerier
	}
	if p.Ingestor == nil {
		return ErrMissingIngestor
	}
	// KnowledgeBase and Document are optional; their resources degrade
	// to an empty list or report not found
	return nil
}
