// Package domain defines the core business entities for Retrieva.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - KnowledgeBase: A scoped corpus with chunking and ranking configuration
//   - Document: Ingested text moving through the chunk/embed lifecycle
//   - Chunk: A bounded span of document text, the unit of retrieval
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
