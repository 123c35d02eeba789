// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the engine to function:
//
//   - DocumentStore: Document and chunk persistence (system of record)
//   - KnowledgeBaseStore: Knowledge base configuration persistence
//   - VectorIndex: Embedding storage and similarity search
//   - LexicalIndex: Token postings and BM25 retrieval
//   - EmbeddingService: Generates vector embeddings
//   - ConfigStore: Application configuration
//
// The two indices are derived state: on corruption they are rebuilt from
// the DocumentStore, which retains every chunk and embedding.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
