// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The ingestion pipeline is split across three collaborators: the
// IngestionCoordinator owns document lifecycle, the EmbeddingBatcher
// owns provider traffic and retries, and the index committer keeps the
// vector and lexical indices in lockstep.
package services
