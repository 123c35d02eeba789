// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - DocumentStore: document and chunk persistence
//   - KnowledgeBaseStore: knowledge base configuration persistence
//
// The database is the durable record of the engine. The vector and lexical
// indices are derived from it and can always be rebuilt from the chunk rows,
// which carry their embeddings as little-endian float32 BLOBs.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.retrieva/data/retrieva.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
