package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/plinth-labs/retrieva/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all metadata store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.retrieva/data/retrieva.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".retrieva", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "retrieva.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys so chunk rows follow their document
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// KnowledgeBaseStore returns a KnowledgeBaseStore interface backed by this store.
func (s *Store) KnowledgeBaseStore() driven.KnowledgeBaseStore {
	return &knowledgeBaseStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration; each migration records its own
		// version row in schema_migrations.
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents
			(id, knowledge_base_id, title, content_hash, status,
			 chunk_size, chunk_overlap, chunk_count, failed_chunks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			knowledge_base_id = excluded.knowledge_base_id,
			title = excluded.title,
			content_hash = excluded.content_hash,
			status = excluded.status,
			chunk_size = excluded.chunk_size,
			chunk_overlap = excluded.chunk_overlap,
			chunk_count = excluded.chunk_count,
			failed_chunks = excluded.failed_chunks,
			updated_at = excluded.updated_at
	`, doc.ID, doc.KnowledgeBaseID, doc.Title, doc.ContentHash, doc.Status.String(),
		doc.ChunkConfig.ChunkSize, doc.ChunkConfig.ChunkOverlap,
		doc.ChunkCount, doc.FailedChunks, doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// SaveChunks replaces a document's chunk set in one transaction, so a
// partially written set is never observable.
func (s *documentStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	documentID := chunks[0].DocumentID
	for _, chunk := range chunks {
		if chunk.DocumentID != documentID {
			return fmt.Errorf("%w: chunk set spans multiple documents", domain.ErrInvalidInput)
		}
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing previous chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks
			(id, document_id, knowledge_base_id, ordinal, span_start, span_end,
			 content, token_count, embedding, embedding_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		embeddingBlob := float32SliceToBytes(chunk.Embedding)
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.KnowledgeBaseID,
			chunk.Ordinal, chunk.Span.Start, chunk.Span.End,
			chunk.Content, chunk.TokenCount, embeddingBlob, chunk.EmbeddingStatus.String()); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// UpdateChunkEmbedding records one chunk's embedding outcome.
func (s *documentStore) UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32, status domain.EmbeddingStatus) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE chunks SET embedding = ?, embedding_status = ? WHERE id = ?
	`, float32SliceToBytes(embedding), status.String(), chunkID)
	if err != nil {
		return fmt.Errorf("updating chunk embedding: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("chunk %s: %w", chunkID, domain.ErrNotFound)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, knowledge_base_id, title, content_hash, status,
		       chunk_size, chunk_overlap, chunk_count, failed_chunks, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	return scanDocument(row)
}

// FindDocumentByHash looks up a document by its content hash within a
// knowledge base.
func (s *documentStore) FindDocumentByHash(ctx context.Context, knowledgeBaseID, contentHash string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, knowledge_base_id, title, content_hash, status,
		       chunk_size, chunk_overlap, chunk_count, failed_chunks, created_at, updated_at
		FROM documents WHERE knowledge_base_id = ? AND content_hash = ?
		ORDER BY created_at DESC LIMIT 1
	`, knowledgeBaseID, contentHash)

	return scanDocument(row)
}

// GetChunks retrieves all chunks for a document ordered by ordinal.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, knowledge_base_id, ordinal, span_start, span_end,
		       content, token_count, embedding, embedding_status
		FROM chunks WHERE document_id = ?
		ORDER BY ordinal
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	return collectChunks(rows)
}

// GetChunk retrieves a specific chunk by ID.
func (s *documentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, knowledge_base_id, ordinal, span_start, span_end,
		       content, token_count, embedding, embedding_status
		FROM chunks WHERE id = ?
	`, id)

	return scanChunkRow(row)
}

// ListEmbeddedChunks returns every embedded chunk in a knowledge base
// regardless of document status. This is the set an index rebuild
// replays.
func (s *documentStore) ListEmbeddedChunks(ctx context.Context, knowledgeBaseID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, knowledge_base_id, ordinal, span_start, span_end,
		       content, token_count, embedding, embedding_status
		FROM chunks
		WHERE knowledge_base_id = ? AND embedding_status = ?
		ORDER BY document_id, ordinal
	`, knowledgeBaseID, domain.EmbeddingEmbedded.String())
	if err != nil {
		return nil, fmt.Errorf("querying embedded chunks: %w", err)
	}
	defer rows.Close()

	return collectChunks(rows)
}

// DeleteDocument removes a document and its chunks. Deleting an absent
// document is not an error.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ListDocuments returns documents for a knowledge base.
func (s *documentStore) ListDocuments(ctx context.Context, knowledgeBaseID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, knowledge_base_id, title, content_hash, status,
		       chunk_size, chunk_overlap, chunk_count, failed_chunks, created_at, updated_at
		FROM documents WHERE knowledge_base_id = ?
		ORDER BY created_at
	`, knowledgeBaseID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// ==================== Knowledge Base Store ====================

// knowledgeBaseStore implements driven.KnowledgeBaseStore.
type knowledgeBaseStore struct {
	store *Store
}

var _ driven.KnowledgeBaseStore = (*knowledgeBaseStore)(nil)

// SaveKnowledgeBase stores or updates a knowledge base.
func (s *knowledgeBaseStore) SaveKnowledgeBase(ctx context.Context, kb *domain.KnowledgeBase) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO knowledge_bases
			(id, name, owner, chunk_size, chunk_overlap, embedding_model,
			 hybrid_weight, failure_policy, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			owner = excluded.owner,
			chunk_size = excluded.chunk_size,
			chunk_overlap = excluded.chunk_overlap,
			embedding_model = excluded.embedding_model,
			hybrid_weight = excluded.hybrid_weight,
			failure_policy = excluded.failure_policy,
			updated_at = excluded.updated_at
	`, kb.ID, kb.Name, kb.Owner, kb.ChunkConfig.ChunkSize, kb.ChunkConfig.ChunkOverlap,
		kb.EmbeddingModelID, kb.HybridWeight, kb.FailurePolicy.String(), kb.CreatedAt, kb.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving knowledge base: %w", err)
	}
	return nil
}

// GetKnowledgeBase retrieves a knowledge base by ID.
func (s *knowledgeBaseStore) GetKnowledgeBase(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, owner, chunk_size, chunk_overlap, embedding_model,
		       hybrid_weight, failure_policy, created_at, updated_at
		FROM knowledge_bases WHERE id = ?
	`, id)

	var kb domain.KnowledgeBase
	var policy string
	if err := row.Scan(&kb.ID, &kb.Name, &kb.Owner,
		&kb.ChunkConfig.ChunkSize, &kb.ChunkConfig.ChunkOverlap, &kb.EmbeddingModelID,
		&kb.HybridWeight, &policy, &kb.CreatedAt, &kb.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning knowledge base: %w", err)
	}
	kb.FailurePolicy = domain.FailurePolicy(policy)

	return &kb, nil
}

// ListKnowledgeBases returns all knowledge bases ordered by name.
func (s *knowledgeBaseStore) ListKnowledgeBases(ctx context.Context) ([]domain.KnowledgeBase, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, owner, chunk_size, chunk_overlap, embedding_model,
		       hybrid_weight, failure_policy, created_at, updated_at
		FROM knowledge_bases ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge bases: %w", err)
	}
	defer rows.Close()

	var kbs []domain.KnowledgeBase //nolint:prealloc // size unknown from query
	for rows.Next() {
		var kb domain.KnowledgeBase
		var policy string
		if err := rows.Scan(&kb.ID, &kb.Name, &kb.Owner,
			&kb.ChunkConfig.ChunkSize, &kb.ChunkConfig.ChunkOverlap, &kb.EmbeddingModelID,
			&kb.HybridWeight, &policy, &kb.CreatedAt, &kb.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning knowledge base: %w", err)
		}
		kb.FailurePolicy = domain.FailurePolicy(policy)
		kbs = append(kbs, kb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating knowledge bases: %w", err)
	}

	return kbs, nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var status string

	if err := row.Scan(&doc.ID, &doc.KnowledgeBaseID, &doc.Title, &doc.ContentHash, &status,
		&doc.ChunkConfig.ChunkSize, &doc.ChunkConfig.ChunkOverlap,
		&doc.ChunkCount, &doc.FailedChunks, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

// scanDocumentRows scans a document from *sql.Rows.
func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	var doc domain.Document
	var status string

	if err := rows.Scan(&doc.ID, &doc.KnowledgeBaseID, &doc.Title, &doc.ContentHash, &status,
		&doc.ChunkConfig.ChunkSize, &doc.ChunkConfig.ChunkOverlap,
		&doc.ChunkCount, &doc.FailedChunks, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

// scanChunk scans a chunk from *sql.Rows.
func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte
	var status string

	if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.KnowledgeBaseID,
		&chunk.Ordinal, &chunk.Span.Start, &chunk.Span.End,
		&chunk.Content, &chunk.TokenCount, &embeddingBlob, &status); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	chunk.EmbeddingStatus = domain.EmbeddingStatus(status)
	return &chunk, nil
}

// scanChunkRow scans a chunk from *sql.Row.
func scanChunkRow(row *sql.Row) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte
	var status string

	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.KnowledgeBaseID,
		&chunk.Ordinal, &chunk.Span.Start, &chunk.Span.End,
		&chunk.Content, &chunk.TokenCount, &embeddingBlob, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	chunk.EmbeddingStatus = domain.EmbeddingStatus(status)
	return &chunk, nil
}

// collectChunks drains a chunk result set.
func collectChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}
