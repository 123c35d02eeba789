// Package memory provides in-memory implementations of the storage
// ports. They back tests and the throwaway engine mode; durable
// deployments use the sqlite package.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk // keyed by document ID
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// SaveChunks replaces the chunk set for a document. The write is
// all-or-nothing: mixed document IDs are rejected before anything
// changes.
func (s *DocumentStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docID := chunks[0].DocumentID
	for _, ch := range chunks {
		if ch.DocumentID != docID {
			return fmt.Errorf("%w: chunk set spans documents %s and %s",
				domain.ErrInvalidInput, docID, ch.DocumentID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]domain.Chunk, len(chunks))
	copy(stored, chunks)
	sort.Slice(stored, func(i, j int) bool { return stored[i].Ordinal < stored[j].Ordinal })
	s.chunks[docID] = stored
	return nil
}

// UpdateChunkEmbedding records one chunk's embedding outcome.
func (s *DocumentStore) UpdateChunkEmbedding(_ context.Context, chunkID string, embedding []float32, status domain.EmbeddingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for docID, chunks := range s.chunks {
		for i := range chunks {
			if chunks[i].ID == chunkID {
				chunks[i].Embedding = embedding
				chunks[i].EmbeddingStatus = status
				s.chunks[docID] = chunks
				return nil
			}
		}
	}
	return fmt.Errorf("chunk %s: %w", chunkID, domain.ErrNotFound)
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// FindDocumentByHash looks up a document by content hash within a
// knowledge base.
func (s *DocumentStore) FindDocumentByHash(_ context.Context, knowledgeBaseID, contentHash string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.documents {
		doc := s.documents[id]
		if doc.KnowledgeBaseID == knowledgeBaseID && doc.ContentHash == contentHash {
			return &doc, nil
		}
	}
	return nil, domain.ErrNotFound
}

// GetChunks retrieves all chunks for a document, ordered by ordinal.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks, ok := s.chunks[documentID]
	if !ok {
		return nil, nil
	}
	result := make([]domain.Chunk, len(chunks))
	copy(result, chunks)
	return result, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *DocumentStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, chunks := range s.chunks {
		for _, chunk := range chunks {
			if chunk.ID == id {
				return &chunk, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

// ListEmbeddedChunks returns the embedded chunks of every document in
// a knowledge base, ordered by document then ordinal. Document status
// is not consulted.
func (s *DocumentStore) ListEmbeddedChunks(_ context.Context, knowledgeBaseID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Chunk
	for docID, chunks := range s.chunks {
		doc, ok := s.documents[docID]
		if !ok || doc.KnowledgeBaseID != knowledgeBaseID {
			continue
		}
		for _, chunk := range chunks {
			if chunk.EmbeddingStatus == domain.EmbeddingEmbedded {
				result = append(result, chunk)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DocumentID != result[j].DocumentID {
			return result[i].DocumentID < result[j].DocumentID
		}
		return result[i].Ordinal < result[j].Ordinal
	})
	return result, nil
}

// DeleteDocument removes a document and its chunks. Unknown IDs are
// a no-op.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// ListDocuments returns documents for a knowledge base.
func (s *DocumentStore) ListDocuments(_ context.Context, knowledgeBaseID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for id := range s.documents {
		doc := s.documents[id]
		if doc.KnowledgeBaseID == knowledgeBaseID {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}
