package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
)

// Ensure KnowledgeBaseStore implements the interface.
var _ driven.KnowledgeBaseStore = (*KnowledgeBaseStore)(nil)

// KnowledgeBaseStore is an in-memory implementation of
// driven.KnowledgeBaseStore.
type KnowledgeBaseStore struct {
	mu    sync.RWMutex
	bases map[string]domain.KnowledgeBase
}

// NewKnowledgeBaseStore creates a new in-memory knowledge base store.
func NewKnowledgeBaseStore() *KnowledgeBaseStore {
	return &KnowledgeBaseStore{
		bases: make(map[string]domain.KnowledgeBase),
	}
}

// SaveKnowledgeBase stores or updates a knowledge base.
func (s *KnowledgeBaseStore) SaveKnowledgeBase(_ context.Context, kb *domain.KnowledgeBase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bases[kb.ID] = *kb
	return nil
}

// GetKnowledgeBase retrieves a knowledge base by ID.
func (s *KnowledgeBaseStore) GetKnowledgeBase(_ context.Context, id string) (*domain.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kb, ok := s.bases[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &kb, nil
}

// ListKnowledgeBases returns all knowledge bases sorted by name.
func (s *KnowledgeBaseStore) ListKnowledgeBases(_ context.Context) ([]domain.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.KnowledgeBase, 0, len(s.bases))
	for _, kb := range s.bases {
		result = append(result, kb)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}
