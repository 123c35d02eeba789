package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
	"github.com/plinth-labs/retrieva/internal/core/ports/driving"
	"github.com/plinth-labs/retrieva/internal/logger"
)

// KnowledgeBaseService manages knowledge base configuration.
type KnowledgeBaseService struct {
	store    driven.KnowledgeBaseStore
	embedder driven.EmbeddingService
}

// NewKnowledgeBaseService creates the service. The embedder supplies
// the default embedding model for knowledge bases created without one;
// it may be nil, in which case the model must be given explicitly.
func NewKnowledgeBaseService(store driven.KnowledgeBaseStore, embedder driven.EmbeddingService) *KnowledgeBaseService {
	return &KnowledgeBaseService{store: store, embedder: embedder}
}

// Verify interface compliance at compile time.
var _ driving.KnowledgeBaseService = (*KnowledgeBaseService)(nil)

// Create registers a new knowledge base, filling in defaults for
// anything the caller left unset. The embedding model is pinned here:
// every chunk ingested later must match its dimensionality.
func (s *KnowledgeBaseService) Create(ctx context.Context, kb domain.KnowledgeBase) (*domain.KnowledgeBase, error) {
	if kb.ChunkConfig == (domain.ChunkConfig{}) {
		kb.ChunkConfig = domain.DefaultChunkConfig()
	}
	if kb.EmbeddingModelID == "" && s.embedder != nil {
		kb.EmbeddingModelID = s.embedder.ModelName()
	}
	if kb.FailurePolicy == "" {
		kb.FailurePolicy = domain.PolicyPartial
	}
	if err := kb.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.ListKnowledgeBases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list knowledge bases: %w", err)
	}
	for _, other := range existing {
		if other.Name == kb.Name {
			return nil, fmt.Errorf("%w: knowledge base %q", domain.ErrAlreadyExists, kb.Name)
		}
	}

	now := time.Now()
	kb.ID = uuid.New().String()
	kb.CreatedAt = now
	kb.UpdatedAt = now
	if err := s.store.SaveKnowledgeBase(ctx, &kb); err != nil {
		return nil, fmt.Errorf("save knowledge base: %w", err)
	}

	logger.Info("created knowledge base %s (%s) with model %s", kb.ID, kb.Name, kb.EmbeddingModelID)
	return &kb, nil
}

// Get retrieves a knowledge base by ID, falling back to a name match
// so command-line callers can use either.
func (s *KnowledgeBaseService) Get(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	kb, err := s.store.GetKnowledgeBase(ctx, id)
	if err == nil {
		return kb, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get knowledge base: %w", err)
	}

	all, listErr := s.store.ListKnowledgeBases(ctx)
	if listErr != nil {
		return nil, fmt.Errorf("list knowledge bases: %w", listErr)
	}
	for i := range all {
		if all[i].Name == id {
			return &all[i], nil
		}
	}
	return nil, err
}

// List returns all knowledge bases.
func (s *KnowledgeBaseService) List(ctx context.Context) ([]domain.KnowledgeBase, error) {
	kbs, err := s.store.ListKnowledgeBases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list knowledge bases: %w", err)
	}
	return kbs, nil
}
