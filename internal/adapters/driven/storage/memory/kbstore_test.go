package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plinth-labs/retrieva/internal/core/domain"
)

func TestKnowledgeBaseStore_SaveAndGet(t *testing.T) {
	store := NewKnowledgeBaseStore()
	ctx := context.Background()

	kb := &domain.KnowledgeBase{
		ID:               "kb-1",
		Name:             "docs",
		ChunkConfig:      domain.ChunkConfig{ChunkSize: 100, ChunkOverlap: 20},
		EmbeddingModelID: "hash-256",
		HybridWeight:     0.7,
		FailurePolicy:    domain.PolicyStrict,
	}
	require.NoError(t, store.SaveKnowledgeBase(ctx, kb))

	got, err := store.GetKnowledgeBase(ctx, "kb-1")
	require.NoError(t, err)
	assert.Equal(t, "docs", got.Name)
	assert.Equal(t, 0.7, got.HybridWeight)
	assert.Equal(t, domain.PolicyStrict, got.FailurePolicy)
}

func TestKnowledgeBaseStore_Get_NotFound(t *testing.T) {
	store := NewKnowledgeBaseStore()
	_, err := store.GetKnowledgeBase(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKnowledgeBaseStore_Update(t *testing.T) {
	store := NewKnowledgeBaseStore()
	ctx := context.Background()

	kb := &domain.KnowledgeBase{ID: "kb-1", Name: "docs", HybridWeight: 0.5}
	require.NoError(t, store.SaveKnowledgeBase(ctx, kb))

	kb.HybridWeight = 0.9
	require.NoError(t, store.SaveKnowledgeBase(ctx, kb))

	got, err := store.GetKnowledgeBase(ctx, "kb-1")
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.HybridWeight)
}

func TestKnowledgeBaseStore_List_SortedByName(t *testing.T) {
	store := NewKnowledgeBaseStore()
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, store.SaveKnowledgeBase(ctx, &domain.KnowledgeBase{ID: "kb-" + name, Name: name}))
	}

	kbs, err := store.ListKnowledgeBases(ctx)
	require.NoError(t, err)
	require.Len(t, kbs, 3)
	assert.Equal(t, "alpha", kbs[0].Name)
	assert.Equal(t, "mid", kbs[1].Name)
	assert.Equal(t, "zeta", kbs[2].Name)
}

func TestKnowledgeBaseStore_List_Empty(t *testing.T) {
	store := NewKnowledgeBaseStore()
	kbs, err := store.ListKnowledgeBases(context.Background())
	require.NoError(t, err)
	assert.Empty(t, kbs)
}
