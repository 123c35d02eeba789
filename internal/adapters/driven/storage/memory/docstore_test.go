package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plinth-labs/retrieva/internal/core/domain"
)

func TestNewDocumentStore(t *testing.T) {
	store := NewDocumentStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.documents)
	assert.NotNil(t, store.chunks)
}

func TestDocumentStore_SaveDocument_Success(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	now := time.Now()
	doc := &domain.Document{
		ID:              "doc-1",
		KnowledgeBaseID: "kb-1",
		Title:           "Release Notes",
		ContentHash:     "abc123",
		Status:          domain.DocumentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := store.SaveDocument(ctx, doc)
	require.NoError(t, err)

	saved, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", saved.ID)
	assert.Equal(t, "kb-1", saved.KnowledgeBaseID)
	assert.Equal(t, "Release Notes", saved.Title)
	assert.Equal(t, domain.DocumentPending, saved.Status)
}

func TestDocumentStore_SaveDocument_Update(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	doc := &domain.Document{ID: "doc-1", KnowledgeBaseID: "kb-1", Status: domain.DocumentPending}
	require.NoError(t, store.SaveDocument(ctx, doc))

	doc.Status = domain.DocumentReady
	doc.ChunkCount = 4
	require.NoError(t, store.SaveDocument(ctx, doc))

	saved, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentReady, saved.Status)
	assert.Equal(t, 4, saved.ChunkCount)
}

func TestDocumentStore_GetDocument_NotFound(t *testing.T) {
	store := NewDocumentStore()

	_, err := store.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_FindDocumentByHash(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, &domain.Document{
		ID: "doc-1", KnowledgeBaseID: "kb-1", ContentHash: "hash-a",
	}))
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{
		ID: "doc-2", KnowledgeBaseID: "kb-2", ContentHash: "hash-a",
	}))

	found, err := store.FindDocumentByHash(ctx, "kb-1", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", found.ID)

	// Same hash in a different knowledge base is a different document.
	found, err = store.FindDocumentByHash(ctx, "kb-2", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, "doc-2", found.ID)

	_, err = store.FindDocumentByHash(ctx, "kb-1", "hash-b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_SaveChunks_OrderedByOrdinal(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	chunks := []domain.Chunk{
		{ID: "c-2", DocumentID: "doc-1", Ordinal: 2},
		{ID: "c-0", DocumentID: "doc-1", Ordinal: 0},
		{ID: "c-1", DocumentID: "doc-1", Ordinal: 1},
	}
	require.NoError(t, store.SaveChunks(ctx, chunks))

	got, err := store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, ch := range got {
		assert.Equal(t, i, ch.Ordinal)
	}
}

func TestDocumentStore_SaveChunks_RejectsMixedDocuments(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	err := store.SaveChunks(ctx, []domain.Chunk{
		{ID: "c-0", DocumentID: "doc-1", Ordinal: 0},
		{ID: "c-1", DocumentID: "doc-2", Ordinal: 1},
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	// Nothing was written.
	got, err := store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDocumentStore_SaveChunks_Empty(t *testing.T) {
	store := NewDocumentStore()
	assert.NoError(t, store.SaveChunks(context.Background(), nil))
}

func TestDocumentStore_UpdateChunkEmbedding(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.SaveChunks(ctx, []domain.Chunk{
		{ID: "c-0", DocumentID: "doc-1", Ordinal: 0, EmbeddingStatus: domain.EmbeddingPending},
	}))

	vec := []float32{0.1, 0.2, 0.3}
	require.NoError(t, store.UpdateChunkEmbedding(ctx, "c-0", vec, domain.EmbeddingEmbedded))

	chunk, err := store.GetChunk(ctx, "c-0")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingEmbedded, chunk.EmbeddingStatus)
	assert.Equal(t, vec, chunk.Embedding)
}

func TestDocumentStore_UpdateChunkEmbedding_Failed(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.SaveChunks(ctx, []domain.Chunk{
		{ID: "c-0", DocumentID: "doc-1", Ordinal: 0, EmbeddingStatus: domain.EmbeddingPending},
	}))
	require.NoError(t, store.UpdateChunkEmbedding(ctx, "c-0", nil, domain.EmbeddingFailed))

	chunk, err := store.GetChunk(ctx, "c-0")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingFailed, chunk.EmbeddingStatus)
	assert.Nil(t, chunk.Embedding)
}

func TestDocumentStore_UpdateChunkEmbedding_NotFound(t *testing.T) {
	store := NewDocumentStore()
	err := store.UpdateChunkEmbedding(context.Background(), "missing", nil, domain.EmbeddingEmbedded)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_GetChunk_NotFound(t *testing.T) {
	store := NewDocumentStore()
	_, err := store.GetChunk(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_ListEmbeddedChunks(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, &domain.Document{
		ID: "doc-a", KnowledgeBaseID: "kb-1", Status: domain.DocumentReady,
	}))
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{
		ID: "doc-b", KnowledgeBaseID: "kb-1", Status: domain.DocumentFailed,
	}))
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{
		ID: "doc-c", KnowledgeBaseID: "kb-2", Status: domain.DocumentReady,
	}))

	require.NoError(t, store.SaveChunks(ctx, []domain.Chunk{
		{ID: "a-0", DocumentID: "doc-a", Ordinal: 0, EmbeddingStatus: domain.EmbeddingEmbedded},
		{ID: "a-1", DocumentID: "doc-a", Ordinal: 1, EmbeddingStatus: domain.EmbeddingFailed},
		{ID: "a-2", DocumentID: "doc-a", Ordinal: 2, EmbeddingStatus: domain.EmbeddingEmbedded},
	}))
	require.NoError(t, store.SaveChunks(ctx, []domain.Chunk{
		{ID: "b-0", DocumentID: "doc-b", Ordinal: 0, EmbeddingStatus: domain.EmbeddingEmbedded},
	}))
	require.NoError(t, store.SaveChunks(ctx, []domain.Chunk{
		{ID: "c-0", DocumentID: "doc-c", Ordinal: 0, EmbeddingStatus: domain.EmbeddingEmbedded},
	}))

	got, err := store.ListEmbeddedChunks(ctx, "kb-1")
	require.NoError(t, err)

	// Unembedded chunks and the other knowledge base are excluded.
	// doc-b's failed status does not hide its embedded chunk.
	require.Len(t, got, 3)
	assert.Equal(t, "a-0", got[0].ID)
	assert.Equal(t, "a-2", got[1].ID)
	assert.Equal(t, "b-0", got[2].ID)
}

func TestDocumentStore_DeleteDocument(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: "doc-1", KnowledgeBaseID: "kb-1"}))
	require.NoError(t, store.SaveChunks(ctx, []domain.Chunk{
		{ID: "c-0", DocumentID: "doc-1", Ordinal: 0},
	}))

	require.NoError(t, store.DeleteDocument(ctx, "doc-1"))

	_, err := store.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	chunks, err := store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	// Deleting again is a no-op.
	assert.NoError(t, store.DeleteDocument(ctx, "doc-1"))
}

func TestDocumentStore_ListDocuments_ScopedToKnowledgeBase(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.SaveDocument(ctx, &domain.Document{
			ID:              fmt.Sprintf("doc-%d", i),
			KnowledgeBaseID: "kb-1",
			CreatedAt:       base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{
		ID: "other", KnowledgeBaseID: "kb-2", CreatedAt: base,
	}))

	docs, err := store.ListDocuments(ctx, "kb-1")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "doc-0", docs[0].ID)
	assert.Equal(t, "doc-2", docs[2].ID)
}

func TestDocumentStore_ConcurrentAccess(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("doc-%d", n)
			_ = store.SaveDocument(ctx, &domain.Document{ID: id, KnowledgeBaseID: "kb-1"})
			_ = store.SaveChunks(ctx, []domain.Chunk{{ID: id + "-c0", DocumentID: id, Ordinal: 0}})
			_, _ = store.GetChunks(ctx, id)
			_, _ = store.ListDocuments(ctx, "kb-1")
		}(i)
	}
	wg.Wait()

	docs, err := store.ListDocuments(ctx, "kb-1")
	require.NoError(t, err)
	assert.Len(t, docs, 10)
}
