package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plinth-labs/retrieva/internal/adapters/driven/storage/memory"
	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbedder is a configurable embedding provider double shared by
// the service tests in this package.
type mockEmbedder struct {
	mu   sync.Mutex
	dims int

	// failSubstring marks texts that fail with failErr.
	failSubstring string
	failErr       error

	// transientBatches makes that many whole EmbedBatch calls fail
	// with a transient error before recovering.
	transientBatches int

	// flakyOnce maps texts to a number of transient failures they
	// report before succeeding.
	flakyOnce map[string]int

	// blockCh, when non-nil, blocks EmbedBatch calls after the first
	// blockAfter calls until the channel is closed or the context ends.
	blockCh    chan struct{}
	blockAfter int

	embedCalls int
	batchCalls int
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dims: 4, flakyOnce: make(map[string]int)}
}

// vectorFor derives a deterministic non-zero vector from the text.
func (m *mockEmbedder) vectorFor(text string) []float32 {
	vec := make([]float32, m.dims)
	for i, r := range text {
		vec[i%m.dims] += float32(r%13) + 1
	}
	vec[0] += float32(len(text)%7) + 1
	return vec
}

func (m *mockEmbedder) resultLocked(text string) driven.EmbeddingResult {
	if n := m.flakyOnce[text]; n > 0 {
		m.flakyOnce[text] = n - 1
		return driven.EmbeddingResult{Err: fmt.Errorf("flaky embed: %w", domain.ErrEmbeddingTransient)}
	}
	if m.failSubstring != "" && strings.Contains(text, m.failSubstring) {
		return driven.EmbeddingResult{Err: m.failErr}
	}
	return driven.EmbeddingResult{Embedding: m.vectorFor(text)}
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedCalls++
	res := m.resultLocked(text)
	return res.Embedding, res.Err
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]driven.EmbeddingResult, error) {
	m.mu.Lock()
	m.batchCalls++
	call := m.batchCalls
	block, blockAfter := m.blockCh, m.blockAfter
	if m.transientBatches > 0 {
		m.transientBatches--
		m.mu.Unlock()
		return nil, fmt.Errorf("provider overloaded: %w", domain.ErrEmbeddingTransient)
	}
	results := make([]driven.EmbeddingResult, len(texts))
	for i, text := range texts {
		results[i] = m.resultLocked(text)
	}
	m.mu.Unlock()

	if block != nil && call > blockAfter {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return results, nil
}

func (m *mockEmbedder) Dimensions() int           { return m.dims }
func (m *mockEmbedder) ModelName() string         { return "mock-embed" }
func (m *mockEmbedder) Ping(context.Context) error { return nil }
func (m *mockEmbedder) Close() error              { return nil }

func (m *mockEmbedder) embedCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

func (m *mockEmbedder) batchCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls
}

// --- Test helpers ---

func testEngineConfig() domain.EngineConfig {
	return domain.EngineConfig{
		MaxBatchItems:  2,
		MaxBatchTokens: 8000,
		Workers:        2,
		QueueLimit:     100,
		MaxAttempts:    2,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
	}
}

func pendingChunks(docID string, n int) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:              fmt.Sprintf("%s-c%d", docID, i),
			DocumentID:      docID,
			KnowledgeBaseID: "kb-test",
			Ordinal:         i,
			Content:         fmt.Sprintf("chunk content number %d", i),
			TokenCount:      4,
			EmbeddingStatus: domain.EmbeddingPending,
		}
	}
	return chunks
}

func seedPendingChunks(t *testing.T, store *memory.DocumentStore, docID string, n int) []domain.Chunk {
	t.Helper()
	chunks := pendingChunks(docID, n)
	require.NoError(t, store.SaveChunks(context.Background(), chunks))
	return chunks
}

// --- Tests ---

func TestSplitBatches_ByItemCount(t *testing.T) {
	batches := splitBatches(pendingChunks("d", 5), 2, 0)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Len(t, batches[2], 1)
}

func TestSplitBatches_ByTokenBudget(t *testing.T) {
	chunks := pendingChunks("d", 3)
	for i := range chunks {
		chunks[i].TokenCount = 60
	}

	// 60+60 exceeds a budget of 100, so every chunk rides alone.
	batches := splitBatches(chunks, 10, 100)
	require.Len(t, batches, 3)
	for _, b := range batches {
		assert.Len(t, b, 1)
	}
}

func TestSplitBatches_OversizeChunkGetsOwnBatch(t *testing.T) {
	chunks := pendingChunks("d", 2)
	chunks[0].TokenCount = 500

	batches := splitBatches(chunks, 10, 100)
	require.Len(t, batches, 2)
	assert.Equal(t, "d-c0", batches[0][0].ID)
	assert.Equal(t, "d-c1", batches[1][0].ID)
}

func TestSplitBatches_PreservesOrder(t *testing.T) {
	batches := splitBatches(pendingChunks("d", 7), 3, 0)
	var ids []string
	for _, b := range batches {
		for _, ch := range b {
			ids = append(ids, ch.ID)
		}
	}
	require.Len(t, ids, 7)
	for i, id := range ids {
		assert.Equal(t, fmt.Sprintf("d-c%d", i), id)
	}
}

func TestEmbeddingBatcher_AllSucceed(t *testing.T) {
	store := memory.NewDocumentStore()
	embedder := newMockEmbedder()
	batcher := NewEmbeddingBatcher(embedder, store, testEngineConfig())
	chunks := seedPendingChunks(t, store, "doc-1", 5)

	var mu sync.Mutex
	var committed []string
	failed, err := batcher.EmbedDocument(context.Background(), chunks, func(embedded []domain.Chunk) error {
		mu.Lock()
		defer mu.Unlock()
		for _, ch := range embedded {
			committed = append(committed, ch.ID)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Len(t, committed, 5)
	assert.Equal(t, 3, embedder.batchCallCount())
	assert.Equal(t, 0, batcher.Pending())

	// Every chunk outcome was persisted before the commit callback.
	for _, ch := range chunks {
		stored, err := store.GetChunk(context.Background(), ch.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.EmbeddingEmbedded, stored.EmbeddingStatus)
		assert.NotEmpty(t, stored.Embedding)
	}
}

func TestEmbeddingBatcher_EmptyInput(t *testing.T) {
	batcher := NewEmbeddingBatcher(newMockEmbedder(), memory.NewDocumentStore(), testEngineConfig())
	failed, err := batcher.EmbedDocument(context.Background(), nil, func([]domain.Chunk) error {
		t.Fatal("commit callback should not run")
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestEmbeddingBatcher_FlakyItemRetriedIndividually(t *testing.T) {
	store := memory.NewDocumentStore()
	embedder := newMockEmbedder()
	chunks := seedPendingChunks(t, store, "doc-1", 3)
	embedder.flakyOnce[chunks[1].Content] = 1

	batcher := NewEmbeddingBatcher(embedder, store, testEngineConfig())
	failed, err := batcher.EmbedDocument(context.Background(), chunks, func([]domain.Chunk) error { return nil })

	require.NoError(t, err)
	assert.Empty(t, failed)
	// The flaky item was re-embedded on its own after the batch call.
	assert.GreaterOrEqual(t, embedder.embedCallCount(), 1)

	stored, err := store.GetChunk(context.Background(), chunks[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingEmbedded, stored.EmbeddingStatus)
}

func TestEmbeddingBatcher_PermanentFailureMarksChunk(t *testing.T) {
	store := memory.NewDocumentStore()
	embedder := newMockEmbedder()
	chunks := seedPendingChunks(t, store, "doc-1", 3)
	embedder.failSubstring = chunks[2].Content
	embedder.failErr = fmt.Errorf("model gone: %w", domain.ErrEmbeddingPermanent)

	batcher := NewEmbeddingBatcher(embedder, store, testEngineConfig())
	failed, err := batcher.EmbedDocument(context.Background(), chunks, func([]domain.Chunk) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, []string{chunks[2].ID}, failed)

	stored, err := store.GetChunk(context.Background(), chunks[2].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingFailed, stored.EmbeddingStatus)
	assert.Nil(t, stored.Embedding)

	// Siblings were unaffected.
	sibling, err := store.GetChunk(context.Background(), chunks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingEmbedded, sibling.EmbeddingStatus)
}

func TestEmbeddingBatcher_TransientExhaustionFailsChunk(t *testing.T) {
	store := memory.NewDocumentStore()
	embedder := newMockEmbedder()
	chunks := seedPendingChunks(t, store, "doc-1", 1)
	// More consecutive failures than the retry budget allows.
	embedder.flakyOnce[chunks[0].Content] = 10

	batcher := NewEmbeddingBatcher(embedder, store, testEngineConfig())
	failed, err := batcher.EmbedDocument(context.Background(), chunks, func([]domain.Chunk) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, []string{chunks[0].ID}, failed)

	stored, err := store.GetChunk(context.Background(), chunks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingFailed, stored.EmbeddingStatus)
}

func TestEmbeddingBatcher_WholeBatchTransientRecovers(t *testing.T) {
	store := memory.NewDocumentStore()
	embedder := newMockEmbedder()
	embedder.transientBatches = 1
	chunks := seedPendingChunks(t, store, "doc-1", 2)

	batcher := NewEmbeddingBatcher(embedder, store, testEngineConfig())
	failed, err := batcher.EmbedDocument(context.Background(), chunks, func([]domain.Chunk) error { return nil })

	require.NoError(t, err)
	assert.Empty(t, failed)
	// The failed batch fell back to individual embedding.
	assert.GreaterOrEqual(t, embedder.embedCallCount(), 2)
}

func TestEmbeddingBatcher_SaturatedWhileInFlight(t *testing.T) {
	store := memory.NewDocumentStore()
	embedder := newMockEmbedder()
	embedder.blockCh = make(chan struct{})
	chunks := seedPendingChunks(t, store, "doc-1", 3)

	cfg := testEngineConfig()
	cfg.QueueLimit = 2
	batcher := NewEmbeddingBatcher(embedder, store, cfg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = batcher.EmbedDocument(context.Background(), chunks, func([]domain.Chunk) error { return nil })
	}()

	require.Eventually(t, batcher.Saturated, time.Second, time.Millisecond,
		"queue should saturate while the provider is stuck")

	close(embedder.blockCh)
	<-done

	assert.Equal(t, 0, batcher.Pending())
	assert.False(t, batcher.Saturated())
}

func TestEmbeddingBatcher_CommitErrorStopsWork(t *testing.T) {
	store := memory.NewDocumentStore()
	embedder := newMockEmbedder()
	chunks := seedPendingChunks(t, store, "doc-1", 2)

	cfg := testEngineConfig()
	cfg.MaxBatchItems = 1
	batcher := NewEmbeddingBatcher(embedder, store, cfg)

	commitErr := fmt.Errorf("index unavailable")
	_, err := batcher.EmbedDocument(context.Background(), chunks, func([]domain.Chunk) error {
		return commitErr
	})
	require.ErrorIs(t, err, commitErr)
	assert.Equal(t, 0, batcher.Pending())
}

func TestEmbeddingBatcher_ContextCancelled(t *testing.T) {
	store := memory.NewDocumentStore()
	embedder := newMockEmbedder()
	embedder.blockCh = make(chan struct{})
	embedder.blockAfter = 0 // every batch call blocks
	chunks := seedPendingChunks(t, store, "doc-1", 2)
	batcher := NewEmbeddingBatcher(embedder, store, testEngineConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := batcher.EmbedDocument(ctx, chunks, func([]domain.Chunk) error {
			t.Error("commit callback must not run after cancellation")
			return nil
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("EmbedDocument did not return after cancellation")
	}
	assert.Equal(t, 0, batcher.Pending())
}
