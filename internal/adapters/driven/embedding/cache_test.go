package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
)

// --- Mock implementations ---

type mockProvider struct {
	embedCalls int
	batchCalls int
	lastBatch  []string
	batchErr   error
	failTexts  map[string]error
	closed     bool
}

func newMockProvider() *mockProvider {
	return &mockProvider{failTexts: map[string]error{}}
}

func vectorFor(text string) []float32 {
	return []float32{float32(len(text)), 1, 0}
}

func (m *mockProvider) Embed(_ context.Context, text string) ([]float32, error) {
	m.embedCalls++
	if err, ok := m.failTexts[text]; ok {
		return nil, err
	}
	return vectorFor(text), nil
}

func (m *mockProvider) EmbedBatch(_ context.Context, texts []string) ([]driven.EmbeddingResult, error) {
	m.batchCalls++
	m.lastBatch = append([]string(nil), texts...)
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	results := make([]driven.EmbeddingResult, len(texts))
	for i, text := range texts {
		if err, ok := m.failTexts[text]; ok {
			results[i] = driven.EmbeddingResult{Err: err}
			continue
		}
		results[i] = driven.EmbeddingResult{Embedding: vectorFor(text)}
	}
	return results, nil
}

func (m *mockProvider) Dimensions() int { return 3 }

func (m *mockProvider) ModelName() string { return "mock-model" }

func (m *mockProvider) Ping(context.Context) error { return nil }

func (m *mockProvider) Close() error {
	m.closed = true
	return nil
}

// --- Tests ---

func TestCachedService_EmbedCachesRepeatCalls(t *testing.T) {
	provider := newMockProvider()
	svc, err := NewCachedService(provider, 16)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := svc.Embed(ctx, "hello world")
	require.NoError(t, err)

	second, err := svc.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.embedCalls)
}

func TestCachedService_BatchSendsOnlyMisses(t *testing.T) {
	provider := newMockProvider()
	svc, err := NewCachedService(provider, 16)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.Embed(ctx, "cached")
	require.NoError(t, err)

	results, err := svc.EmbedBatch(ctx, []string{"cached", "fresh"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, []string{"fresh"}, provider.lastBatch)
	assert.Equal(t, vectorFor("cached"), results[0].Embedding)
	assert.Equal(t, vectorFor("fresh"), results[1].Embedding)
}

func TestCachedService_RepeatBatchSkipsProvider(t *testing.T) {
	provider := newMockProvider()
	svc, err := NewCachedService(provider, 16)
	require.NoError(t, err)

	ctx := context.Background()
	texts := []string{"one", "two", "three"}

	_, err = svc.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Equal(t, 1, provider.batchCalls)

	results, err := svc.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 1, provider.batchCalls)
	for i, text := range texts {
		assert.Equal(t, vectorFor(text), results[i].Embedding)
	}
}

func TestCachedService_FailedItemsNotCached(t *testing.T) {
	provider := newMockProvider()
	provider.failTexts["bad"] = fmt.Errorf("boom: %w", domain.ErrEmbeddingTransient)
	svc, err := NewCachedService(provider, 16)
	require.NoError(t, err)

	ctx := context.Background()
	results, err := svc.EmbedBatch(ctx, []string{"good", "bad"})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)
	require.ErrorIs(t, results[1].Err, domain.ErrEmbeddingTransient)

	// The failed text goes back to the provider; the good one is served
	// from cache.
	_, err = svc.EmbedBatch(ctx, []string{"good", "bad"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bad"}, provider.lastBatch)
}

func TestCachedService_ColdBatchErrorPropagates(t *testing.T) {
	provider := newMockProvider()
	provider.batchErr = errors.New("provider down")
	svc, err := NewCachedService(provider, 16)
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "provider down")
}

func TestCachedService_BatchErrorKeepsCacheHits(t *testing.T) {
	provider := newMockProvider()
	svc, err := NewCachedService(provider, 16)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.Embed(ctx, "warm")
	require.NoError(t, err)

	provider.batchErr = fmt.Errorf("outage: %w", domain.ErrEmbeddingTransient)
	results, err := svc.EmbedBatch(ctx, []string{"warm", "cold"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, vectorFor("warm"), results[0].Embedding)
	assert.ErrorIs(t, results[1].Err, domain.ErrEmbeddingTransient)
}

func TestCachedService_Delegates(t *testing.T) {
	provider := newMockProvider()
	svc, err := NewCachedService(provider, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, svc.Dimensions())
	assert.Equal(t, "mock-model", svc.ModelName())
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
	assert.True(t, provider.closed)
}
