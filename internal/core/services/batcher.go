package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
	"github.com/plinth-labs/retrieva/internal/logger"
	"github.com/plinth-labs/retrieva/internal/metrics"
)

// EmbeddingBatcher turns pending chunks into embedded chunks.
//
// It groups chunks into batches bounded by item count and summed token
// count, caps the number of in-flight provider calls across all
// documents, and retries transiently failed items individually with
// exponential backoff. Outcomes are persisted per chunk as they
// resolve, so a crash never loses a finished embedding.
//
// The batcher also carries the engine's backpressure signal: the count
// of admitted-but-unresolved chunks is bounded by the queue limit, and
// the coordinator refuses new ingestions while the queue is full.
type EmbeddingBatcher struct {
	embedder driven.EmbeddingService
	store    driven.DocumentStore
	cfg      domain.EngineConfig
	policy   retryPolicy

	// sem caps in-flight provider calls across all documents.
	sem chan struct{}

	// pending counts chunks admitted but not yet resolved.
	pending atomic.Int64
}

// NewEmbeddingBatcher creates a batcher with the given limits.
func NewEmbeddingBatcher(embedder driven.EmbeddingService, store driven.DocumentStore, cfg domain.EngineConfig) *EmbeddingBatcher {
	if cfg.MaxBatchItems <= 0 {
		cfg.MaxBatchItems = domain.DefaultEngineConfig().MaxBatchItems
	}
	if cfg.Workers <= 0 {
		cfg.Workers = domain.DefaultEngineConfig().Workers
	}
	return &EmbeddingBatcher{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		policy:   newRetryPolicy(cfg),
		sem:      make(chan struct{}, cfg.Workers),
	}
}

// Ready reports whether an embedding provider is wired in. The engine
// runs without one, but ingestion must be refused.
func (b *EmbeddingBatcher) Ready() bool {
	return b.embedder != nil
}

// Pending returns the number of chunks admitted but not yet resolved.
func (b *EmbeddingBatcher) Pending() int {
	return int(b.pending.Load())
}

// Saturated reports whether the pending-chunk queue is at its limit.
// New ingestions must be refused while it is.
func (b *EmbeddingBatcher) Saturated() bool {
	return b.cfg.QueueLimit > 0 && b.Pending() >= b.cfg.QueueLimit
}

// EmbedDocument embeds every chunk of one document.
//
// Chunks are split into batches and processed by the shared worker
// pool. As each batch resolves, its successfully embedded chunks are
// handed to onBatch in arrival order; calls to onBatch never overlap
// for the same document. Chunk outcomes are persisted before onBatch
// sees them.
//
// The returned slice holds the IDs of chunks that exhausted their
// retry budget. A non-nil error means the work was cut short, either
// by context cancellation or by an onBatch failure, and some chunks
// are unresolved.
func (b *EmbeddingBatcher) EmbedDocument(ctx context.Context, chunks []domain.Chunk, onBatch func(embedded []domain.Chunk) error) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	b.admit(len(chunks))

	batches := splitBatches(chunks, b.cfg.MaxBatchItems, b.cfg.MaxBatchTokens)
	logger.Debug("embedding %d chunks in %d batches", len(chunks), len(batches))

	var (
		mu     sync.Mutex
		failed []string
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, batch := range batches {
		g.Go(func() error {
			defer b.release(len(batch))

			select {
			case b.sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			embedded, batchFailed := b.processBatch(gctx, batch)
			<-b.sem

			if err := gctx.Err(); err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, batchFailed...)
			if len(embedded) > 0 {
				if err := onBatch(embedded); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	return failed, err
}

// processBatch issues one provider call and resolves every chunk in the
// batch, retrying transient per-item failures individually.
func (b *EmbeddingBatcher) processBatch(ctx context.Context, batch []domain.Chunk) (embedded []domain.Chunk, failed []string) {
	texts := make([]string, len(batch))
	for i, ch := range batch {
		texts[i] = ch.Content
	}

	metrics.RecordEmbeddingBatch()
	results, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		logger.Debug("embedding batch of %d failed: %v", len(batch), err)
		results = repeatResult(len(batch), err)
	} else if len(results) != len(batch) {
		logger.Warn("embedding provider returned %d results for %d texts", len(results), len(batch))
		results = repeatResult(len(batch), fmt.Errorf("%w: result count mismatch", domain.ErrEmbeddingTransient))
	}

	for i, ch := range batch {
		if ctx.Err() != nil {
			return embedded, failed
		}

		vec, itemErr := results[i].Embedding, results[i].Err
		if itemErr != nil && errors.Is(itemErr, domain.ErrEmbeddingTransient) {
			vec, itemErr = retryTransient(ctx, b.policy, metrics.RecordEmbeddingRetry, func() ([]float32, error) {
				return b.embedder.Embed(ctx, ch.Content)
			})
		}

		if itemErr != nil {
			if ctx.Err() != nil {
				return embedded, failed
			}
			logger.Warn("chunk %s failed to embed: %v", ch.ID, itemErr)
			if updErr := b.store.UpdateChunkEmbedding(ctx, ch.ID, nil, domain.EmbeddingFailed); updErr != nil {
				logger.Error("record chunk %s failure: %v", ch.ID, updErr)
			}
			failed = append(failed, ch.ID)
			metrics.RecordChunkFailed(ch.KnowledgeBaseID)
			continue
		}

		if updErr := b.store.UpdateChunkEmbedding(ctx, ch.ID, vec, domain.EmbeddingEmbedded); updErr != nil {
			logger.Error("persist embedding for chunk %s: %v", ch.ID, updErr)
			failed = append(failed, ch.ID)
			metrics.RecordChunkFailed(ch.KnowledgeBaseID)
			continue
		}
		ch.Embedding = vec
		ch.EmbeddingStatus = domain.EmbeddingEmbedded
		embedded = append(embedded, ch)
		metrics.RecordChunkEmbedded(ch.KnowledgeBaseID)
	}

	return embedded, failed
}

func (b *EmbeddingBatcher) admit(n int) {
	metrics.SetPendingChunks(int(b.pending.Add(int64(n))))
}

func (b *EmbeddingBatcher) release(n int) {
	metrics.SetPendingChunks(int(b.pending.Add(int64(-n))))
}

// splitBatches groups chunks into provider batches. A batch closes when
// adding the next chunk would exceed the item cap or the token budget;
// a single oversized chunk still gets a batch of its own.
func splitBatches(chunks []domain.Chunk, maxItems, maxTokens int) [][]domain.Chunk {
	var batches [][]domain.Chunk
	var current []domain.Chunk
	tokens := 0

	for _, ch := range chunks {
		full := len(current) >= maxItems ||
			(maxTokens > 0 && len(current) > 0 && tokens+ch.TokenCount > maxTokens)
		if full {
			batches = append(batches, current)
			current = nil
			tokens = 0
		}
		current = append(current, ch)
		tokens += ch.TokenCount
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func repeatResult(n int, err error) []driven.EmbeddingResult {
	results := make([]driven.EmbeddingResult, n)
	for i := range results {
		results[i] = driven.EmbeddingResult{Err: err}
	}
	return results
}
