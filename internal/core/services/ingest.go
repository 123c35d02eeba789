package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
	"github.com/plinth-labs/retrieva/internal/core/ports/driving"
	"github.com/plinth-labs/retrieva/internal/logger"
	"github.com/plinth-labs/retrieva/internal/metrics"
)

// Chunker splits normalised document text into contiguous chunks.
// Implemented by chunker.Chunker.
type Chunker interface {
	Chunk(documentID, knowledgeBaseID, text string, cfg domain.ChunkConfig) ([]domain.Chunk, error)
}

// IngestionCoordinator drives documents through the ingestion
// lifecycle: pending -> chunking -> embedding -> ready or failed.
//
// Every accepted document runs in its own pipeline goroutine; there is
// no global ingestion lock. The coordinator tracks in-flight pipelines
// so Status can report live progress and Delete can cancel work and
// compensate out chunks that were already committed to the indices.
type IngestionCoordinator struct {
	kbStore   driven.KnowledgeBaseStore
	docStore  driven.DocumentStore
	chunker   Chunker
	batcher   *EmbeddingBatcher
	committer *indexCommitter

	// mu guards active and every ingestionState inside it.
	mu     sync.RWMutex
	active map[string]*ingestionState

	rebuildMu sync.Mutex
	wg        sync.WaitGroup
}

// ingestionState is the live view of one in-flight pipeline.
type ingestionState struct {
	cancel    context.CancelFunc
	cancelled bool
	status    driving.IngestionStatus

	// committed holds chunk IDs already visible in both indices,
	// the set a cancellation must compensate out.
	committed []string
}

// NewIngestionCoordinator creates a coordinator with its dependencies.
// The visibility set must be shared with the query side so chunks
// become retrievable only once the commit unit has marked them.
func NewIngestionCoordinator(
	kbStore driven.KnowledgeBaseStore,
	docStore driven.DocumentStore,
	chunker Chunker,
	batcher *EmbeddingBatcher,
	vectorIndex driven.VectorIndex,
	lexicalIndex driven.LexicalIndex,
	visibility *ChunkVisibility,
) *IngestionCoordinator {
	return &IngestionCoordinator{
		kbStore:   kbStore,
		docStore:  docStore,
		chunker:   chunker,
		batcher:   batcher,
		committer: newIndexCommitter(vectorIndex, lexicalIndex, visibility),
		active:    make(map[string]*ingestionState),
	}
}

// Verify interface compliance at compile time.
var _ driving.Ingestor = (*IngestionCoordinator)(nil)

// Ingest validates the request, records the document and starts its
// pipeline. It returns before any chunking or embedding happens.
func (c *IngestionCoordinator) Ingest(ctx context.Context, req driving.IngestRequest) (*driving.IngestReceipt, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: document text is empty", domain.ErrInvalidInput)
	}

	kb, err := c.kbStore.GetKnowledgeBase(ctx, req.KnowledgeBaseID)
	if err != nil {
		return nil, fmt.Errorf("get knowledge base: %w", err)
	}

	cfg := kb.ChunkConfig
	if req.ChunkConfig != nil {
		cfg = *req.ChunkConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !c.batcher.Ready() {
		return nil, fmt.Errorf("%w: run 'retrieva config provider'", domain.ErrEmbeddingUnavailable)
	}

	if c.batcher.Saturated() {
		metrics.RecordBackpressure()
		return nil, fmt.Errorf("%w: %d chunks pending", domain.ErrBackpressure, c.batcher.Pending())
	}

	// Re-ingesting identical content is a no-op unless the previous
	// attempt failed, in which case the failed record is cleared and
	// the document gets a fresh run.
	hash := contentHash(req.Text)
	existing, err := c.docStore.FindDocumentByHash(ctx, kb.ID, hash)
	switch {
	case err == nil && existing.Status != domain.DocumentFailed:
		logger.Debug("document with identical content already ingested as %s", existing.ID)
		return &driving.IngestReceipt{IngestionID: existing.ID, Status: existing.Status}, nil
	case err == nil:
		if err := c.Delete(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("reset failed document: %w", err)
		}
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("find document by hash: %w", err)
	}

	now := time.Now()
	doc := &domain.Document{
		ID:              uuid.New().String(),
		KnowledgeBaseID: kb.ID,
		Title:           req.Title,
		ContentHash:     hash,
		Status:          domain.DocumentPending,
		ChunkConfig:     cfg,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := c.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	// The pipeline outlives the request, so it runs on its own context.
	pipelineCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.active[doc.ID] = &ingestionState{
		cancel: cancel,
		status: driving.IngestionStatus{DocumentID: doc.ID, Status: domain.DocumentPending},
	}
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runPipeline(pipelineCtx, kb, doc, req.Text)

	logger.Info("accepted document %s into knowledge base %s", doc.ID, kb.ID)
	return &driving.IngestReceipt{IngestionID: doc.ID, Status: domain.DocumentPending}, nil
}

// runPipeline drives one document from raw text to its terminal state.
func (c *IngestionCoordinator) runPipeline(ctx context.Context, kb *domain.KnowledgeBase, doc *domain.Document, text string) {
	defer c.wg.Done()

	// 1. Chunk the document text.
	c.setPhase(ctx, doc, domain.DocumentChunking)
	chunks, err := c.chunker.Chunk(doc.ID, kb.ID, text, doc.ChunkConfig)
	if err != nil {
		c.failDocument(doc, fmt.Errorf("chunk document: %w", err))
		return
	}
	if ctx.Err() != nil || c.isCancelled(doc.ID) {
		c.compensate(kb.ID, doc)
		return
	}

	// 2. Persist the full chunk set atomically before embedding starts.
	if err := c.docStore.SaveChunks(ctx, chunks); err != nil {
		c.failDocument(doc, fmt.Errorf("save chunks: %w", err))
		return
	}
	c.setTotalChunks(doc.ID, len(chunks))

	// 3. Embed, committing each resolved batch to both indices.
	c.setPhase(ctx, doc, domain.DocumentEmbedding)
	failed, err := c.batcher.EmbedDocument(ctx, chunks, func(embedded []domain.Chunk) error {
		if c.isCancelled(doc.ID) {
			return domain.ErrIngestionCancelled
		}
		if err := c.committer.commitChunks(ctx, kb.ID, embedded); err != nil {
			return err
		}
		c.markCommitted(doc.ID, chunkIDs(embedded))
		return nil
	})

	switch {
	case errors.Is(err, domain.ErrIngestionCancelled), ctx.Err() != nil, c.isCancelled(doc.ID):
		c.compensate(kb.ID, doc)
		return
	case errors.Is(err, domain.ErrIndexCorruption):
		c.failDocument(doc, err)
		c.rebuildAfterCorruption(kb.ID)
		return
	case err != nil:
		c.rollbackCommitted(kb.ID, doc.ID)
		c.failDocument(doc, fmt.Errorf("embed document: %w", err))
		return
	}

	// 4. Resolve the terminal state from the failure policy.
	c.finishDocument(kb, doc, len(chunks), failed)
}

// finishDocument closes out a pipeline whose embedding phase ran to
// completion. Under the strict policy any exhausted chunk fails the
// whole document; its committed siblings stay in both indices and
// remain retrievable until the document is deleted. Under the partial
// policy the document reaches ready with the failure count recorded.
func (c *IngestionCoordinator) finishDocument(kb *domain.KnowledgeBase, doc *domain.Document, total int, failed []string) {
	doc.ChunkCount = total
	doc.FailedChunks = len(failed)

	if len(failed) > 0 && kb.FailurePolicy == domain.PolicyStrict {
		logger.Warn("document %s: %d of %d chunks failed to embed under strict policy", doc.ID, len(failed), total)
		c.failDocument(doc, nil)
		return
	}

	c.setPhase(context.Background(), doc, domain.DocumentReady)
	if !c.tryFinish(doc.ID) {
		c.compensate(kb.ID, doc)
		return
	}
	metrics.RecordDocumentIngested(kb.ID)
	logger.Info("document %s ready: %d chunks indexed, %d failed", doc.ID, total-len(failed), len(failed))
}

// failDocument records a terminal failure. The document record is kept
// so the failure is observable through Status.
func (c *IngestionCoordinator) failDocument(doc *domain.Document, reason error) {
	if reason != nil {
		logger.Error("document %s failed: %v", doc.ID, reason)
	}
	c.setPhase(context.Background(), doc, domain.DocumentFailed)
	if !c.tryFinish(doc.ID) {
		c.compensate(doc.KnowledgeBaseID, doc)
		return
	}
	metrics.RecordDocumentFailed(doc.KnowledgeBaseID)
}

// compensate unwinds a cancelled ingestion: every chunk already
// committed is removed from both indices, then the document record and
// its chunks are deleted. Runs on a fresh context because the pipeline
// context is cancelled by the time this is called.
func (c *IngestionCoordinator) compensate(knowledgeBaseID string, doc *domain.Document) {
	ctx := context.Background()

	corrupt := false
	if err := c.committer.removeChunks(ctx, knowledgeBaseID, c.takeCommitted(doc.ID)); err != nil {
		logger.Error("compensate document %s: %v", doc.ID, err)
		corrupt = errors.Is(err, domain.ErrIndexCorruption)
	}
	if err := c.docStore.DeleteDocument(ctx, doc.ID); err != nil {
		logger.Error("delete cancelled document %s: %v", doc.ID, err)
	}
	metrics.RecordDocumentDeleted(knowledgeBaseID)
	logger.Info("cancelled ingestion of document %s compensated", doc.ID)

	if corrupt {
		c.rebuildAfterCorruption(knowledgeBaseID)
	}
}

// rollbackCommitted removes an aborted pipeline's already-committed
// chunks from both indices. The chunk records stay in the store.
func (c *IngestionCoordinator) rollbackCommitted(knowledgeBaseID, documentID string) {
	committed := c.takeCommittedKeepState(documentID)
	if len(committed) == 0 {
		return
	}
	if err := c.committer.removeChunks(context.Background(), knowledgeBaseID, committed); err != nil {
		logger.Error("roll back committed chunks for document %s: %v", documentID, err)
		if errors.Is(err, domain.ErrIndexCorruption) {
			c.rebuildAfterCorruption(knowledgeBaseID)
		}
	}
}

// Delete removes a document and everything derived from it. Deleting
// an unknown ID succeeds. When the document is still being ingested the
// pipeline is cancelled instead and compensates itself asynchronously.
func (c *IngestionCoordinator) Delete(ctx context.Context, documentID string) error {
	c.mu.Lock()
	if st, ok := c.active[documentID]; ok {
		st.cancelled = true
		st.cancel()
		c.mu.Unlock()
		logger.Info("cancelling in-flight ingestion %s", documentID)
		return nil
	}
	c.mu.Unlock()

	doc, err := c.docStore.GetDocument(ctx, documentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	chunks, err := c.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get chunks: %w", err)
	}

	// Indices first, then the store: a chunk must never be queryable
	// after its backing record is gone.
	corrupt := false
	if err := c.committer.removeChunks(ctx, doc.KnowledgeBaseID, chunkIDs(chunks)); err != nil {
		if !errors.Is(err, domain.ErrIndexCorruption) {
			return fmt.Errorf("remove chunks from indices: %w", err)
		}
		logger.Error("index corruption deleting document %s: %v", documentID, err)
		corrupt = true
	}

	if err := c.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	metrics.RecordDocumentDeleted(doc.KnowledgeBaseID)
	logger.Info("deleted document %s (%d chunks)", documentID, len(chunks))

	if corrupt {
		c.rebuildAfterCorruption(doc.KnowledgeBaseID)
	}
	return nil
}

// Status reports live progress for in-flight documents and falls back
// to the store for settled ones.
func (c *IngestionCoordinator) Status(ctx context.Context, documentID string) (*driving.IngestionStatus, error) {
	c.mu.RLock()
	if st, ok := c.active[documentID]; ok {
		snapshot := st.status
		c.mu.RUnlock()
		return &snapshot, nil
	}
	c.mu.RUnlock()

	doc, err := c.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	chunks, err := c.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}

	status := &driving.IngestionStatus{
		DocumentID:  doc.ID,
		Status:      doc.Status,
		TotalChunks: len(chunks),
	}
	for _, ch := range chunks {
		switch ch.EmbeddingStatus {
		case domain.EmbeddingEmbedded:
			status.EmbeddedChunks++
		case domain.EmbeddingFailed:
			status.FailedChunks++
		}
	}
	return status, nil
}

// Wait blocks until every in-flight pipeline has finished. Intended
// for shutdown and tests.
func (c *IngestionCoordinator) Wait() {
	c.wg.Wait()
}

// --- pipeline state helpers ---

// setPhase persists a lifecycle transition and mirrors it into the
// live status.
func (c *IngestionCoordinator) setPhase(ctx context.Context, doc *domain.Document, status domain.DocumentStatus) {
	doc.Status = status
	doc.UpdatedAt = time.Now()
	if err := c.docStore.SaveDocument(ctx, doc); err != nil {
		logger.Error("persist status %s for document %s: %v", status, doc.ID, err)
	}

	c.mu.Lock()
	if st, ok := c.active[doc.ID]; ok {
		st.status.Status = status
	}
	c.mu.Unlock()
}

func (c *IngestionCoordinator) setTotalChunks(documentID string, n int) {
	c.mu.Lock()
	if st, ok := c.active[documentID]; ok {
		st.status.TotalChunks = n
	}
	c.mu.Unlock()
}

func (c *IngestionCoordinator) markCommitted(documentID string, ids []string) {
	c.mu.Lock()
	if st, ok := c.active[documentID]; ok {
		st.committed = append(st.committed, ids...)
		st.status.EmbeddedChunks += len(ids)
	}
	c.mu.Unlock()
}

func (c *IngestionCoordinator) isCancelled(documentID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.active[documentID]
	return ok && st.cancelled
}

// tryFinish claims the right to settle the document. It returns false
// when a cancellation won the race, in which case the caller must
// compensate instead.
func (c *IngestionCoordinator) tryFinish(documentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.active[documentID]; ok && st.cancelled {
		return false
	}
	delete(c.active, documentID)
	return true
}

// takeCommitted removes the pipeline state and returns the chunk IDs
// that need compensating.
func (c *IngestionCoordinator) takeCommitted(documentID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.active[documentID]
	if !ok {
		return nil
	}
	delete(c.active, documentID)
	return st.committed
}

// takeCommittedKeepState returns the committed chunk IDs but leaves the
// pipeline state in place for the terminal transition that follows.
func (c *IngestionCoordinator) takeCommittedKeepState(documentID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.active[documentID]
	if !ok {
		return nil
	}
	committed := st.committed
	st.committed = nil
	st.status.EmbeddedChunks = 0
	return committed
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
