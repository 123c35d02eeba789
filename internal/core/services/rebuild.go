package services

import (
	"context"
	"fmt"

	"github.com/plinth-labs/retrieva/internal/logger"
	"github.com/plinth-labs/retrieva/internal/metrics"
)

// rebuildBatchSize is the number of chunks recommitted per unit during
// an index rebuild.
const rebuildBatchSize = 256

// WarmStart loads every knowledge base's embedded chunks into the
// indices. The in-memory indices start each process empty; this runs
// once before the engine serves queries.
func (c *IngestionCoordinator) WarmStart(ctx context.Context) error {
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()

	kbs, err := c.kbStore.ListKnowledgeBases(ctx)
	if err != nil {
		return fmt.Errorf("list knowledge bases: %w", err)
	}

	for i := range kbs {
		n, err := c.reloadKnowledgeBase(ctx, kbs[i].ID)
		if err != nil {
			return fmt.Errorf("warm knowledge base %s: %w", kbs[i].ID, err)
		}
		logger.Debug("loaded %d chunks for knowledge base %s", n, kbs[i].ID)
	}
	return nil
}

// RebuildKnowledgeBase reconstructs both indices for a knowledge base
// from the persisted chunk records. This is the recovery path for index
// corruption: the store is the system of record and the indices are
// derived state, so a disagreeing pair is dropped and rebuilt rather
// than served.
func (c *IngestionCoordinator) RebuildKnowledgeBase(ctx context.Context, knowledgeBaseID string) error {
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()

	logger.Warn("rebuilding indices for knowledge base %s", knowledgeBaseID)

	n, err := c.reloadKnowledgeBase(ctx, knowledgeBaseID)
	if err != nil {
		return err
	}

	metrics.RecordIndexRebuild(knowledgeBaseID)
	logger.Info("rebuilt indices for knowledge base %s: %d chunks", knowledgeBaseID, n)
	return nil
}

// reloadKnowledgeBase drops one knowledge base from both indices and
// recommits its embedded chunks from the store. Callers hold rebuildMu.
func (c *IngestionCoordinator) reloadKnowledgeBase(ctx context.Context, knowledgeBaseID string) (int, error) {
	if err := c.committer.dropKnowledgeBase(ctx, knowledgeBaseID); err != nil {
		return 0, fmt.Errorf("clear indices: %w", err)
	}

	chunks, err := c.docStore.ListEmbeddedChunks(ctx, knowledgeBaseID)
	if err != nil {
		return 0, fmt.Errorf("list embedded chunks: %w", err)
	}

	for start := 0; start < len(chunks); start += rebuildBatchSize {
		end := min(start+rebuildBatchSize, len(chunks))
		if err := c.committer.commitChunks(ctx, knowledgeBaseID, chunks[start:end]); err != nil {
			return 0, fmt.Errorf("recommit chunks: %w", err)
		}
	}
	return len(chunks), nil
}

// rebuildAfterCorruption runs a rebuild on a fresh context, logging
// rather than propagating failure. Callers invoke it after observing
// domain.ErrIndexCorruption so the knowledge base heals in place.
func (c *IngestionCoordinator) rebuildAfterCorruption(knowledgeBaseID string) {
	if err := c.RebuildKnowledgeBase(context.Background(), knowledgeBaseID); err != nil {
		logger.Error("index rebuild for knowledge base %s failed: %v", knowledgeBaseID, err)
	}
}
