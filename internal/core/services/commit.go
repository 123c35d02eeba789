package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
)

// ChunkVisibility is the set of chunks currently queryable. The commit
// unit marks a chunk only after both index writes have landed and
// unmarks it before a removal touches either index, so a reader that
// filters its hits through the set never observes a chunk present in
// one index but absent from the other, without ever blocking on a
// writer.
type ChunkVisibility struct {
	mu  sync.RWMutex
	kbs map[string]map[string]struct{}
}

// NewChunkVisibility creates an empty visibility set.
func NewChunkVisibility() *ChunkVisibility {
	return &ChunkVisibility{kbs: make(map[string]map[string]struct{})}
}

func (v *ChunkVisibility) mark(knowledgeBaseID string, ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	kb, ok := v.kbs[knowledgeBaseID]
	if !ok {
		kb = make(map[string]struct{}, len(ids))
		v.kbs[knowledgeBaseID] = kb
	}
	for _, id := range ids {
		kb[id] = struct{}{}
	}
}

func (v *ChunkVisibility) unmark(knowledgeBaseID string, ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	kb, ok := v.kbs[knowledgeBaseID]
	if !ok {
		return
	}
	for _, id := range ids {
		delete(kb, id)
	}
}

func (v *ChunkVisibility) drop(knowledgeBaseID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.kbs, knowledgeBaseID)
}

// Visible reports whether a chunk is committed to both indices.
func (v *ChunkVisibility) Visible(knowledgeBaseID, chunkID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.kbs[knowledgeBaseID][chunkID]
	return ok
}

// indexCommitter applies chunk mutations to the vector and lexical
// indices as a single unit. A chunk is retrievable only when it is
// present in both, so every insert either lands in both indices or is
// rolled back, and a delete that leaves the indices disagreeing is
// escalated as domain.ErrIndexCorruption. The visibility set gates
// readers across the window where only one index has been written.
type indexCommitter struct {
	vectorIndex  driven.VectorIndex
	lexicalIndex driven.LexicalIndex
	visibility   *ChunkVisibility
}

func newIndexCommitter(vectorIndex driven.VectorIndex, lexicalIndex driven.LexicalIndex, visibility *ChunkVisibility) *indexCommitter {
	return &indexCommitter{
		vectorIndex:  vectorIndex,
		lexicalIndex: lexicalIndex,
		visibility:   visibility,
	}
}

// commitChunks makes a batch of embedded chunks retrievable.
// The vector index is written first; if the lexical write fails the
// vector entries are removed again so the batch is visible in both
// indices or in neither. The batch is marked queryable only once both
// writes have landed.
func (c *indexCommitter) commitChunks(ctx context.Context, knowledgeBaseID string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	entries := make([]driven.VectorEntry, len(chunks))
	for i, ch := range chunks {
		entries[i] = driven.VectorEntry{ChunkID: ch.ID, Embedding: ch.Embedding}
	}

	if err := c.vectorIndex.Add(ctx, knowledgeBaseID, entries); err != nil {
		return fmt.Errorf("vector index add: %w", err)
	}

	if err := c.lexicalIndex.Index(ctx, knowledgeBaseID, chunks); err != nil {
		ids := chunkIDs(chunks)
		if rbErr := c.vectorIndex.Delete(ctx, knowledgeBaseID, ids); rbErr != nil {
			return fmt.Errorf("lexical index add failed (%v) and vector rollback failed (%v): %w",
				err, rbErr, domain.ErrIndexCorruption)
		}
		return fmt.Errorf("lexical index add: %w", err)
	}

	c.visibility.mark(knowledgeBaseID, chunkIDs(chunks))
	return nil
}

// removeChunks deletes chunk IDs from both indices. The IDs are
// unmarked before either index is touched, so readers stop seeing
// them while the two deletes are in flight. Index deletions cannot be
// rolled back, so a failure after the vector index has been modified
// is reported as corruption rather than unwound.
func (c *indexCommitter) removeChunks(ctx context.Context, knowledgeBaseID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	c.visibility.unmark(knowledgeBaseID, ids)

	if err := c.vectorIndex.Delete(ctx, knowledgeBaseID, ids); err != nil {
		return fmt.Errorf("vector index delete: %w", err)
	}
	if err := c.lexicalIndex.Delete(ctx, knowledgeBaseID, ids); err != nil {
		return fmt.Errorf("lexical index delete failed after vector delete (%v): %w",
			err, domain.ErrIndexCorruption)
	}

	return nil
}

// dropKnowledgeBase clears a knowledge base from both indices, hiding
// its chunks from readers before the first index is dropped.
func (c *indexCommitter) dropKnowledgeBase(ctx context.Context, knowledgeBaseID string) error {
	c.visibility.drop(knowledgeBaseID)

	if err := c.vectorIndex.DropKnowledgeBase(ctx, knowledgeBaseID); err != nil {
		return fmt.Errorf("vector index drop: %w", err)
	}
	if err := c.lexicalIndex.DropKnowledgeBase(ctx, knowledgeBaseID); err != nil {
		return fmt.Errorf("lexical index drop failed after vector drop (%v): %w",
			err, domain.ErrIndexCorruption)
	}
	return nil
}

func chunkIDs(chunks []domain.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
	}
	return ids
}
