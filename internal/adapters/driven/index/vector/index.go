// Package vector provides an in-memory vector index with exact cosine
// search, scoped per knowledge base.
package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// kbIndex holds one knowledge base's vectors. Dimensionality is fixed by
// the first insertion and enforced on every call after that.
type kbIndex struct {
	dims    int
	vectors map[string][]float32
	norms   map[string]float64
}

// Index is a brute-force cosine similarity index. Entries live in memory;
// the document store remains the durable record and the index is rebuilt
// from it on startup or corruption.
type Index struct {
	mu  sync.RWMutex
	kbs map[string]*kbIndex
}

// New creates an empty vector index.
func New() *Index {
	return &Index{
		kbs: make(map[string]*kbIndex),
	}
}

// Add inserts vectors for a knowledge base. The whole batch is validated
// before any entry becomes visible, so a failed call inserts nothing.
func (idx *Index) Add(ctx context.Context, knowledgeBaseID string, entries []driven.VectorEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	kb, ok := idx.kbs[knowledgeBaseID]
	if !ok {
		kb = &kbIndex{
			dims:    len(entries[0].Embedding),
			vectors: make(map[string][]float32),
			norms:   make(map[string]float64),
		}
	}

	for _, e := range entries {
		if len(e.Embedding) == 0 {
			return fmt.Errorf("%w: empty embedding for chunk %s", domain.ErrInvalidInput, e.ChunkID)
		}
		if len(e.Embedding) != kb.dims {
			return fmt.Errorf("%w: knowledge base %s expects %d dimensions, got %d",
				domain.ErrDimensionMismatch, knowledgeBaseID, kb.dims, len(e.Embedding))
		}
	}

	idx.kbs[knowledgeBaseID] = kb
	for _, e := range entries {
		vec := make([]float32, len(e.Embedding))
		copy(vec, e.Embedding)
		kb.vectors[e.ChunkID] = vec
		kb.norms[e.ChunkID] = norm(vec)
	}
	return nil
}

// Delete removes vectors from a knowledge base. Unknown IDs are ignored.
func (idx *Index) Delete(ctx context.Context, knowledgeBaseID string, chunkIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	kb, ok := idx.kbs[knowledgeBaseID]
	if !ok {
		return nil
	}
	for _, id := range chunkIDs {
		delete(kb.vectors, id)
		delete(kb.norms, id)
	}
	return nil
}

// DropKnowledgeBase discards every vector for a knowledge base.
func (idx *Index) DropKnowledgeBase(ctx context.Context, knowledgeBaseID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.kbs, knowledgeBaseID)
	return nil
}

// Search scans the knowledge base for the k nearest neighbours by cosine
// similarity. Ties are broken by chunk ID for deterministic output.
func (idx *Index) Search(ctx context.Context, knowledgeBaseID string, query []float32, k int) ([]driven.VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	kb, ok := idx.kbs[knowledgeBaseID]
	if !ok {
		return nil, nil
	}
	if len(query) != kb.dims {
		return nil, fmt.Errorf("%w: knowledge base %s expects %d dimensions, got %d",
			domain.ErrDimensionMismatch, knowledgeBaseID, kb.dims, len(query))
	}

	qNorm := norm(query)
	if qNorm == 0 {
		return nil, nil
	}

	hits := make([]driven.VectorHit, 0, len(kb.vectors))
	for id, vec := range kb.vectors {
		vNorm := kb.norms[id]
		if vNorm == 0 {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    id,
			Similarity: dot(query, vec) / (qNorm * vNorm),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close releases resources.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.kbs = make(map[string]*kbIndex)
	return nil
}

// dot accumulates in float64 to limit rounding drift on long vectors.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
