// Package lexical provides an in-memory inverted index with BM25 ranking,
// scoped per knowledge base.
package lexical

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.LexicalIndex = (*Index)(nil)

// BM25 parameters. Standard values work well for chunk-sized documents.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// kbPostings holds one knowledge base's inverted index.
type kbPostings struct {
	// postings maps term -> chunk ID -> term frequency.
	postings map[string]map[string]int

	// chunkTerms maps chunk ID -> distinct terms, for removal.
	chunkTerms map[string][]string

	// lengths maps chunk ID -> token count for length normalisation.
	lengths map[string]int

	totalLen int
}

// Index is an inverted index over chunk content. Like the vector index it
// is derived state, rebuilt from the document store when needed.
type Index struct {
	mu  sync.RWMutex
	kbs map[string]*kbPostings
}

// New creates an empty lexical index.
func New() *Index {
	return &Index{
		kbs: make(map[string]*kbPostings),
	}
}

// Index adds or updates chunks in the postings. Re-indexing a chunk ID
// replaces its previous postings.
func (idx *Index) Index(ctx context.Context, knowledgeBaseID string, chunks []domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	kb, ok := idx.kbs[knowledgeBaseID]
	if !ok {
		kb = &kbPostings{
			postings:   make(map[string]map[string]int),
			chunkTerms: make(map[string][]string),
			lengths:    make(map[string]int),
		}
		idx.kbs[knowledgeBaseID] = kb
	}

	for _, chunk := range chunks {
		kb.remove(chunk.ID)

		terms := Tokenize(chunk.Content)
		freqs := make(map[string]int, len(terms))
		for _, term := range terms {
			freqs[term]++
		}

		distinct := make([]string, 0, len(freqs))
		for term, tf := range freqs {
			posting, ok := kb.postings[term]
			if !ok {
				posting = make(map[string]int)
				kb.postings[term] = posting
			}
			posting[chunk.ID] = tf
			distinct = append(distinct, term)
		}
		kb.chunkTerms[chunk.ID] = distinct
		kb.lengths[chunk.ID] = len(terms)
		kb.totalLen += len(terms)
	}
	return nil
}

// Delete removes chunks from the postings. Unknown IDs are ignored.
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
		kb.remove(id)
	}
	return nil
}

// DropKnowledgeBase discards every posting for a knowledge base.
func (idx *Index) DropKnowledgeBase(ctx context.Context, knowledgeBaseID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.kbs, knowledgeBaseID)
	return nil
}

// Search scores postings for the query terms with BM25 and returns the
// top matches. Ties are broken by chunk ID for deterministic output.
func (idx *Index) Search(ctx context.Context, knowledgeBaseID string, query string, limit int) ([]driven.LexicalHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	kb, ok := idx.kbs[knowledgeBaseID]
	if !ok || len(kb.lengths) == 0 {
		return nil, nil
	}

	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	n := float64(len(kb.lengths))
	avgLen := float64(kb.totalLen) / n

	scores := make(map[string]float64)
	for _, term := range terms {
		posting, ok := kb.postings[term]
		if !ok {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for chunkID, tf := range posting {
			length := float64(kb.lengths[chunkID])
			tfNorm := float64(tf) * (bm25K1 + 1) /
				(float64(tf) + bm25K1*(1-bm25B+bm25B*length/avgLen))
			scores[chunkID] += idf * tfNorm
		}
	}

	hits := make([]driven.LexicalHit, 0, len(scores))
	for chunkID, score := range scores {
		hits = append(hits, driven.LexicalHit{ChunkID: chunkID, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Close releases resources.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.kbs = make(map[string]*kbPostings)
	return nil
}

// remove drops one chunk from the postings. Caller holds the write lock.
func (kb *kbPostings) remove(chunkID string) {
	terms, ok := kb.chunkTerms[chunkID]
	if !ok {
		return
	}
	for _, term := range terms {
		posting := kb.postings[term]
		delete(posting, chunkID)
		if len(posting) == 0 {
			delete(kb.postings, term)
		}
	}
	kb.totalLen -= kb.lengths[chunkID]
	delete(kb.lengths, chunkID)
	delete(kb.chunkTerms, chunkID)
}

// Tokenize lowercases text and splits it into alphanumeric terms.
// Index and query sides share it so scoring stays symmetric.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
