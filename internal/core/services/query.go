package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
	"github.com/plinth-labs/retrieva/internal/core/ports/driving"
	"github.com/plinth-labs/retrieva/internal/logger"
	"github.com/plinth-labs/retrieva/internal/metrics"
)

// candidateMultiplier is how many candidates each index contributes
// relative to the requested result count.
const candidateMultiplier = 4

// QueryService implements hybrid retrieval: both indices are consulted
// in parallel, their scores normalised and blended, and the winners
// resolved into citable spans.
type QueryService struct {
	kbStore      driven.KnowledgeBaseStore
	docStore     driven.DocumentStore
	vectorIndex  driven.VectorIndex
	lexicalIndex driven.LexicalIndex
	embedder     driven.EmbeddingService
	visibility   *ChunkVisibility
}

// NewQueryService creates a query service with its dependencies.
// The embedder may be nil, in which case vector retrieval degrades to
// lexical-only results. The visibility set is shared with the
// ingestion side; hits not marked in it are discarded before ranking
// so a half-committed chunk never surfaces.
func NewQueryService(
	kbStore driven.KnowledgeBaseStore,
	docStore driven.DocumentStore,
	vectorIndex driven.VectorIndex,
	lexicalIndex driven.LexicalIndex,
	embedder driven.EmbeddingService,
	visibility *ChunkVisibility,
) *QueryService {
	return &QueryService{
		kbStore:      kbStore,
		docStore:     docStore,
		vectorIndex:  vectorIndex,
		lexicalIndex: lexicalIndex,
		embedder:     embedder,
		visibility:   visibility,
	}
}

// Verify interface compliance at compile time.
var _ driving.Querier = (*QueryService)(nil)

// Query runs hybrid retrieval against one knowledge base.
func (s *QueryService) Query(ctx context.Context, knowledgeBaseID, query string, opts domain.QueryOptions) (*domain.QueryResponse, error) {
	started := time.Now()

	if strings.TrimSpace(query) == "" {
		return &domain.QueryResponse{}, nil
	}

	kb, err := s.kbStore.GetKnowledgeBase(ctx, knowledgeBaseID)
	if err != nil {
		return nil, fmt.Errorf("get knowledge base: %w", err)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	alpha := kb.HybridWeight
	if opts.Alpha != nil {
		alpha = *opts.Alpha
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("%w: alpha %.2f must be in [0,1]", domain.ErrInvalidInput, alpha)
	}

	// Each index is over-fetched so the blend has enough candidates to
	// fill topK even when the two rankings disagree.
	fetch := topK * candidateMultiplier

	// A blend weight of exactly 0 or 1 short-circuits to a single
	// index so the pure ranking comes through untouched.
	runVector := alpha > 0
	runLexical := alpha < 1

	var (
		wg      sync.WaitGroup
		vecHits []driven.VectorHit
		vecErr  error
		lexHits []driven.LexicalHit
		lexErr  error
	)
	if runVector {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vecHits, vecErr = s.vectorSearch(ctx, kb.ID, query, fetch)
		}()
	}
	if runLexical {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lexHits, lexErr = s.lexicalIndex.Search(ctx, kb.ID, query, fetch)
		}()
	}
	wg.Wait()

	// One side failing degrades the response rather than killing it;
	// losing both, or the only side requested, is a hard failure.
	partial := false
	if vecErr != nil {
		if !runLexical || lexErr != nil {
			return nil, fmt.Errorf("vector search: %w", vecErr)
		}
		logger.Warn("vector search degraded to lexical only: %v", vecErr)
		partial = true
	}
	if lexErr != nil {
		if !runVector || vecErr != nil {
			return nil, fmt.Errorf("lexical search: %w", lexErr)
		}
		logger.Warn("lexical search degraded to vector only: %v", lexErr)
		partial = true
	}

	// Hits for chunks the committer has not marked queryable are
	// discarded before blending so a half-committed batch neither
	// surfaces nor skews the score normalisation.
	vecHits = s.visibleVectorHits(kb.ID, vecHits)
	lexHits = s.visibleLexicalHits(kb.ID, lexHits)

	candidates := blendScores(vecHits, lexHits, alpha)
	logger.Debug("query on %s: %d vector hits, %d lexical hits, %d candidates",
		kb.ID, len(vecHits), len(lexHits), len(candidates))

	results, dropped, err := s.resolveCitations(ctx, kb, candidates, topK)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		logger.Debug("dropped %d stale candidates during citation resolution", dropped)
		partial = true
	}

	if partial {
		metrics.RecordPartialResult()
	}
	metrics.ObserveQueryDuration(kb.ID, time.Since(started).Seconds())

	return &domain.QueryResponse{Results: results, Partial: partial}, nil
}

// vectorSearch embeds the query and runs nearest-neighbour retrieval.
func (s *QueryService) vectorSearch(ctx context.Context, knowledgeBaseID, query string, k int) ([]driven.VectorHit, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.vectorIndex.Search(ctx, knowledgeBaseID, vec, k)
}

// visibleVectorHits keeps only hits whose chunks are marked queryable.
func (s *QueryService) visibleVectorHits(knowledgeBaseID string, hits []driven.VectorHit) []driven.VectorHit {
	kept := hits[:0]
	for _, h := range hits {
		if s.visibility.Visible(knowledgeBaseID, h.ChunkID) {
			kept = append(kept, h)
		}
	}
	return kept
}

// visibleLexicalHits keeps only hits whose chunks are marked queryable.
func (s *QueryService) visibleLexicalHits(knowledgeBaseID string, hits []driven.LexicalHit) []driven.LexicalHit {
	kept := hits[:0]
	for _, h := range hits {
		if s.visibility.Visible(knowledgeBaseID, h.ChunkID) {
			kept = append(kept, h)
		}
	}
	return kept
}

// scoredCandidate carries one chunk's blended score into citation
// resolution.
type scoredCandidate struct {
	chunkID string
	score   float64
}

// blendScores normalises each hit set to [0,1] with min-max scaling
// and combines them as alpha*vector + (1-alpha)*lexical. A chunk
// absent from one set contributes 0 from that side; a chunk appearing
// twice within a set keeps its highest raw score.
func blendScores(vecHits []driven.VectorHit, lexHits []driven.LexicalHit, alpha float64) []scoredCandidate {
	vecRaw := make(map[string]float64, len(vecHits))
	for _, h := range vecHits {
		if cur, ok := vecRaw[h.ChunkID]; !ok || h.Similarity > cur {
			vecRaw[h.ChunkID] = h.Similarity
		}
	}
	lexRaw := make(map[string]float64, len(lexHits))
	for _, h := range lexHits {
		if cur, ok := lexRaw[h.ChunkID]; !ok || h.Score > cur {
			lexRaw[h.ChunkID] = h.Score
		}
	}

	combined := make(map[string]float64, len(vecRaw)+len(lexRaw))
	for id, v := range minMax(vecRaw) {
		combined[id] = alpha * v
	}
	for id, l := range minMax(lexRaw) {
		combined[id] += (1 - alpha) * l
	}

	out := make([]scoredCandidate, 0, len(combined))
	for id, score := range combined {
		out = append(out, scoredCandidate{chunkID: id, score: score})
	}
	return out
}

// minMax rescales scores to [0,1]. When every score is identical each
// one maps to 1, so a single-hit set still outranks absence.
func minMax(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return raw
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range raw {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	out := make(map[string]float64, len(raw))
	if hi == lo {
		for id := range raw {
			out[id] = 1
		}
		return out
	}
	for id, v := range raw {
		out[id] = (v - lo) / (hi - lo)
	}
	return out
}

// resolveCitations hydrates the top-k window of ranked candidates into
// results with citations attached. A candidate whose backing records
// disappeared between indexing and now keeps its slot in the ranking
// but is dropped during resolution, so the caller gets a shorter list
// rather than one backfilled from below the window. The number dropped
// is returned so the caller can flag the response as partial.
func (s *QueryService) resolveCitations(ctx context.Context, kb *domain.KnowledgeBase, candidates []scoredCandidate, topK int) ([]domain.QueryResult, int, error) {
	type hydrated struct {
		score   float64
		chunkID string
		chunk   *domain.Chunk
	}

	// Hydrate before ranking: the tie-breaks need ordinals. A chunk
	// that has vanished stays in as a nil row so it still occupies a
	// ranking slot.
	rows := make([]hydrated, 0, len(candidates))
	for _, cand := range candidates {
		chunk, err := s.docStore.GetChunk(ctx, cand.chunkID)
		if errors.Is(err, domain.ErrNotFound) {
			rows = append(rows, hydrated{score: cand.score, chunkID: cand.chunkID})
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("get chunk %s: %w", cand.chunkID, err)
		}
		rows = append(rows, hydrated{score: cand.score, chunkID: cand.chunkID, chunk: chunk})
	}

	// Rank: score descending, with ties ordered ordinal ascending then
	// document ID ascending. A vanished row has no ordinal, so on a tie
	// it sorts after live rows; vanished pairs order by chunk ID.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		ci, cj := rows[i].chunk, rows[j].chunk
		switch {
		case ci == nil && cj == nil:
			return rows[i].chunkID < rows[j].chunkID
		case ci == nil:
			return false
		case cj == nil:
			return true
		}
		if ci.Ordinal != cj.Ordinal {
			return ci.Ordinal < cj.Ordinal
		}
		return ci.DocumentID < cj.DocumentID
	})

	// Only the window is resolved. Dropping a stale row shortens the
	// result list; candidates ranked below the window never move up to
	// take its place.
	if len(rows) > topK {
		rows = rows[:topK]
	}

	docs := make(map[string]*domain.Document)
	results := make([]domain.QueryResult, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		if row.chunk == nil {
			logger.Debug("dropping chunk %s: %v", row.chunkID, domain.ErrStaleCitation)
			dropped++
			continue
		}

		doc, ok := docs[row.chunk.DocumentID]
		if !ok {
			var err error
			doc, err = s.docStore.GetDocument(ctx, row.chunk.DocumentID)
			if errors.Is(err, domain.ErrNotFound) {
				logger.Debug("dropping chunk %s: document gone, %v", row.chunk.ID, domain.ErrStaleCitation)
				dropped++
				continue
			}
			if err != nil {
				return nil, 0, fmt.Errorf("get document %s: %w", row.chunk.DocumentID, err)
			}
			docs[doc.ID] = doc
		}

		results = append(results, domain.QueryResult{
			ChunkID:    row.chunk.ID,
			DocumentID: doc.ID,
			Span:       row.chunk.Span,
			Score:      row.score,
			Content:    row.chunk.Content,
			Citation: domain.Citation{
				DocumentID:    doc.ID,
				DocumentTitle: doc.Title,
				Owner:         kb.Owner,
				Ordinal:       row.chunk.Ordinal,
				Span:          row.chunk.Span,
			},
		})
	}
	return results, dropped, nil
}
