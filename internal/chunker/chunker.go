// Package chunker splits normalised text into bounded, overlapping spans.
//
// Spans are measured in tokens (whitespace-delimited words). The splitter
// prefers paragraph and sentence boundaries near the target cut; when none
// falls inside the tolerance window it cuts hard at the configured size.
// Chunking is deterministic: identical input and config always produce the
// identical span sequence.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/plinth-labs/retrieva/internal/core/domain"
)

// DefaultBoundaryTolerance is the fraction of the chunk size the splitter
// may back up from the target cut to land on a natural boundary.
const DefaultBoundaryTolerance = 0.2

// token records the byte range of one word in the source text.
type token struct {
	start int
	end   int
}

// Chunker splits document text into domain.Chunks.
type Chunker struct {
	tolerance float64
}

// Option configures the chunker.
type Option func(*Chunker)

// WithBoundaryTolerance sets the boundary search window as a fraction of
// the chunk size. Values outside (0,1) are ignored.
func WithBoundaryTolerance(f float64) Option {
	return func(c *Chunker) {
		if f > 0 && f < 1 {
			c.tolerance = f
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		tolerance: DefaultBoundaryTolerance,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk splits text into the complete chunk set for a document.
// Consecutive spans overlap by exactly cfg.ChunkOverlap tokens and their
// union covers every token of the input. Returns nil chunks for text with
// no tokens. Fails with domain.ErrInvalidChunkConfig before producing
// anything if the config is unusable.
func (c *Chunker) Chunk(documentID, knowledgeBaseID, text string, cfg domain.ChunkConfig) ([]domain.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	toks := tokenize(text)
	if len(toks) == 0 {
		return nil, nil
	}

	step := cfg.ChunkSize - cfg.ChunkOverlap
	window := int(float64(cfg.ChunkSize) * c.tolerance)

	chunks := make([]domain.Chunk, 0, len(toks)/step+1)
	start := 0
	for ordinal := 0; ; ordinal++ {
		if len(toks)-start <= cfg.ChunkSize {
			chunks = append(chunks, newChunk(documentID, knowledgeBaseID, text, toks, ordinal, start, len(toks)))
			break
		}

		target := start + cfg.ChunkSize
		lower := target - window
		// The cut must stay ahead of the next chunk's start or the
		// window would never advance.
		if minCut := start + cfg.ChunkOverlap + 1; lower < minCut {
			lower = minCut
		}

		end := findCut(text, toks, lower, target)
		chunks = append(chunks, newChunk(documentID, knowledgeBaseID, text, toks, ordinal, start, end))
		start = end - cfg.ChunkOverlap
	}

	return chunks, nil
}

func newChunk(documentID, knowledgeBaseID, text string, toks []token, ordinal, start, end int) domain.Chunk {
	return domain.Chunk{
		ID:              uuid.New().String(),
		DocumentID:      documentID,
		KnowledgeBaseID: knowledgeBaseID,
		Ordinal:         ordinal,
		Span:            domain.Span{Start: start, End: end},
		Content:         text[toks[start].start:toks[end-1].end],
		TokenCount:      end - start,
		EmbeddingStatus: domain.EmbeddingPending,
	}
}

// findCut picks the cut position in (lower, target]. A paragraph break is
// preferred over a sentence end; without either the cut lands on target.
func findCut(text string, toks []token, lower, target int) int {
	sentence := 0
	for b := target; b >= lower; b-- {
		gap := text[toks[b-1].end:toks[b].start]
		if strings.Count(gap, "\n") >= 2 {
			return b
		}
		if sentence == 0 && endsSentence(text[toks[b-1].start:toks[b-1].end]) {
			sentence = b
		}
	}
	if sentence > 0 {
		return sentence
	}
	return target
}

// endsSentence reports whether a word closes a sentence, ignoring
// trailing quotes and brackets.
func endsSentence(word string) bool {
	word = strings.TrimRight(word, `"')]}`+"`")
	if word == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(word)
	return r == '.' || r == '!' || r == '?'
}

// tokenize scans text into whitespace-delimited tokens with byte offsets.
func tokenize(text string) []token {
	toks := make([]token, 0, len(text)/6)
	inTok := false
	start := 0
	for i, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if inTok {
				toks = append(toks, token{start: start, end: i})
				inTok = false
			}
			continue
		}
		if !inTok {
			start = i
			inTok = true
		}
	}
	if inTok {
		toks = append(toks, token{start: start, end: len(text)})
	}
	return toks
}
