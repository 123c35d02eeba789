package services

import (
	"context"
	"sort"
	"strings"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
	"github.com/plinth-labs/retrieva/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService answers read-only document lookups: listings,
// metadata and reconstruction of the ingested text from stored chunks.
type DocumentService struct {
	docStore driven.DocumentStore
}

// NewDocumentService creates a new document service.
func NewDocumentService(docStore driven.DocumentStore) *DocumentService {
	return &DocumentService{docStore: docStore}
}

// ListByKnowledgeBase returns all documents in a knowledge base.
func (s *DocumentService) ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx, knowledgeBaseID)
}

// Get retrieves a single document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, documentID)
}

// GetContent reassembles the original document text from its chunks.
// Consecutive chunks share their overlap tokens, so each chunk after
// the first contributes only the text past the shared region. The
// result is byte-identical to the ingested text wherever chunks
// overlap; a zero-overlap boundary is rejoined with a single space
// because neither chunk stores the original separator.
func (s *DocumentService) GetContent(ctx context.Context, documentID string) (string, error) {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return "", err
	}

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return "", err
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Ordinal < chunks[j].Ordinal
	})

	var b strings.Builder
	prevEnd := 0
	for i, chunk := range chunks {
		if i == 0 {
			b.WriteString(chunk.Content)
			prevEnd = chunk.Span.End
			continue
		}
		overlap := prevEnd - chunk.Span.Start
		if overlap <= 0 {
			b.WriteString(" ")
			b.WriteString(chunk.Content)
		} else {
			// Skipping past the shared tokens lands on the separator in
			// front of the first new token, which the chunk does store.
			b.WriteString(chunk.Content[tokenEnd(chunk.Content, overlap):])
		}
		if chunk.Span.End > prevEnd {
			prevEnd = chunk.Span.End
		}
	}
	return b.String(), nil
}

// tokenEnd returns the byte offset just past the n-th whitespace
// delimited token of s, or len(s) when s has fewer than n tokens.
// The delimiter set matches the chunker's tokenizer.
func tokenEnd(s string, n int) int {
	count := 0
	inTok := false
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if inTok {
				count++
				if count == n {
					return i
				}
				inTok = false
			}
			continue
		}
		inTok = true
	}
	return len(s)
}
