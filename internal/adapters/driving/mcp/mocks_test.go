package mcp

import (
	"context"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driving"
)

// mockQuerier is a mock implementation of driving.Querier.
type mockQuerier struct {
	resp *domain.QueryResponse
	err  error
}

func (m *mockQuerier) Query(
	_ context.Context,
	_, _ string,
	_ domain.QueryOptions,
) (*domain.QueryResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.resp == nil {
		return &domain.QueryResponse{}, nil
	}
	return m.resp, nil
}

// mockIngestor is a mock implementation of driving.Ingestor.
type mockIngestor struct {
	receipt *driving.IngestReceipt
	status  *driving.IngestionStatus
	err     error

	deletedID string
}

func (m *mockIngestor) Ingest(_ context.Context, _ driving.IngestRequest) (*driving.IngestReceipt, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.receipt == nil {
		return &driving.IngestReceipt{IngestionID: "doc-1", Status: domain.DocumentPending}, nil
	}
	return m.receipt, nil
}

func (m *mockIngestor) Delete(_ context.Context, documentID string) error {
	if m.err != nil {
		return m.err
	}
	m.deletedID = documentID
	return nil
}

func (m *mockIngestor) Status(_ context.Context, _ string) (*driving.IngestionStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.status == nil {
		return &driving.IngestionStatus{DocumentID: "doc-1", Status: domain.DocumentPending}, nil
	}
	return m.status, nil
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	docs    []domain.Document
	doc     *domain.Document
	content string
	err     error
}

func (m *mockDocumentService) ListByKnowledgeBase(_ context.Context, _ string) ([]domain.Document, error) {
	return m.docs, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.doc, m.err
}

func (m *mockDocumentService) GetContent(_ context.Context, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.content, nil
}

// mockKnowledgeBaseService is a mock implementation of driving.KnowledgeBaseService.
type mockKnowledgeBaseService struct {
	kbs []domain.KnowledgeBase
	kb  *domain.KnowledgeBase
	err error
}

func (m *mockKnowledgeBaseService) Create(_ context.Context, _ domain.KnowledgeBase) (*domain.KnowledgeBase, error) {
	return m.kb, m.err
}

func (m *mockKnowledgeBaseService) Get(_ context.Context, _ string) (*domain.KnowledgeBase, error) {
	return m.kb, m.err
}

func (m *mockKnowledgeBaseService) List(_ context.Context) ([]domain.KnowledgeBase, error) {
	return m.kbs, m.err
}
