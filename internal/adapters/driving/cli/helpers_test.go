package cli

import (
	"context"
	"errors"
	"time"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driving"
)

// setupTestServices wires working mocks into the package-level service
// vars and returns a cleanup restoring the previous state.
func setupTestServices() func() {
	oldKB := kbService
	oldIngest := ingestService
	oldQuery := queryService
	oldDocument := documentService
	oldSettings := settingsService

	kbService = &mockKBService{}
	ingestService = &mockIngestorService{}
	queryService = &mockQuerierService{}
	documentService = &mockDocumentService{}
	settingsService = &mockSettingsService{}

	return func() {
		kbService = oldKB
		ingestService = oldIngest
		queryService = oldQuery
		documentService = oldDocument
		settingsService = oldSettings
	}
}

// --- Knowledge base mocks ---

type mockKBService struct{}

func (m *mockKBService) Create(_ context.Context, kb domain.KnowledgeBase) (*domain.KnowledgeBase, error) {
	created := kb
	created.ID = "kb-test-1"
	if created.EmbeddingModelID == "" {
		created.EmbeddingModelID = "hash-256"
	}
	if created.ChunkConfig == (domain.ChunkConfig{}) {
		created.ChunkConfig = domain.DefaultChunkConfig()
	}
	if created.FailurePolicy == "" {
		created.FailurePolicy = domain.PolicyPartial
	}
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	return &created, nil
}

func (m *mockKBService) Get(_ context.Context, id string) (*domain.KnowledgeBase, error) {
	return &domain.KnowledgeBase{
		ID:               "kb-test-1",
		Name:             id,
		EmbeddingModelID: "hash-256",
		ChunkConfig:      domain.DefaultChunkConfig(),
		HybridWeight:     domain.DefaultHybridWeight,
		FailurePolicy:    domain.PolicyPartial,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}, nil
}

func (m *mockKBService) List(_ context.Context) ([]domain.KnowledgeBase, error) {
	return []domain.KnowledgeBase{
		{ID: "kb-test-1", Name: "Test KB", EmbeddingModelID: "hash-256"},
	}, nil
}

type mockKBServiceEmpty struct {
	mockKBService
}

func (m *mockKBServiceEmpty) List(_ context.Context) ([]domain.KnowledgeBase, error) {
	return nil, nil
}

type mockKBServiceError struct{}

func (m *mockKBServiceError) Create(_ context.Context, _ domain.KnowledgeBase) (*domain.KnowledgeBase, error) {
	return nil, errors.New("store offline")
}

func (m *mockKBServiceError) Get(_ context.Context, _ string) (*domain.KnowledgeBase, error) {
	return nil, errors.New("store offline")
}

func (m *mockKBServiceError) List(_ context.Context) ([]domain.KnowledgeBase, error) {
	return nil, errors.New("store offline")
}

// --- Ingestor mocks ---

type mockIngestorService struct{}

func (m *mockIngestorService) Ingest(_ context.Context, _ driving.IngestRequest) (*driving.IngestReceipt, error) {
	return &driving.IngestReceipt{IngestionID: "doc-test-1", Status: domain.DocumentPending}, nil
}

func (m *mockIngestorService) Delete(_ context.Context, _ string) error {
	return nil
}

func (m *mockIngestorService) Status(_ context.Context, documentID string) (*driving.IngestionStatus, error) {
	return &driving.IngestionStatus{
		DocumentID:     documentID,
		Status:         domain.DocumentReady,
		TotalChunks:    3,
		EmbeddedChunks: 3,
	}, nil
}

// mockIngestorDuplicate reports content as already ingested.
type mockIngestorDuplicate struct {
	mockIngestorService
}

func (m *mockIngestorDuplicate) Ingest(_ context.Context, _ driving.IngestRequest) (*driving.IngestReceipt, error) {
	return &driving.IngestReceipt{IngestionID: "doc-existing", Status: domain.DocumentReady}, nil
}

// mockIngestorFailed reports a document that failed ingestion.
type mockIngestorFailed struct {
	mockIngestorService
}

func (m *mockIngestorFailed) Status(_ context.Context, documentID string) (*driving.IngestionStatus, error) {
	return &driving.IngestionStatus{
		DocumentID:   documentID,
		Status:       domain.DocumentFailed,
		TotalChunks:  3,
		FailedChunks: 3,
	}, nil
}

// mockIngestorFailedEmbedded reports a failed document that still has
// embedded chunks in the indices.
type mockIngestorFailedEmbedded struct {
	mockIngestorService
}

func (m *mockIngestorFailedEmbedded) Status(_ context.Context, documentID string) (*driving.IngestionStatus, error) {
	return &driving.IngestionStatus{
		DocumentID:     documentID,
		Status:         domain.DocumentFailed,
		TotalChunks:    3,
		EmbeddedChunks: 2,
		FailedChunks:   1,
	}, nil
}

// mockIngestorBackpressure rejects every submission with a full queue.
type mockIngestorBackpressure struct {
	mockIngestorService
}

func (m *mockIngestorBackpressure) Ingest(_ context.Context, _ driving.IngestRequest) (*driving.IngestReceipt, error) {
	return nil, domain.ErrBackpressure
}

type mockIngestorError struct{}

func (m *mockIngestorError) Ingest(_ context.Context, _ driving.IngestRequest) (*driving.IngestReceipt, error) {
	return nil, errors.New("engine offline")
}

func (m *mockIngestorError) Delete(_ context.Context, _ string) error {
	return errors.New("engine offline")
}

func (m *mockIngestorError) Status(_ context.Context, _ string) (*driving.IngestionStatus, error) {
	return nil, errors.New("engine offline")
}

// --- Querier mocks ---

type mockQuerierService struct{}

func (m *mockQuerierService) Query(_ context.Context, _, _ string, _ domain.QueryOptions) (*domain.QueryResponse, error) {
	return &domain.QueryResponse{
		Results: []domain.QueryResult{
			{
				ChunkID:    "chunk-1",
				DocumentID: "doc-1",
				Span:       domain.Span{Start: 0, End: 120},
				Score:      0.91,
				Content:    "The rollout was approved on Tuesday.",
				Citation: domain.Citation{
					DocumentID:    "doc-1",
					DocumentTitle: "Meeting Notes",
					Ordinal:       0,
					Span:          domain.Span{Start: 0, End: 120},
				},
			},
		},
	}, nil
}

type mockQuerierEmpty struct{}

func (m *mockQuerierEmpty) Query(_ context.Context, _, _ string, _ domain.QueryOptions) (*domain.QueryResponse, error) {
	return &domain.QueryResponse{}, nil
}

type mockQuerierPartial struct {
	mockQuerierService
}

func (m *mockQuerierPartial) Query(ctx context.Context, kbID, query string, opts domain.QueryOptions) (*domain.QueryResponse, error) {
	resp, _ := m.mockQuerierService.Query(ctx, kbID, query, opts)
	resp.Partial = true
	return resp, nil
}

type mockQuerierError struct{}

func (m *mockQuerierError) Query(_ context.Context, _, _ string, _ domain.QueryOptions) (*domain.QueryResponse, error) {
	return nil, errors.New("index offline")
}

// --- Document mocks ---

type mockDocumentService struct{}

func (m *mockDocumentService) ListByKnowledgeBase(_ context.Context, knowledgeBaseID string) ([]domain.Document, error) {
	return []domain.Document{
		{
			ID:              "doc-test-1",
			KnowledgeBaseID: knowledgeBaseID,
			Title:           "Meeting Notes",
			Status:          domain.DocumentReady,
			ChunkCount:      3,
		},
		{
			ID:              "doc-test-2",
			KnowledgeBaseID: knowledgeBaseID,
			Title:           "Release Plan",
			Status:          domain.DocumentPending,
		},
	}, nil
}

func (m *mockDocumentService) Get(_ context.Context, documentID string) (*domain.Document, error) {
	return &domain.Document{
		ID:              documentID,
		KnowledgeBaseID: "kb-test-1",
		Title:           "Meeting Notes",
		ContentHash:     "3d3f27c1a9e4",
		Status:          domain.DocumentReady,
		ChunkConfig:     domain.DefaultChunkConfig(),
		ChunkCount:      3,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}, nil
}

func (m *mockDocumentService) GetContent(_ context.Context, _ string) (string, error) {
	return "The rollout was approved on Tuesday.", nil
}

type mockDocumentServiceEmpty struct {
	mockDocumentService
}

func (m *mockDocumentServiceEmpty) ListByKnowledgeBase(_ context.Context, _ string) ([]domain.Document, error) {
	return nil, nil
}

type mockDocumentServiceError struct{}

func (m *mockDocumentServiceError) ListByKnowledgeBase(_ context.Context, _ string) ([]domain.Document, error) {
	return nil, errors.New("store offline")
}

func (m *mockDocumentServiceError) Get(_ context.Context, _ string) (*domain.Document, error) {
	return nil, errors.New("store offline")
}

func (m *mockDocumentServiceError) GetContent(_ context.Context, _ string) (string, error) {
	return "", errors.New("store offline")
}

// --- Settings mocks ---

type mockSettingsService struct {
	savedProvider domain.AIProvider
	savedModel    string
	savedAPIKey   string
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()
	return &settings, nil
}

func (m *mockSettingsService) Save(_ *domain.AppSettings) error {
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.savedProvider = provider
	m.savedModel = model
	m.savedAPIKey = apiKey
	return nil
}

func (m *mockSettingsService) Validate(_ context.Context) error {
	return nil
}

type mockSettingsValidateError struct {
	mockSettingsService
}

func (m *mockSettingsValidateError) Validate(_ context.Context) error {
	return errors.New("embedding service unreachable")
}

type mockSettingsServiceError struct{}

func (m *mockSettingsServiceError) Get() (*domain.AppSettings, error) {
	return nil, errors.New("config unreadable")
}

func (m *mockSettingsServiceError) Save(_ *domain.AppSettings) error {
	return errors.New("config unwritable")
}

func (m *mockSettingsServiceError) SetEmbeddingProvider(_ domain.AIProvider, _, _ string) error {
	return errors.New("config unwritable")
}

func (m *mockSettingsServiceError) Validate(_ context.Context) error {
	return errors.New("config unreadable")
}
