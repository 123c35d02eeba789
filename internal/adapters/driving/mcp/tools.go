package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driving"
)

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	KnowledgeBaseID string   `json:"knowledge_base_id" jsonschema:"the knowledge base to query"`
	Query           string   `json:"query" jsonschema:"the retrieval query text"`
	TopK            int      `json:"top_k,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	Alpha           *float64 `json:"alpha,omitempty" jsonschema:"blend weight in [0,1]; 0 is pure keyword, 1 is pure vector (default: knowledge base setting)"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Results []QueryResultOutput `json:"results"`
	Count   int                 `json:"count"`
	Partial bool                `json:"partial,omitempty"`
}

// QueryResultOutput represents a single ranked result with its citation.
type QueryResultOutput struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title,omitempty"`
	Score      float64 `json:"score"`
	Ordinal    int     `json:"ordinal"`
	SpanStart  int     `json:"span_start"`
	SpanEnd    int     `json:"span_end"`
	Content    string  `json:"content,omitempty"`
}

// IngestTextInput is the input schema for the ingest_text tool.
type IngestTextInput struct {
	KnowledgeBaseID string `json:"knowledge_base_id" jsonschema:"the knowledge base to ingest into"`
	Text            string `json:"text" jsonschema:"the document text to ingest"`
	Title           string `json:"title,omitempty" jsonschema:"optional document title used in citations"`
}

// IngestTextOutput is the output schema for the ingest_text tool.
type IngestTextOutput struct {
	IngestionID string `json:"ingestion_id"`
	Status      string `json:"status"`
}

// IngestionStatusInput is the input schema for the ingestion_status tool.
type IngestionStatusInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document to report status for"`
}

// IngestionStatusOutput is the output schema for the ingestion_status tool.
type IngestionStatusOutput struct {
	DocumentID     string `json:"document_id"`
	Status         string `json:"status"`
	TotalChunks    int    `json:"total_chunks"`
	EmbeddedChunks int    `json:"embedded_chunks"`
	FailedChunks   int    `json:"failed_chunks"`
}

// DeleteDocumentInput is the input schema for the delete_document tool.
type DeleteDocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document to delete"`
}

// DeleteDocumentOutput is the output schema for the delete_document tool.
type DeleteDocumentOutput struct {
	DocumentID string `json:"document_id"`
	Deleted    bool   `json:"deleted"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query",
		Description: "Query a knowledge base with hybrid (vector + keyword) retrieval",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_text",
		Description: "Ingest text into a knowledge base; processing is asynchronous",
	}, s.handleIngestText)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingestion_status",
		Description: "Report ingestion progress for a document",
	}, s.handleIngestionStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Delete a document and all of its indexed chunks",
	}, s.handleDeleteDocument)
}

// handleQuery handles the query tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	opts := domain.QueryOptions{
		TopK:  input.TopK,
		Alpha: input.Alpha,
	}

	resp, err := s.ports.Querier.Query(ctx, input.KnowledgeBaseID, input.Query, opts)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	output := QueryOutput{
		Results: make([]QueryResultOutput, len(resp.Results)),
		Count:   len(resp.Results),
		Partial: resp.Partial,
	}

	for i := range resp.Results {
		r := &resp.Results[i]
		output.Results[i] = QueryResultOutput{
			ChunkID:    r.ChunkID,
			DocumentID: r.DocumentID,
			Title:      r.Citation.DocumentTitle,
			Score:      r.Score,
			Ordinal:    r.Citation.Ordinal,
			SpanStart:  r.Span.Start,
			SpanEnd:    r.Span.End,
			Content:    r.Content,
		}
	}

	return nil, output, nil
}

// handleIngestText handles the ingest_text tool invocation.
func (s *Server) handleIngestText(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestTextInput,
) (*mcp.CallToolResult, IngestTextOutput, error) {
	receipt, err := s.ports.Ingestor.Ingest(ctx, driving.IngestRequest{
		KnowledgeBaseID: input.KnowledgeBaseID,
		Text:            input.Text,
		Title:           input.Title,
	})
	if err != nil {
		return nil, IngestTextOutput{}, err
	}

	return nil, IngestTextOutput{
		IngestionID: receipt.IngestionID,
		Status:      receipt.Status.String(),
	}, nil
}

// handleIngestionStatus handles the ingestion_status tool invocation.
func (s *Server) handleIngestionStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestionStatusInput,
) (*mcp.CallToolResult, IngestionStatusOutput, error) {
	status, err := s.ports.Ingestor.Status(ctx, input.DocumentID)
	if err != nil {
		return nil, IngestionStatusOutput{}, err
	}

	return nil, IngestionStatusOutput{
		DocumentID:     status.DocumentID,
		Status:         status.Status.String(),
		TotalChunks:    status.TotalChunks,
		EmbeddedChunks: status.EmbeddedChunks,
		FailedChunks:   status.FailedChunks,
	}, nil
}

// handleDeleteDocument handles the delete_document tool invocation.
func (s *Server) handleDeleteDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DeleteDocumentInput,
) (*mcp.CallToolResult, DeleteDocumentOutput, error) {
	if err := s.ports.Ingestor.Delete(ctx, input.DocumentID); err != nil {
		return nil, DeleteDocumentOutput{}, err
	}

	return nil, DeleteDocumentOutput{
		DocumentID: input.DocumentID,
		Deleted:    true,
	}, nil
}
