package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for Retrieva resources.
	uriScheme = "retrieva://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing knowledge bases.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "knowledge-bases",
		Name:        "knowledge-bases",
		Description: "List of all knowledge bases",
		MIMEType:    "application/json",
	}, s.handleKnowledgeBasesResource)

	// Template for a single knowledge base's configuration.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "knowledge-bases/{kbId}",
		Name:        "knowledge-base",
		Description: "Configuration of a specific knowledge base",
		MIMEType:    "application/json",
	}, s.handleKnowledgeBaseResource)

	// Template for the documents of one knowledge base.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "knowledge-bases/{kbId}/documents",
		Name:        "knowledge-base-documents",
		Description: "Documents ingested into a specific knowledge base",
		MIMEType:    "application/json",
	}, s.handleKnowledgeBaseDocumentsResource)

	// Template for a document's full text.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}",
		Name:        "document-content",
		Description: "Document text reassembled from its stored chunks",
		MIMEType:    "text/plain",
	}, s.handleDocumentContentResource)
}

// handleKnowledgeBasesResource returns a list of all knowledge bases.
func (s *Server) handleKnowledgeBasesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.KnowledgeBase == nil {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     "[]",
			}},
		}, nil
	}

	kbs, err := s.ports.KnowledgeBase.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing knowledge bases: %w", err)
	}

	// Build simplified knowledge base list.
	type kbInfo struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Model string `json:"model"`
	}

	infos := make([]kbInfo, len(kbs))
	for i := range kbs {
		infos[i] = kbInfo{
			ID:    kbs[i].ID,
			Name:  kbs[i].Name,
			Model: kbs[i].EmbeddingModelID,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling knowledge bases: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleKnowledgeBaseResource returns the configuration of one knowledge base.
func (s *Server) handleKnowledgeBaseResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.KnowledgeBase == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract kbId from URI: retrieva://knowledge-bases/{kbId}
	kbID := extractKnowledgeBaseID(req.Params.URI)
	if kbID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	kb, err := s.ports.KnowledgeBase.Get(ctx, kbID)
	if err != nil {
		return nil, fmt.Errorf("getting knowledge base: %w", err)
	}

	info := struct {
		ID            string  `json:"id"`
		Name          string  `json:"name"`
		Owner         string  `json:"owner,omitempty"`
		Model         string  `json:"model"`
		ChunkSize     int     `json:"chunk_size"`
		ChunkOverlap  int     `json:"chunk_overlap"`
		HybridWeight  float64 `json:"hybrid_weight"`
		FailurePolicy string  `json:"failure_policy"`
	}{
		ID:            kb.ID,
		Name:          kb.Name,
		Owner:         kb.Owner,
		Model:         kb.EmbeddingModelID,
		ChunkSize:     kb.ChunkConfig.ChunkSize,
		ChunkOverlap:  kb.ChunkConfig.ChunkOverlap,
		HybridWeight:  kb.HybridWeight,
		FailurePolicy: kb.FailurePolicy.String(),
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling knowledge base: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleKnowledgeBaseDocumentsResource lists the documents of one
// knowledge base.
func (s *Server) handleKnowledgeBaseDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Document == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract kbId from URI: retrieva://knowledge-bases/{kbId}/documents
	kbID := extractDocumentsKnowledgeBaseID(req.Params.URI)
	if kbID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	docs, err := s.ports.Document.ListByKnowledgeBase(ctx, kbID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	type docInfo struct {
		ID         string `json:"id"`
		Title      string `json:"title"`
		Status     string `json:"status"`
		ChunkCount int    `json:"chunk_count"`
	}

	infos := make([]docInfo, len(docs))
	for i := range docs {
		infos[i] = docInfo{
			ID:         docs[i].ID,
			Title:      docs[i].Title,
			Status:     docs[i].Status.String(),
			ChunkCount: docs[i].ChunkCount,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling documents: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleDocumentContentResource returns the reassembled text of one
// document.
func (s *Server) handleDocumentContentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Document == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract documentId from URI: retrieva://documents/{documentId}
	docID := extractDocumentID(req.Params.URI)
	if docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	content, err := s.ports.Document.GetContent(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("getting document content: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     content,
		}},
	}, nil
}

// extractKnowledgeBaseID extracts the knowledge base ID from a URI like
// retrieva://knowledge-bases/{kbId}.
func extractKnowledgeBaseID(uri string) string {
	const prefix = uriScheme + "knowledge-bases/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

// extractDocumentsKnowledgeBaseID extracts the knowledge base ID from a
// URI like retrieva://knowledge-bases/{kbId}/documents.
func extractDocumentsKnowledgeBaseID(uri string) string {
	const (
		prefix = uriScheme + "knowledge-bases/"
		suffix = "/documents"
	)

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}

	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

// extractDocumentID extracts the document ID from a URI like
// retrieva://documents/{documentId}.
func extractDocumentID(uri string) string {
	const prefix = uriScheme + "documents/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
