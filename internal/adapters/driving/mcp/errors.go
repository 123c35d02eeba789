// Package mcp provides an MCP (Model Context Protocol) server adapter for
// Retrieva. It lets AI assistants ingest into and query knowledge bases
// over JSON-RPC.
package mcp

import "errors"

// ErrMissingQuerier is returned when the query service is not provided.
var ErrMissingQuerier = errors.New("mcp: query service is required")

// ErrMissingIngestor is returned when the ingestion service is not provided.
var ErrMissingIngestor = errors.New("mcp: ingestion service is required")
