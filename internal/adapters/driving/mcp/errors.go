// Package mcp provides an MCP (Model Context Protocol) server adapter for ragcore.
// It exposes question answering, retrieval, chunking and ingestion as tools.
package mcp

import "errors"

var (
	// ErrMissingRAGService is returned when the RAG service is not provided.
	ErrMissingRAGService = errors.New("mcp: rag service is required")

	// ErrMissingIngestService is returned when the ingest service is not provided.
	ErrMissingIngestService = errors.New("mcp: ingest service is required")
)
