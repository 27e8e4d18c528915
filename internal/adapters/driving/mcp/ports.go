package mcp

import (
	"net/http"

	"github.com/custodia-labs/ragcore/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// RAG answers questions.
	RAG driving.RAGService

	// Ingest indexes files and searches the index.
	Ingest driving.IngestService

	// Chunk previews chunking. Optional; chunk_document is not registered without it.
	Chunk driving.ChunkService

	// Document lists ingested files. Optional.
	Document driving.DocumentService

	// Maintenance reports store statistics. Optional.
	Maintenance driving.MaintenanceService

	// Metrics is served at /metrics in HTTP mode. Optional.
	Metrics http.Handler
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.RAG == nil {
		return ErrMissingRAGService
	}
	if p.Ingest == nil {
		return ErrMissingIngestService
	}
	return nil
}
