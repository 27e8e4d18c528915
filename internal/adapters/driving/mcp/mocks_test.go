package mcp

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driving"
)

// mockRAGService is a mock implementation of driving.RAGService.
type mockRAGService struct {
	resp     *domain.QueryResponse
	err      error
	lastText string
	lastOpts domain.QueryOptions
}

func (m *mockRAGService) Query(_ context.Context, text string, opts domain.QueryOptions) (*domain.QueryResponse, error) {
	m.lastText = text
	m.lastOpts = opts
	return m.resp, m.err
}

func (m *mockRAGService) ClearCache(_ context.Context) error {
	return m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	hits       []domain.SearchHit
	result     *domain.IngestResult
	err        error
	lastK      int
	lastFilter domain.MetadataFilter
	lastOpts   domain.IngestOptions
}

func (m *mockIngestService) IngestFile(
	_ context.Context, path string, opts domain.IngestOptions,
) (*domain.IngestResult, error) {
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &domain.IngestResult{SourceFile: path}, nil
}

func (m *mockIngestService) IngestBytes(
	_ context.Context, name string, _ []byte, _ domain.IngestOptions,
) (*domain.IngestResult, error) {
	return &domain.IngestResult{SourceFile: name}, m.err
}

func (m *mockIngestService) IngestDir(
	_ context.Context, _ string, _ domain.IngestOptions,
) ([]domain.IngestResult, error) {
	return nil, m.err
}

func (m *mockIngestService) AddToIndex(
	_ context.Context, chunks []domain.Chunk, _ [][]float32,
) ([]string, error) {
	return make([]string, len(chunks)), m.err
}

func (m *mockIngestService) Search(
	_ context.Context, _ string, k int, filter domain.MetadataFilter,
) ([]domain.SearchHit, error) {
	m.lastK = k
	m.lastFilter = filter
	return m.hits, m.err
}

// mockChunkService is a mock implementation of driving.ChunkService.
type mockChunkService struct {
	chunks  []domain.Chunk
	err     error
	lastCfg domain.ChunkingConfig
}

func (m *mockChunkService) ChunkDocument(
	_ context.Context, _ *domain.RawDocument, cfg domain.ChunkingConfig,
) ([]domain.Chunk, error) {
	m.lastCfg = cfg
	return m.chunks, m.err
}

func (m *mockChunkService) ChunkFile(_ context.Context, _ string, cfg domain.ChunkingConfig) ([]domain.Chunk, error) {
	m.lastCfg = cfg
	return m.chunks, m.err
}

func (m *mockChunkService) Supports(_ string) bool {
	return true
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	records []domain.DocumentRecord
	err     error
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.DocumentRecord, error) {
	return m.records, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.DocumentRecord, error) {
	if len(m.records) == 0 {
		return nil, domain.ErrNotFound
	}
	return &m.records[0], m.err
}

func (m *mockDocumentService) Remove(_ context.Context, _ string) (int, error) {
	return 0, m.err
}

// mockMaintenanceService is a mock implementation of driving.MaintenanceService.
type mockMaintenanceService struct {
	stats *driving.SystemStats
	err   error
}

func (m *mockMaintenanceService) ClearIndex(_ context.Context) error          { return m.err }
func (m *mockMaintenanceService) ClearMetadata(_ context.Context) error       { return m.err }
func (m *mockMaintenanceService) ClearEmbeddingCache(_ context.Context) error { return m.err }
func (m *mockMaintenanceService) ClearResponseCache(_ context.Context) error  { return m.err }
func (m *mockMaintenanceService) Compact(_ context.Context) error             { return m.err }
func (m *mockMaintenanceService) Train(_ context.Context) error               { return m.err }

func (m *mockMaintenanceService) Stats(_ context.Context) (*driving.SystemStats, error) {
	return m.stats, m.err
}

func newTestPorts() *Ports {
	return &Ports{
		RAG:    &mockRAGService{},
		Ingest: &mockIngestService{},
	}
}
