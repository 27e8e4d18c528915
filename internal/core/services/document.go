package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages the registry of ingested files.
type DocumentService struct {
	docStore driven.DocumentStore
	ingest   *IngestService
}

// NewDocumentService creates a new document service.
// Removal goes through ingest so it is serialised with ingestion.
func NewDocumentService(docStore driven.DocumentStore, ingest *IngestService) *DocumentService {
	return &DocumentService{docStore: docStore, ingest: ingest}
}

// List returns every ingested file ordered by path.
func (s *DocumentService) List(ctx context.Context) ([]domain.DocumentRecord, error) {
	if s.docStore == nil {
		return nil, domain.ErrNotImplemented
	}
	return s.docStore.ListDocuments(ctx)
}

// Get retrieves an ingested file by source path.
func (s *DocumentService) Get(ctx context.Context, sourceFile string) (*domain.DocumentRecord, error) {
	if s.docStore == nil {
		return nil, domain.ErrNotImplemented
	}
	return s.docStore.GetDocument(ctx, sourceFile)
}

// Remove deletes a file's chunks from the index and its registry record.
// Returns domain.ErrNotFound when the file was never ingested.
func (s *DocumentService) Remove(ctx context.Context, sourceFile string) (int, error) {
	if s.docStore == nil || s.ingest == nil {
		return 0, domain.ErrNotImplemented
	}
	if _, err := s.docStore.GetDocument(ctx, sourceFile); err != nil {
		return 0, fmt.Errorf("remove %s: %w", sourceFile, err)
	}
	return s.ingest.RemoveSource(ctx, sourceFile)
}
