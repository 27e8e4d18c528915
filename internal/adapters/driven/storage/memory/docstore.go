package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.DocumentRecord
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.DocumentRecord),
	}
}

// SaveDocument stores or updates a record keyed by source file.
func (s *DocumentStore) SaveDocument(_ context.Context, rec *domain.DocumentRecord) error {
	if rec.SourceFile == "" {
		return fmt.Errorf("%w: document record needs a source file", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[rec.SourceFile] = *rec
	return nil
}

// GetDocument retrieves a record by source file.
func (s *DocumentStore) GetDocument(_ context.Context, sourceFile string) (*domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.documents[sourceFile]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

// ListDocuments returns every record ordered by source file.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.DocumentRecord, 0, len(s.documents))
	for _, rec := range s.documents {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SourceFile < result[j].SourceFile
	})
	return result, nil
}

// DeleteDocument removes a record.
func (s *DocumentStore) DeleteDocument(_ context.Context, sourceFile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, sourceFile)
	return nil
}

// Clear removes every record.
func (s *DocumentStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = make(map[string]domain.DocumentRecord)
	return nil
}
