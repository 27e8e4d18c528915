package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/core/ports/driving"
	"github.com/custodia-labs/ragcore/internal/logger"
)

// Ensure MaintenanceService implements the interface.
var _ driving.MaintenanceService = (*MaintenanceService)(nil)

// MaintenanceService clears, compacts and inspects the persistent stores:
// the index file, the metadata side-table, the embedding cache and the
// response cache. Each clear touches exactly one of them.
type MaintenanceService struct {
	mu        sync.Mutex
	index     driven.VectorIndex
	docs      driven.DocumentStore
	embedder  driving.EmbeddingGenerator
	responses driven.ResponseCache
	metrics   driven.Metrics
	dataDir   string
}

// NewMaintenanceService creates a maintenance service. docs and responses may be nil.
func NewMaintenanceService(
	index driven.VectorIndex,
	docs driven.DocumentStore,
	embedder driving.EmbeddingGenerator,
	responses driven.ResponseCache,
	dataDir string,
) *MaintenanceService {
	return &MaintenanceService{
		index:     index,
		docs:      docs,
		embedder:  embedder,
		responses: responses,
		metrics:   driven.NopMetrics{},
		dataDir:   dataDir,
	}
}

// SetMetrics reports index size changes.
func (s *MaintenanceService) SetMetrics(m driven.Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// ClearIndex empties the in-memory index and deletes the saved vectors.
func (s *MaintenanceService) ClearIndex(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index.Clear()
	s.metrics.SetIndexSize(0)
	if s.dataDir == "" {
		return nil
	}
	if err := s.index.RemoveIndexFile(s.dataDir); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	logger.Info("Index cleared")
	return nil
}

// ClearMetadata deletes the metadata side-table and the document registry.
// The vectors stay; a later load without a side-table starts empty.
func (s *MaintenanceService) ClearMetadata(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dataDir != "" {
		if err := s.index.RemoveSideTable(s.dataDir); err != nil {
			return fmt.Errorf("clear metadata: %w", err)
		}
	}
	if s.docs != nil {
		if err := s.docs.Clear(ctx); err != nil {
			return fmt.Errorf("clear metadata: %w", err)
		}
	}
	logger.Info("Metadata cleared")
	return nil
}

// ClearEmbeddingCache removes every cached embedding.
func (s *MaintenanceService) ClearEmbeddingCache(ctx context.Context) error {
	if s.embedder == nil {
		return nil
	}
	return s.embedder.ClearCache(ctx)
}

// ClearResponseCache removes every cached answer.
func (s *MaintenanceService) ClearResponseCache(ctx context.Context) error {
	if s.responses == nil {
		return nil
	}
	if err := s.responses.Clear(ctx); err != nil {
		return fmt.Errorf("clear response cache: %w", err)
	}
	return nil
}

// Compact drops tombstoned entries and saves the index.
func (s *MaintenanceService) Compact(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped, err := s.index.Compact()
	if err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	logger.Info("Compacted index, dropped %d tombstones", dropped)
	return s.save()
}

// Train trains an approximate index and saves it.
func (s *MaintenanceService) Train(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Train(ctx); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	logger.Info("Index state: %s", s.index.State())
	return s.save()
}

// Stats reports the state of every store.
func (s *MaintenanceService) Stats(ctx context.Context) (*driving.SystemStats, error) {
	stats := &driving.SystemStats{
		Index:   s.index.Stats(),
		DataDir: s.dataDir,
	}
	if s.embedder != nil {
		stats.Embedding = s.embedder.Stats(ctx)
	}
	if s.responses != nil {
		n, err := s.responses.Len(ctx)
		if err != nil {
			return nil, fmt.Errorf("stats: response cache: %w", err)
		}
		stats.ResponseCached = n
	}
	if s.docs != nil {
		docs, err := s.docs.ListDocuments(ctx)
		if err != nil {
			return nil, fmt.Errorf("stats: documents: %w", err)
		}
		stats.Documents = len(docs)
	}
	return stats, nil
}

func (s *MaintenanceService) save() error {
	s.metrics.SetIndexSize(s.index.Stats().LiveVectors)
	if s.dataDir == "" {
		return nil
	}
	if err := s.index.Save(s.dataDir); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

