package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/core/ports/driving"
	"github.com/custodia-labs/ragcore/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService runs the chunk, embed, index pipeline and answers index searches.
// Writes are serialised; searches run concurrently against the index.
type IngestService struct {
	mu        sync.Mutex
	chunks    driving.ChunkService
	embedder  driving.EmbeddingGenerator
	index     driven.VectorIndex
	docs      driven.DocumentStore
	metrics   driven.Metrics
	dataDir   string
	chunking  domain.ChunkingConfig
	batchSize int
}

// IngestConfig holds IngestService settings.
type IngestConfig struct {
	// DataDir is where the index is saved after every write. Empty disables saving.
	DataDir string

	// Chunking is used when IngestOptions carries no override.
	Chunking domain.ChunkingConfig

	// BatchSize is the embedding batch size.
	BatchSize int

	Metrics driven.Metrics
}

// NewIngestService creates an ingest service. docs may be nil, which disables
// the unchanged-file check and the document registry.
func NewIngestService(
	chunks driving.ChunkService,
	embedder driving.EmbeddingGenerator,
	index driven.VectorIndex,
	docs driven.DocumentStore,
	cfg IngestConfig,
) *IngestService {
	s := &IngestService{
		chunks:    chunks,
		embedder:  embedder,
		index:     index,
		docs:      docs,
		metrics:   cfg.Metrics,
		dataDir:   cfg.DataDir,
		chunking:  cfg.Chunking,
		batchSize: cfg.BatchSize,
	}
	if s.metrics == nil {
		s.metrics = driven.NopMetrics{}
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultEmbeddingBatchSize
	}
	return s
}

// IngestFile reads path and ingests it under its cleaned path.
func (s *IngestService) IngestFile(
	ctx context.Context, path string, opts domain.IngestOptions,
) (*domain.IngestResult, error) {
	raw, err := readRaw(filepath.Clean(path), opts.Metadata)
	if err != nil {
		return nil, err
	}
	return s.ingest(ctx, raw, opts)
}

// IngestBytes ingests content that is already in memory under name.
func (s *IngestService) IngestBytes(
	ctx context.Context, name string, data []byte, opts domain.IngestOptions,
) (*domain.IngestResult, error) {
	raw := &domain.RawDocument{URI: name, Content: data, Metadata: opts.Metadata}
	return s.ingest(ctx, raw, opts)
}

func (s *IngestService) ingest(
	ctx context.Context, raw *domain.RawDocument, opts domain.IngestOptions,
) (*domain.IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	logger.Section("Ingest " + raw.URI)

	result := &domain.IngestResult{SourceFile: raw.URI, FileHash: contentHash(raw.Content)}

	if !opts.Force && s.docs != nil {
		rec, err := s.docs.GetDocument(ctx, raw.URI)
		switch {
		case err == nil && rec.FileHash == result.FileHash:
			logger.Info("%s is unchanged, skipping", raw.URI)
			result.Skipped = true
			return result, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("ingest %s: %w", raw.URI, err)
		}
	}

	cfg := s.chunking
	if opts.Chunking.ChunkSize > 0 {
		cfg = opts.Chunking
	}

	chunks, err := s.chunks.ChunkDocument(ctx, raw, cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("Chunks: %d", len(chunks))

	vectors := make([][]float32, 0, len(chunks))
	if len(chunks) > 0 {
		embeddings, err := s.embedder.EmbedChunks(ctx, chunks, s.batchSize)
		if err != nil {
			return nil, fmt.Errorf("ingest %s: %w", raw.URI, err)
		}
		for i := range embeddings {
			vectors = append(vectors, embeddings[i].Vector)
		}
	}

	ids, replaced, err := s.index.ReplaceSource(ctx, raw.URI, chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", raw.URI, err)
	}
	result.Replaced = replaced
	if replaced > 0 {
		logger.Debug("Replaced %d chunks from an earlier ingestion", replaced)
	}
	if len(chunks) > 0 {
		result.ChunkIDs = ids
	}

	chunkType := domain.ChunkTypeText
	if len(chunks) > 0 {
		chunkType = chunks[0].Metadata.ChunkType
	}
	if s.docs != nil {
		rec := &domain.DocumentRecord{
			SourceFile: raw.URI,
			FileHash:   result.FileHash,
			ChunkType:  chunkType,
			ChunkCount: len(chunks),
		}
		if err := s.docs.SaveDocument(ctx, rec); err != nil {
			return nil, fmt.Errorf("ingest %s: record document: %w", raw.URI, err)
		}
	}

	if err := s.persist(); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	s.metrics.ObserveIngest(elapsed, string(chunkType), len(chunks))
	logger.Info("Ingested %s: %d chunks in %s", raw.URI, len(chunks), elapsed.Round(time.Millisecond))
	return result, nil
}

// IngestDir ingests every supported file below dir. Hidden directories are
// skipped. Per-file failures are joined; successful results are still returned.
func (s *IngestService) IngestDir(
	ctx context.Context, dir string, opts domain.IngestOptions,
) ([]domain.IngestResult, error) {
	var results []domain.IngestResult
	var errs []error

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.chunks.Supports(path) {
			logger.Debug("Skipping unsupported file %s", path)
			return nil
		}

		res, err := s.IngestFile(ctx, path, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			return nil
		}
		results = append(results, *res)
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}

	return results, errors.Join(errs...)
}

// AddToIndex adds pre-embedded chunks and saves the index.
func (s *IngestService) AddToIndex(
	ctx context.Context, chunks []domain.Chunk, vectors [][]float32,
) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.index.Add(ctx, chunks, vectors)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Search embeds query and returns the k nearest chunks, filtered when filter is non-empty.
func (s *IngestService) Search(
	ctx context.Context, query string, k int, filter domain.MetadataFilter,
) ([]domain.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if k <= 0 {
		return []domain.SearchHit{}, nil
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(filter) > 0 {
		return s.index.SearchWithFilter(ctx, filter, vec, k)
	}
	return s.index.Search(ctx, vec, k)
}

// RemoveSource deletes a file's chunks and its registry record, then saves the index.
func (s *IngestService) RemoveSource(ctx context.Context, sourceFile string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.index.DeleteBySource(ctx, sourceFile)
	if err != nil {
		return 0, err
	}
	if s.docs != nil {
		if err := s.docs.DeleteDocument(ctx, sourceFile); err != nil {
			return n, err
		}
	}
	return n, s.persist()
}

// persist saves the index and refreshes the size gauge. Caller holds mu.
func (s *IngestService) persist() error {
	s.metrics.SetIndexSize(s.index.Stats().LiveVectors)
	if s.dataDir == "" {
		return nil
	}
	if err := s.index.Save(s.dataDir); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}
