package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/core/ports/driving"
	"github.com/custodia-labs/ragcore/internal/logger"
)

// Ensure ChunkService implements the interface.
var _ driving.ChunkService = (*ChunkService)(nil)

// ChunkService normalises raw files and splits them into chunks.
type ChunkService struct {
	normalisers driven.NormaliserRegistry
	chunker     driven.Chunker
}

// NewChunkService creates a chunk service.
func NewChunkService(normalisers driven.NormaliserRegistry, chunker driven.Chunker) *ChunkService {
	return &ChunkService{normalisers: normalisers, chunker: chunker}
}

// ChunkDocument normalises raw and chunks every section.
// A zero cfg uses the chunker's configured size and overlap.
func (s *ChunkService) ChunkDocument(
	ctx context.Context, raw *domain.RawDocument, cfg domain.ChunkingConfig,
) ([]domain.Chunk, error) {
	if raw == nil || raw.URI == "" {
		return nil, fmt.Errorf("%w: document has no name", domain.ErrInvalidInput)
	}
	if cfg.ChunkSize < 0 || cfg.ChunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk size %d, overlap %d", domain.ErrInvalidInput, cfg.ChunkSize, cfg.ChunkOverlap)
	}
	logger.Debug("Chunking %s (%d bytes)", raw.URI, len(raw.Content))

	result, err := s.normalisers.Normalise(ctx, raw)
	if err != nil {
		return nil, err
	}

	doc := result.Document
	if doc.FileHash == "" {
		doc.FileHash = contentHash(raw.Content)
	}

	chunks, err := s.chunker.Chunk(ctx, &doc, cfg)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", raw.URI, err)
	}

	logger.Debug("Chunked %s into %d chunks (%s)", raw.URI, len(chunks), doc.Kind)
	return chunks, nil
}

// ChunkFile reads path and chunks it. The MIME type is guessed from the extension.
func (s *ChunkService) ChunkFile(ctx context.Context, path string, cfg domain.ChunkingConfig) ([]domain.Chunk, error) {
	raw, err := readRaw(path, nil)
	if err != nil {
		return nil, err
	}
	return s.ChunkDocument(ctx, raw, cfg)
}

// Supports reports whether the file extension can be chunked.
func (s *ChunkService) Supports(path string) bool {
	return s.normalisers.Supports(strings.ToLower(filepath.Ext(path)))
}

// readRaw loads a file into a RawDocument.
func readRaw(path string, metadata map[string]any) (*domain.RawDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &domain.RawDocument{
		URI:      path,
		MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Content:  data,
		Metadata: metadata,
	}, nil
}

// contentHash is the MD5 hex digest used for file and cache identity.
func contentHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
