package driving

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// ChunkService turns raw files into chunks. It has no side effects.
type ChunkService interface {
	// ChunkDocument normalises raw bytes and splits them into chunks.
	ChunkDocument(ctx context.Context, raw *domain.RawDocument, cfg domain.ChunkingConfig) ([]domain.Chunk, error)

	// ChunkFile reads path and chunks it.
	ChunkFile(ctx context.Context, path string, cfg domain.ChunkingConfig) ([]domain.Chunk, error)

	// Supports reports whether the file extension can be chunked.
	Supports(path string) bool
}
