package driven

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// Chunker splits a normalised document into ordered, overlapping chunks.
type Chunker interface {
	// Name returns the chunker identifier.
	Name() string

	// Chunk splits every section of doc. Overlap never crosses sections.
	// Empty text yields zero chunks and no error.
	Chunk(ctx context.Context, doc *domain.Document, cfg domain.ChunkingConfig) ([]domain.Chunk, error)
}
