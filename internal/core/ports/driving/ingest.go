package driving

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// IngestService indexes files and searches the index.
type IngestService interface {
	// IngestFile chunks, embeds and indexes one file, replacing any earlier version.
	IngestFile(ctx context.Context, path string, opts domain.IngestOptions) (*domain.IngestResult, error)

	// IngestBytes is IngestFile for content that is already in memory.
	IngestBytes(ctx context.Context, name string, data []byte, opts domain.IngestOptions) (*domain.IngestResult, error)

	// IngestDir ingests every supported file below dir.
	// Per-file failures are joined into the returned error; successes are still returned.
	IngestDir(ctx context.Context, dir string, opts domain.IngestOptions) ([]domain.IngestResult, error)

	// AddToIndex adds pre-embedded chunks to the index and returns their IDs.
	AddToIndex(ctx context.Context, embedded []domain.Chunk, vectors [][]float32) ([]string, error)

	// Search embeds query and returns the k nearest chunks, optionally filtered.
	Search(ctx context.Context, query string, k int, filter domain.MetadataFilter) ([]domain.SearchHit, error)
}
