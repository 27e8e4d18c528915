package driving

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// EmbeddingGenerator maps text to unit-norm vectors with persistent memoisation.
type EmbeddingGenerator interface {
	// EmbedBatch embeds texts in groups of batchSize, consulting the cache when useCache is set.
	EmbedBatch(ctx context.Context, texts []string, batchSize int, useCache bool) ([][]float32, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedChunks returns one embedding per chunk, in chunk order.
	EmbedChunks(ctx context.Context, chunks []domain.Chunk, batchSize int) ([]domain.Embedding, error)

	// Dimensions returns the vector size.
	Dimensions() int

	// ModelName returns the embedding model identifier.
	ModelName() string

	// Stats summarises cache usage.
	Stats(ctx context.Context) EmbeddingStats

	// ClearCache removes every cached embedding.
	ClearCache(ctx context.Context) error
}

// EmbeddingStats summarises the embedding generator.
type EmbeddingStats struct {
	Model        string `json:"model"`
	Dimensions   int    `json:"dimensions"`
	CacheEntries int    `json:"cache_entries"`
	CacheHits    int64  `json:"cache_hits"`
	CacheMisses  int64  `json:"cache_misses"`
}
