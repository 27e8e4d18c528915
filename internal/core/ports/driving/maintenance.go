package driving

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// MaintenanceService clears and inspects the four persistent stores.
// Clearing one store never touches another.
type MaintenanceService interface {
	// ClearIndex removes the index file and empties the in-memory index.
	ClearIndex(ctx context.Context) error

	// ClearMetadata removes the metadata side-table and the document registry.
	ClearMetadata(ctx context.Context) error

	// ClearEmbeddingCache removes every cached embedding.
	ClearEmbeddingCache(ctx context.Context) error

	// ClearResponseCache removes every cached answer.
	ClearResponseCache(ctx context.Context) error

	// Compact rebuilds the index without tombstoned entries and saves it.
	Compact(ctx context.Context) error

	// Train trains an approximate index and saves it.
	Train(ctx context.Context) error

	// Stats reports the state of every store.
	Stats(ctx context.Context) (*SystemStats, error)
}

// SystemStats reports the state of every store.
type SystemStats struct {
	Index          domain.IndexStats `json:"index"`
	Embedding      EmbeddingStats    `json:"embedding"`
	ResponseCached int               `json:"response_cache_entries"`
	Documents      int               `json:"documents"`
	DataDir        string            `json:"data_dir"`
}
