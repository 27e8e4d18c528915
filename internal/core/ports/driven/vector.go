package driven

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// VectorIndex stores chunk vectors with their metadata and answers
// nearest-neighbour queries.
//
// Implementations are safe for concurrent use: searches run in parallel,
// writes are serialised.
type VectorIndex interface {
	// Add inserts chunks with their vectors and returns the assigned chunk IDs.
	// Every vector must match Dimension(); otherwise domain.ErrDimensionMismatch
	// is returned and nothing is added.
	Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) ([]string, error)

	// Search returns at most k hits ordered by descending score.
	// An empty index returns an empty slice, not an error.
	Search(ctx context.Context, query []float32, k int) ([]domain.SearchHit, error)

	// SearchWithFilter returns at most k hits whose metadata matches filter.
	SearchWithFilter(ctx context.Context, filter domain.MetadataFilter, query []float32, k int) ([]domain.SearchHit, error)

	// Delete tombstones the given chunks and returns how many were live.
	Delete(ctx context.Context, chunkIDs ...string) (int, error)

	// DeleteBySource tombstones every chunk ingested from sourceFile.
	DeleteBySource(ctx context.Context, sourceFile string) (int, error)

	// ReplaceSource tombstones sourceFile's chunks and adds the new batch as
	// one step, returning the new IDs and how many chunks were replaced. The
	// batch is validated first; on error the index is unchanged.
	ReplaceSource(ctx context.Context, sourceFile string, chunks []domain.Chunk, vectors [][]float32) ([]string, int, error)

	// Compact rebuilds the index without tombstoned entries and returns how
	// many were dropped. Positions are renumbered.
	Compact() (int, error)

	// Train moves an approximate index from Untrained to Ready.
	// Flat indexes are always Ready and Train is a no-op.
	Train(ctx context.Context) error

	// State returns the training state.
	State() domain.TrainingState

	// Stats summarises the index.
	Stats() domain.IndexStats

	// Dimension returns the configured vector size.
	Dimension() int

	// Save writes the index file and metadata side-table under dir.
	Save(dir string) error

	// Load restores from dir. Returns false when no index exists there.
	// A malformed index returns domain.ErrIndexCorrupted.
	Load(dir string) (bool, error)

	// Clear empties the in-memory index.
	Clear()

	// RemoveIndexFile deletes the saved vectors under dir. The side-table is kept.
	RemoveIndexFile(dir string) error

	// RemoveSideTable deletes the saved metadata side-table under dir.
	RemoveSideTable(dir string) error

	// Close releases resources.
	Close() error
}
