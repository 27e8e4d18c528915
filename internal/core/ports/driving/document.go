package driving

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// DocumentService manages the registry of ingested files.
type DocumentService interface {
	// List returns every ingested file.
	List(ctx context.Context) ([]domain.DocumentRecord, error)

	// Get retrieves one ingested file by its source path.
	Get(ctx context.Context, sourceFile string) (*domain.DocumentRecord, error)

	// Remove deletes a file's chunks from the index and its registry record.
	Remove(ctx context.Context, sourceFile string) (int, error)
}
