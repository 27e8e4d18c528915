package driven

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// DocumentStore records which files have been ingested and with what content hash.
type DocumentStore interface {
	// SaveDocument stores or updates a record keyed by SourceFile.
	SaveDocument(ctx context.Context, rec *domain.DocumentRecord) error

	// GetDocument retrieves a record. Returns domain.ErrNotFound when absent.
	GetDocument(ctx context.Context, sourceFile string) (*domain.DocumentRecord, error)

	// ListDocuments returns every record ordered by source file.
	ListDocuments(ctx context.Context) ([]domain.DocumentRecord, error)

	// DeleteDocument removes a record.
	DeleteDocument(ctx context.Context, sourceFile string) error

	// Clear removes every record.
	Clear(ctx context.Context) error
}
