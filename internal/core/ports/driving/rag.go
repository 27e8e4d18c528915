package driving

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// RAGService answers questions from indexed documents.
type RAGService interface {
	// Query answers text using retrieved context.
	// Returns domain.ErrEmbeddingBackendUnavailable when the query cannot be embedded,
	// and domain.ErrGenerationBackendUnavailable when no backend answers and
	// degraded responses are disabled.
	Query(ctx context.Context, text string, opts domain.QueryOptions) (*domain.QueryResponse, error)

	// ClearCache removes every cached response.
	ClearCache(ctx context.Context) error
}
