package driven

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// EmbeddingCache memoises vectors by content hash.
// Writes are idempotent: the same key always maps to the same vector.
type EmbeddingCache interface {
	// Get returns the cached vector.
	// Returns domain.ErrCacheMiss when absent and domain.ErrCacheCorrupted
	// when the stored value cannot be decoded.
	Get(ctx context.Context, key string) ([]float32, error)

	// Put stores a vector under key.
	Put(ctx context.Context, key string, vector []float32) error

	// Len returns the number of cached vectors.
	Len(ctx context.Context) (int, error)

	// Clear removes every cached vector. Other stores are unaffected.
	Clear(ctx context.Context) error
}

// ResponseCache memoises RAG answers by query hash.
// Entries are immutable once written.
type ResponseCache interface {
	// Get returns the cached response.
	// Returns domain.ErrCacheMiss when absent and domain.ErrCacheCorrupted
	// when the stored value cannot be decoded.
	Get(ctx context.Context, key string) (*domain.QueryResponse, error)

	// Put stores a response under key.
	Put(ctx context.Context, key string, resp *domain.QueryResponse) error

	// Len returns the number of cached responses.
	Len(ctx context.Context) (int, error)

	// Clear removes every cached response. Other stores are unaffected.
	Clear(ctx context.Context) error
}
