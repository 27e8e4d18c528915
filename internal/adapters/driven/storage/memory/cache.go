package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

var (
	_ driven.EmbeddingCache = (*EmbeddingCache)(nil)
	_ driven.ResponseCache  = (*ResponseCache)(nil)
)

// EmbeddingCache is an in-memory implementation of driven.EmbeddingCache.
// Vectors are copied on the way in and out.
type EmbeddingCache struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewEmbeddingCache creates an empty embedding cache.
func NewEmbeddingCache() *EmbeddingCache {
	return &EmbeddingCache{vectors: make(map[string][]float32)}
}

// Get returns the cached vector or domain.ErrCacheMiss.
func (c *EmbeddingCache) Get(_ context.Context, key string) ([]float32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vectors[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, nil
}

// Put stores a copy of vector under key.
func (c *EmbeddingCache) Put(_ context.Context, key string, vector []float32) error {
	v := make([]float32, len(vector))
	copy(v, vector)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors[key] = v
	return nil
}

// Len returns the number of cached vectors.
func (c *EmbeddingCache) Len(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors), nil
}

// Clear removes every cached vector.
func (c *EmbeddingCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors = make(map[string][]float32)
	return nil
}

// ResponseCache is an in-memory implementation of driven.ResponseCache.
// Responses are held as JSON so a cached entry cannot be mutated through
// a pointer returned by Get.
type ResponseCache struct {
	mu        sync.RWMutex
	responses map[string][]byte
}

// NewResponseCache creates an empty response cache.
func NewResponseCache() *ResponseCache {
	return &ResponseCache{responses: make(map[string][]byte)}
}

// Get returns the cached response or domain.ErrCacheMiss.
func (c *ResponseCache) Get(_ context.Context, key string) (*domain.QueryResponse, error) {
	c.mu.RLock()
	payload, ok := c.responses[key]
	c.mu.RUnlock()
	if !ok {
		return nil, domain.ErrCacheMiss
	}

	var resp domain.QueryResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: response %s: %w", domain.ErrCacheCorrupted, key, err)
	}
	return &resp, nil
}

// Put stores a response under key.
func (c *ResponseCache) Put(_ context.Context, key string, resp *domain.QueryResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshalling response: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[key] = payload
	return nil
}

// Len returns the number of cached responses.
func (c *ResponseCache) Len(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.responses), nil
}

// Clear removes every cached response.
func (c *ResponseCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = make(map[string][]byte)
	return nil
}
