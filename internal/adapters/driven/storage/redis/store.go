// Package redis provides shared embedding and response caches on Redis.
//
// Keys are namespaced per store ("embedding:<key>", "query:<key>") so each
// cache can be counted and cleared without touching the other.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/logger"
)

// Key prefixes for each cache.
const (
	EmbeddingPrefix = "embedding:"
	QueryPrefix     = "query:"
)

// scanBatch is the COUNT hint for SCAN and the DEL batch size.
const scanBatch = 500

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Store holds a Redis client shared by both caches.
type Store struct {
	client *redis.Client
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	logger.Debug("redis: connected to %s (db %d)", opts.Addr, opts.DB)
	return &Store{client: client}, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// EmbeddingCache returns the embedding cache backed by this store.
func (s *Store) EmbeddingCache() driven.EmbeddingCache {
	return &embeddingCache{store: s}
}

// ResponseCache returns the response cache backed by this store.
func (s *Store) ResponseCache() driven.ResponseCache {
	return &responseCache{store: s}
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, nil
}

func (s *Store) set(ctx context.Context, key string, data []byte) error {
	// Entries never expire; they are removed only by Clear.
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// count returns how many keys carry prefix.
func (s *Store) count(ctx context.Context, prefix string) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate %s keys: %w", prefix, err)
	}
	return n, nil
}

// clear deletes every key carrying prefix. Keys are collected before any
// DEL so the SCAN cursor never walks a keyspace that is shrinking under it.
func (s *Store) clear(ctx context.Context, prefix string) error {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate %s keys: %w", prefix, err)
	}

	for len(keys) > 0 {
		n := min(len(keys), scanBatch)
		if err := s.client.Del(ctx, keys[:n]...).Err(); err != nil {
			return fmt.Errorf("failed to delete %s keys: %w", prefix, err)
		}
		keys = keys[n:]
	}

	logger.Debug("redis: cleared %s*", prefix)
	return nil
}

// embeddingCache implements driven.EmbeddingCache.
type embeddingCache struct {
	store *Store
}

var _ driven.EmbeddingCache = (*embeddingCache)(nil)

// Get returns the cached vector.
func (c *embeddingCache) Get(ctx context.Context, key string) ([]float32, error) {
	data, err := c.store.get(ctx, EmbeddingPrefix+key)
	if err != nil {
		return nil, err
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, fmt.Errorf("%w: embedding %s: %w", domain.ErrCacheCorrupted, key, err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: embedding %s is empty", domain.ErrCacheCorrupted, key)
	}
	return vector, nil
}

// Put stores a vector.
func (c *embeddingCache) Put(ctx context.Context, key string, vector []float32) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	return c.store.set(ctx, EmbeddingPrefix+key, data)
}

// Len returns the number of cached vectors.
func (c *embeddingCache) Len(ctx context.Context) (int, error) {
	return c.store.count(ctx, EmbeddingPrefix)
}

// Clear removes every cached vector.
func (c *embeddingCache) Clear(ctx context.Context) error {
	return c.store.clear(ctx, EmbeddingPrefix)
}

// responseCache implements driven.ResponseCache.
type responseCache struct {
	store *Store
}

var _ driven.ResponseCache = (*responseCache)(nil)

// Get returns the cached response.
func (c *responseCache) Get(ctx context.Context, key string) (*domain.QueryResponse, error) {
	data, err := c.store.get(ctx, QueryPrefix+key)
	if err != nil {
		return nil, err
	}

	var resp domain.QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: response %s: %w", domain.ErrCacheCorrupted, key, err)
	}
	return &resp, nil
}

// Put stores a response.
func (c *responseCache) Put(ctx context.Context, key string, resp *domain.QueryResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	return c.store.set(ctx, QueryPrefix+key, data)
}

// Len returns the number of cached responses.
func (c *responseCache) Len(ctx context.Context) (int, error) {
	return c.store.count(ctx, QueryPrefix)
}

// Clear removes every cached response.
func (c *responseCache) Clear(ctx context.Context) error {
	return c.store.clear(ctx, QueryPrefix)
}
