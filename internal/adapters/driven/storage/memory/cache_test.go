package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

func TestEmbeddingCache_PutGet(t *testing.T) {
	ctx := context.Background()
	cache := NewEmbeddingCache()

	_, err := cache.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	vec := []float32{0.5, -0.5}
	require.NoError(t, cache.Put(ctx, "k", vec))

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	n, err := cache.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEmbeddingCache_CopiesVectors(t *testing.T) {
	ctx := context.Background()
	cache := NewEmbeddingCache()

	vec := []float32{1, 2}
	require.NoError(t, cache.Put(ctx, "k", vec))
	vec[0] = 100

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 100

	again, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, again)
}

func TestEmbeddingCache_Clear(t *testing.T) {
	ctx := context.Background()
	cache := NewEmbeddingCache()
	require.NoError(t, cache.Put(ctx, "a", []float32{1}))
	require.NoError(t, cache.Clear(ctx))

	n, err := cache.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResponseCache_PutGet(t *testing.T) {
	ctx := context.Background()
	cache := NewResponseCache()

	_, err := cache.Get(ctx, "q")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	resp := &domain.QueryResponse{
		Answer: "42",
		Sources: []domain.Source{{
			Text:            "the answer",
			Metadata:        domain.ChunkMetadata{SourceFile: "guide.txt", ChunkType: domain.ChunkTypeText},
			SimilarityScore: 0.9,
			Rank:            1,
		}},
		Metadata: domain.ResponseMetadata{Query: "q", RetrievedChunks: 1, ModelUsed: "m"},
	}
	require.NoError(t, cache.Put(ctx, "q", resp))

	got, err := cache.Get(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, resp, got)

	// Mutating the returned value does not affect the cache.
	got.Answer = "changed"
	again, err := cache.Get(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, "42", again.Answer)
}

func TestResponseCache_Corrupted(t *testing.T) {
	cache := NewResponseCache()
	cache.responses["bad"] = []byte("{")

	_, err := cache.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, domain.ErrCacheCorrupted)
}

func TestResponseCache_Clear(t *testing.T) {
	ctx := context.Background()
	cache := NewResponseCache()
	require.NoError(t, cache.Put(ctx, "a", &domain.QueryResponse{Answer: "x"}))
	require.NoError(t, cache.Clear(ctx))

	n, err := cache.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
