package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragcore/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/ragcore/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragcore/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/ragcore/internal/core/domain"
)

type pipeline struct {
	ingest *IngestService
	rag    *RAGService
	llm    *fakeLLM
}

// newPipeline wires the whole stack in memory: built-in embedder, flat index,
// in-memory caches and a stub model.
func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	gen := NewEmbeddingGenerator(hashing.NewEmbeddingService(hashing.DefaultDimensions), memory.NewEmbeddingCache())
	idx, err := vectorindex.New(vectorindex.Config{Dimension: hashing.DefaultDimensions})
	require.NoError(t, err)

	llm := &fakeLLM{name: "llama3.2", local: true, answer: "Fees are due March 1."}
	p := &pipeline{
		ingest: NewIngestService(newTestChunkService(), gen, idx, memory.NewDocumentStore(), IngestConfig{
			DataDir:  t.TempDir(),
			Chunking: domain.ChunkingConfig{ChunkSize: 500, ChunkOverlap: 50},
		}),
		rag: NewRAGService(gen, idx, memory.NewResponseCache(), llm, nil, DefaultRAGConfig()),
		llm: llm,
	}
	p.rag.SetRetry(fastRetry())
	return p
}

func TestPipeline_AnswersFromSingleDocument(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	const sentence = "Fees for semester 2 are due March 1."

	res, err := p.ingest.IngestBytes(ctx, "fees.txt", []byte(sentence), domain.IngestOptions{})
	require.NoError(t, err)
	require.Len(t, res.ChunkIDs, 1)

	opts := domain.DefaultQueryOptions()
	opts.TopK = 1
	resp, err := p.rag.Query(ctx, "When are fees due?", opts)

	require.NoError(t, err)
	require.Len(t, resp.Sources, 1)
	src := resp.Sources[0]
	assert.Equal(t, 1, src.Rank)
	assert.Greater(t, src.SimilarityScore, 0.0)
	assert.Contains(t, src.Text, sentence)
	assert.Equal(t, "fees.txt", src.Metadata.SourceFile)
	assert.Equal(t, "Fees are due March 1.", resp.Answer)
	require.Len(t, p.llm.prompts, 1)
	assert.Contains(t, p.llm.prompts[0], sentence)
}

func TestPipeline_EmptyIndexSaysNoContext(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	resp, err := p.rag.Query(ctx, "anything", domain.DefaultQueryOptions())

	require.NoError(t, err)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, domain.NoContextAnswer, resp.Answer)
	assert.Zero(t, resp.Metadata.RetrievedChunks)
	assert.Zero(t, p.llm.callCount(), "nothing to ground an answer on")
}
