package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragcore/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/ragcore/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragcore/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/ragcore/internal/core/domain"
)

type maintenanceFixture struct {
	*ingestFixture
	responses *memory.ResponseCache
	svc       *MaintenanceService
}

func newMaintenanceFixture(t *testing.T) *maintenanceFixture {
	t.Helper()
	ctx := context.Background()
	f := newIngestFixture(t)
	_, err := f.svc.IngestBytes(ctx, "bread.txt", []byte(breadText), domain.IngestOptions{})
	require.NoError(t, err)
	_, err = f.svc.IngestBytes(ctx, "kube.txt", []byte(kubeText), domain.IngestOptions{})
	require.NoError(t, err)

	responses := memory.NewResponseCache()
	require.NoError(t, responses.Put(ctx, "k", &domain.QueryResponse{Answer: "a"}))

	m := &maintenanceFixture{ingestFixture: f, responses: responses}
	m.svc = NewMaintenanceService(f.index, f.docs, f.gen, responses, f.dataDir)
	m.svc.SetMetrics(f.metrics)
	return m
}

func (f *maintenanceFixture) counts(t *testing.T) (vectors, docs, embeddings, responses int) {
	t.Helper()
	ctx := context.Background()
	recs, err := f.docs.ListDocuments(ctx)
	require.NoError(t, err)
	embeddings, err = f.cache.Len(ctx)
	require.NoError(t, err)
	responses, err = f.responses.Len(ctx)
	require.NoError(t, err)
	return f.index.Stats().LiveVectors, len(recs), embeddings, responses
}

func TestMaintenanceService_ClearIndex(t *testing.T) {
	f := newMaintenanceFixture(t)

	require.NoError(t, f.svc.ClearIndex(context.Background()))

	vectors, docs, embeddings, responses := f.counts(t)
	assert.Zero(t, vectors)
	assert.Equal(t, 2, docs)
	assert.Positive(t, embeddings)
	assert.Equal(t, 1, responses)
	assert.NoFileExists(t, filepath.Join(f.dataDir, vectorindex.IndexFileName))
	assert.FileExists(t, filepath.Join(f.dataDir, vectorindex.MetadataFileName))
	assert.Zero(t, f.metrics.indexSize)
}

func TestMaintenanceService_ClearMetadata(t *testing.T) {
	f := newMaintenanceFixture(t)
	before, _, _, _ := f.counts(t)

	require.NoError(t, f.svc.ClearMetadata(context.Background()))

	vectors, docs, embeddings, responses := f.counts(t)
	assert.Equal(t, before, vectors)
	assert.Zero(t, docs)
	assert.Positive(t, embeddings)
	assert.Equal(t, 1, responses)
	assert.FileExists(t, filepath.Join(f.dataDir, vectorindex.IndexFileName))
	assert.NoFileExists(t, filepath.Join(f.dataDir, vectorindex.MetadataFileName))
}

func TestMaintenanceService_ClearCaches(t *testing.T) {
	ctx := context.Background()
	f := newMaintenanceFixture(t)
	before, _, _, _ := f.counts(t)

	require.NoError(t, f.svc.ClearEmbeddingCache(ctx))
	_, _, embeddings, responses := f.counts(t)
	assert.Zero(t, embeddings)
	assert.Equal(t, 1, responses)

	require.NoError(t, f.svc.ClearResponseCache(ctx))
	vectors, docs, _, responses := f.counts(t)
	assert.Zero(t, responses)
	assert.Equal(t, before, vectors)
	assert.Equal(t, 2, docs)
}

func TestMaintenanceService_Compact(t *testing.T) {
	ctx := context.Background()
	f := newMaintenanceFixture(t)
	_, err := f.ingestFixture.svc.RemoveSource(ctx, "bread.txt")
	require.NoError(t, err)
	live := f.index.Stats().LiveVectors
	require.Greater(t, f.index.Stats().TotalVectors, live)

	require.NoError(t, f.svc.Compact(ctx))

	assert.Equal(t, live, f.index.Stats().TotalVectors)

	reloaded, err := vectorindex.New(vectorindex.Config{Dimension: 64})
	require.NoError(t, err)
	found, err := reloaded.Load(f.dataDir)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, live, reloaded.Stats().TotalVectors)
}

func TestMaintenanceService_Train(t *testing.T) {
	ctx := context.Background()
	idx, err := vectorindex.New(vectorindex.Config{Dimension: 4, Type: domain.IndexTypeIVF, NList: 2, NProbe: 1})
	require.NoError(t, err)
	_, err = idx.Add(ctx,
		[]domain.Chunk{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}},
		[][]float32{{1, 0, 0, 0}, {0.9, 0.1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0.9, 0.1}})
	require.NoError(t, err)
	require.Equal(t, domain.TrainingStateUntrained, idx.State())
	svc := NewMaintenanceService(idx, nil, nil, nil, t.TempDir())

	require.NoError(t, svc.Train(ctx))

	assert.Equal(t, domain.TrainingStateReady, idx.State())
}

func TestMaintenanceService_Stats(t *testing.T) {
	f := newMaintenanceFixture(t)

	stats, err := f.svc.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, f.index.Stats(), stats.Index)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 1, stats.ResponseCached)
	assert.Positive(t, stats.Embedding.CacheEntries)
	assert.Equal(t, hashing.ModelName(64), stats.Embedding.Model)
	assert.Equal(t, f.dataDir, stats.DataDir)
}

func TestMaintenanceService_NilStores(t *testing.T) {
	ctx := context.Background()
	idx, err := vectorindex.New(vectorindex.Config{Dimension: 4})
	require.NoError(t, err)
	svc := NewMaintenanceService(idx, nil, nil, nil, "")

	assert.NoError(t, svc.ClearIndex(ctx))
	assert.NoError(t, svc.ClearMetadata(ctx))
	assert.NoError(t, svc.ClearEmbeddingCache(ctx))
	assert.NoError(t, svc.ClearResponseCache(ctx))
	assert.NoError(t, svc.Compact(ctx))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Index.TotalVectors)
}
