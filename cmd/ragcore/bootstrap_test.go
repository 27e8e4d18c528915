package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

func setupHome(t *testing.T, config string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("RAGCORE_HOME", home)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	if config != "" {
		require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte(config), 0o600))
	}
	return home
}

func TestBootstrap_Defaults(t *testing.T) {
	ctx := context.Background()
	home := setupHome(t, "")

	svcs, cleanup, err := bootstrap("")
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, svcs.Ingest)
	require.NotNil(t, svcs.RAG)
	require.NotNil(t, svcs.Maintenance)
	require.NotNil(t, svcs.Metrics)

	doc := filepath.Join(t.TempDir(), "fees.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Fees for semester 2 are due March 1."), 0o600))
	res, err := svcs.Ingest.IngestFile(ctx, doc, domain.IngestOptions{})
	require.NoError(t, err)
	assert.Len(t, res.ChunkIDs, 1)

	hits, err := svcs.Ingest.Search(ctx, "When are fees due?", 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, doc, hits[0].Metadata.SourceFile)

	stats, err := svcs.Maintenance.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data"), stats.DataDir)
	assert.Equal(t, 1, stats.Documents)
}

func TestBootstrap_ReloadsIndex(t *testing.T) {
	ctx := context.Background()
	setupHome(t, "")

	svcs, cleanup, err := bootstrap("")
	require.NoError(t, err)
	_, err = svcs.Ingest.IngestBytes(ctx, "notes.txt", []byte("Pods are the smallest deployable unit."), domain.IngestOptions{})
	require.NoError(t, err)
	cleanup()

	svcs, cleanup, err = bootstrap("")
	require.NoError(t, err)
	defer cleanup()

	stats, err := svcs.Maintenance.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Index.LiveVectors)
	assert.Equal(t, 1, stats.Documents)
}

func TestBootstrap_MemoryCaches(t *testing.T) {
	setupHome(t, "[embedding]\ncache = \"memory\"\n\n[rag]\nresponse_cache = \"memory\"\n")

	svcs, cleanup, err := bootstrap("")
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, svcs.RAG)
}

func TestBootstrap_ExplicitConfigMustExist(t *testing.T) {
	setupHome(t, "")

	_, _, err := bootstrap(filepath.Join(t.TempDir(), "missing.toml"))

	assert.Error(t, err)
}

func TestBootstrap_BrokenEmbeddingKeepsSettings(t *testing.T) {
	setupHome(t, "[embedding]\nprovider = \"openai\"\nmodel = \"text-embedding-3-small\"\n")

	svcs, cleanup, err := bootstrap("")
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, svcs.Ingest)
	assert.Nil(t, svcs.RAG)
	require.NotNil(t, svcs.Settings)
	require.NoError(t, svcs.Settings.SetEmbeddingProvider(domain.AIProviderLocal, "", ""))
}
