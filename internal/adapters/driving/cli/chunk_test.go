package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

func TestChunkCmd_PrintsChunks(t *testing.T) {
	setupTestServices(t)
	path := writeTestFile(t, t.TempDir(), "bread.txt", breadText)

	out, err := execute(t, "chunk", path)

	require.NoError(t, err)
	assert.Contains(t, out, "[0] text page -")
	assert.Contains(t, out, "1 chunks")
}

func TestChunkCmd_SmallChunkSize(t *testing.T) {
	setupTestServices(t)
	text := strings.Repeat("Knead the dough until it is smooth and elastic. ", 20)
	path := writeTestFile(t, t.TempDir(), "knead.txt", text)

	out, err := execute(t, "chunk", "--json", "--chunk-size", "20", "--chunk-overlap", "2", path)
	require.NoError(t, err)

	var chunks []domain.Chunk
	require.NoError(t, json.Unmarshal([]byte(out), &chunks))
	assert.Greater(t, len(chunks), 1)
	for i := range chunks {
		assert.Equal(t, i, chunks[i].Metadata.ChunkIndex)
	}
}

func TestChunkCmd_UnsupportedFile(t *testing.T) {
	setupTestServices(t)
	path := writeTestFile(t, t.TempDir(), "image.bin", "\x00\x01")

	_, err := execute(t, "chunk", path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk failed")
}

func TestChunkCmd_InvalidOverride(t *testing.T) {
	setupTestServices(t)
	path := writeTestFile(t, t.TempDir(), "bread.txt", breadText)

	_, err := execute(t, "chunk", "--chunk-size", "10", "--chunk-overlap", "10", path)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
