package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

func TestDocumentCmd_Subcommands(t *testing.T) {
	names := make([]string, 0, len(documentCmd.Commands()))
	for _, c := range documentCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "get", "remove"}, names)
}

func TestDocumentListCmd_Empty(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "document", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No documents ingested.")
}

func TestDocumentListCmd(t *testing.T) {
	env := setupTestServices(t)
	path := ingestBread(t, env)

	out, err := execute(t, "document", "list")

	require.NoError(t, err)
	assert.Contains(t, out, path+"  1 chunks  text")
}

func TestDocumentListCmd_JSON(t *testing.T) {
	env := setupTestServices(t)
	path := ingestBread(t, env)

	out, err := execute(t, "document", "list", "--json")
	require.NoError(t, err)

	var docs []domain.DocumentRecord
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, path, docs[0].SourceFile)
	assert.Equal(t, 1, docs[0].ChunkCount)
	assert.NotEmpty(t, docs[0].FileHash)
}

func TestDocumentGetCmd(t *testing.T) {
	env := setupTestServices(t)
	path := ingestBread(t, env)

	out, err := execute(t, "document", "get", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Path:     "+path)
	assert.Contains(t, out, "Type:     text")
	assert.Contains(t, out, "Chunks:   1")
}

func TestDocumentGetCmd_NotFound(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "document", "get", "missing.txt")

	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "failed to get document")
}

func TestDocumentRemoveCmd(t *testing.T) {
	env := setupTestServices(t)
	path := ingestBread(t, env)

	out, err := execute(t, "document", "remove", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 chunks from "+path)
	assert.Zero(t, env.index.Stats().LiveVectors)

	_, err = execute(t, "document", "remove", path)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
