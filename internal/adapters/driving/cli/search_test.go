package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "5", flag.DefValue)
}

func TestSearchCmd_PrintsResults(t *testing.T) {
	env := setupTestServices(t)
	path := ingestBread(t, env)

	out, err := execute(t, "search", "-n", "3", "flour")

	require.NoError(t, err)
	assert.Contains(t, out, "Results:")
	assert.Contains(t, out, "[1] "+path)
	assert.Contains(t, out, "Bread is made from flour")
	assert.Zero(t, env.llm.calls)
}

func TestSearchCmd_NoResults(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "search", "flour")

	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSearchCmd_JSON(t *testing.T) {
	env := setupTestServices(t)
	path := ingestBread(t, env)

	out, err := execute(t, "search", "--json", "flour")
	require.NoError(t, err)

	var hits []domain.SearchHit
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, path, hits[0].Metadata.SourceFile)
	assert.Equal(t, 1, hits[0].Rank)
}
