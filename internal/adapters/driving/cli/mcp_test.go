package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPServeCmd_Flags(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)

	flag = mcpServeCmd.Flags().Lookup("http")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestMCPPorts(t *testing.T) {
	setupTestServices(t)

	ports := mcpPorts()

	require.NoError(t, ports.Validate())
	assert.NotNil(t, ports.Chunk)
	assert.NotNil(t, ports.Document)
	assert.NotNil(t, ports.Maintenance)
	assert.NotNil(t, ports.Metrics)
}

func TestMCPPorts_WithoutMetrics(t *testing.T) {
	SetServices(&Services{})

	ports := mcpPorts()

	assert.Nil(t, ports.Metrics)
	assert.Error(t, ports.Validate())
}
