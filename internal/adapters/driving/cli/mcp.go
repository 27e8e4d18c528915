package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragcore/internal/adapters/driving/mcp"
	"github.com/custodia-labs/ragcore/internal/core/services"
)

// Port range tried by mcp serve --http.
const (
	mcpPortStart = 8765
	mcpPortEnd   = 8799
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server exposing the rag_query,
index_search, chunk_document and ingest_file tools.

By default, the server communicates over stdio using JSON-RPC.

Use --port (or --http to pick a free port) to serve streamable HTTP instead.
The HTTP server also exposes Prometheus metrics at /metrics.

Examples:
  # Stdio mode (default)
  ragcore mcp serve

  # HTTP mode
  ragcore mcp serve --port 8080

MCP client configuration:
  {
    "mcpServers": {
      "ragcore": {
        "command": "/path/to/ragcore",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().Bool("http", false, "serve HTTP on the first free port from 8765")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	useHTTP, err := cmd.Flags().GetBool("http")
	if err != nil {
		return fmt.Errorf("getting http flag: %w", err)
	}

	server, err := mcp.NewServer(mcpPorts())
	if err != nil {
		return err
	}

	if port == 0 && useHTTP {
		port, err = services.FindAvailablePort("", mcpPortStart, mcpPortEnd)
		if err != nil {
			return err
		}
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}

func mcpPorts() *mcp.Ports {
	ports := &mcp.Ports{
		RAG:         ragService,
		Ingest:      ingestService,
		Chunk:       chunkService,
		Document:    documentService,
		Maintenance: maintenanceService,
	}
	if metricsExporter != nil {
		ports.Metrics = metricsExporter.Handler()
	}
	return ports
}
