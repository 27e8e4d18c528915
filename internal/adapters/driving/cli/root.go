// Package cli implements the ragcore command line with cobra. Commands call
// the driving ports only; cmd/ragcore wires the adapters behind them.
package cli

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragcore/internal/core/ports/driving"
	"github.com/custodia-labs/ragcore/internal/logger"
)

// skipBootstrap marks commands that run without building services.
const skipBootstrap = "skip-bootstrap"

// version is set at build time via SetVersion.
var version = "dev"

// MetricsExporter renders collected metrics.
type MetricsExporter interface {
	// WriteText writes the Prometheus text exposition.
	WriteText(w io.Writer) error

	// Handler serves the exposition over HTTP.
	Handler() http.Handler
}

// Services holds the driving ports the commands call. Nil fields make the
// matching commands report "not configured".
type Services struct {
	Ingest      driving.IngestService
	Chunk       driving.ChunkService
	RAG         driving.RAGService
	Maintenance driving.MaintenanceService
	Document    driving.DocumentService
	Settings    driving.SettingsService
	Metrics     MetricsExporter
}

// Bootstrap builds the services from a config file path. An empty path uses
// the default location. The returned func releases everything it opened.
type Bootstrap func(configFile string) (*Services, func(), error)

var (
	ingestService      driving.IngestService
	chunkService       driving.ChunkService
	ragService         driving.RAGService
	maintenanceService driving.MaintenanceService
	documentService    driving.DocumentService
	settingsService    driving.SettingsService
	metricsExporter    MetricsExporter

	bootstrap Bootstrap
	release   func()

	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ragcore",
	Short: "Answer questions from your own documents",
	Long: `ragcore ingests text, markdown, HTML, PDF, DOCX and tabular files into a
local vector index and answers questions from them with a local or remote
language model.`,
	SilenceUsage:      true,
	PersistentPreRunE: runBootstrap,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if release != nil {
			release()
			release = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/.ragcore/config.toml)")
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if bootstrap == nil || cmd.Annotations[skipBootstrap] == "true" {
		return nil
	}
	svcs, cleanup, err := bootstrap(configFile)
	if err != nil {
		return err
	}
	SetServices(svcs)
	release = cleanup
	return nil
}

// SetServices installs the driving ports used by every command.
func SetServices(s *Services) {
	ingestService = s.Ingest
	chunkService = s.Chunk
	ragService = s.RAG
	maintenanceService = s.Maintenance
	documentService = s.Document
	settingsService = s.Settings
	metricsExporter = s.Metrics
}

// SetBootstrap installs the function that builds services before a command runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetVersion sets the version reported by the version command and MCP server.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func notConfigured(name string) error {
	return errors.New(name + " service not configured")
}
