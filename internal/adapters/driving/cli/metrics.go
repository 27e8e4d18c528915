package cli

import (
	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print collected metrics",
	Long: `Prints cache, query, ingest and backend metrics in the Prometheus text
format. Counters cover this process only; use "mcp serve --port" to scrape
a long-running server at /metrics.`,
	Args: cobra.NoArgs,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, _ []string) error {
	if metricsExporter == nil {
		return notConfigured("metrics")
	}
	return metricsExporter.WriteText(cmd.OutOrStdout())
}
