package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexStatsJSON bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and maintain the vector index",
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE:  runIndexStats,
}

var indexClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every vector from the index",
	Long: `Empties the index and deletes its file. The metadata side-table, the
document registry and both caches are kept.`,
	Args: cobra.NoArgs,
	RunE: runIndexClear,
}

var indexClearMetadataCmd = &cobra.Command{
	Use:   "clear-metadata",
	Short: "Remove the metadata side-table and document registry",
	Args:  cobra.NoArgs,
	RunE:  runIndexClearMetadata,
}

var indexCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Drop removed chunks and rewrite the index",
	Args:  cobra.NoArgs,
	RunE:  runIndexCompact,
}

var indexTrainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the approximate (ivf) index",
	Args:  cobra.NoArgs,
	RunE:  runIndexTrain,
}

func init() {
	indexStatsCmd.Flags().BoolVar(&indexStatsJSON, "json", false, "output statistics as JSON")
	indexCmd.AddCommand(indexStatsCmd)
	indexCmd.AddCommand(indexClearCmd)
	indexCmd.AddCommand(indexClearMetadataCmd)
	indexCmd.AddCommand(indexCompactCmd)
	indexCmd.AddCommand(indexTrainCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexStats(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return notConfigured("maintenance")
	}

	stats, err := maintenanceService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	if indexStatsJSON {
		return outputJSON(cmd, stats)
	}

	out := cmd.OutOrStdout()
	ix := stats.Index
	fmt.Fprintf(out, "Index type:     %s (%s)\n", ix.Type, ix.Metric)
	fmt.Fprintf(out, "Dimension:      %d\n", ix.Dimension)
	fmt.Fprintf(out, "Vectors:        %d live, %d removed\n", ix.LiveVectors, ix.Tombstoned)
	fmt.Fprintf(out, "Training:       %s\n", ix.TrainingState)
	if ix.Lists > 0 {
		fmt.Fprintf(out, "Lists:          %d\n", ix.Lists)
	}
	fmt.Fprintf(out, "Documents:      %d\n", stats.Documents)
	if stats.DataDir != "" {
		fmt.Fprintf(out, "Data directory: %s\n", stats.DataDir)
	}
	return nil
}

func runIndexClear(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return notConfigured("maintenance")
	}
	if err := maintenanceService.ClearIndex(cmd.Context()); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Index cleared.")
	return nil
}

func runIndexClearMetadata(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return notConfigured("maintenance")
	}
	if err := maintenanceService.ClearMetadata(cmd.Context()); err != nil {
		return fmt.Errorf("clearing metadata: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Metadata cleared.")
	return nil
}

func runIndexCompact(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return notConfigured("maintenance")
	}
	if err := maintenanceService.Compact(cmd.Context()); err != nil {
		return fmt.Errorf("compacting index: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Index compacted.")
	return nil
}

func runIndexTrain(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return notConfigured("maintenance")
	}
	if err := maintenanceService.Train(cmd.Context()); err != nil {
		return fmt.Errorf("training index: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Index trained.")
	return nil
}
