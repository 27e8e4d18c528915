package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Cache targets accepted by cache clear.
const (
	cacheEmbeddings = "embeddings"
	cacheResponses  = "responses"
	cacheAll        = "all"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the embedding and response caches",
}

var cacheClearCmd = &cobra.Command{
	Use:       "clear [embeddings|responses|all]",
	Short:     "Clear cached embeddings, responses or both",
	Long:      `Clears a cache. Without an argument both caches are cleared. The index is not touched.`,
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{cacheEmbeddings, cacheResponses, cacheAll},
	RunE:      runCacheClear,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	if maintenanceService == nil {
		return notConfigured("maintenance")
	}

	target := cacheAll
	if len(args) == 1 {
		target = args[0]
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if target == cacheEmbeddings || target == cacheAll {
		if err := maintenanceService.ClearEmbeddingCache(ctx); err != nil {
			return fmt.Errorf("clearing embedding cache: %w", err)
		}
		fmt.Fprintln(out, "Embedding cache cleared.")
	}
	if target == cacheResponses || target == cacheAll {
		if err := maintenanceService.ClearResponseCache(ctx); err != nil {
			return fmt.Errorf("clearing response cache: %w", err)
		}
		fmt.Fprintln(out, "Response cache cleared.")
	}
	return nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return notConfigured("maintenance")
	}

	stats, err := maintenanceService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	out := cmd.OutOrStdout()
	e := stats.Embedding
	fmt.Fprintf(out, "Embedding model:    %s (%d dimensions)\n", e.Model, e.Dimensions)
	fmt.Fprintf(out, "Embedding cache:    %d entries, %d hits, %d misses\n", e.CacheEntries, e.CacheHits, e.CacheMisses)
	fmt.Fprintf(out, "Response cache:     %d entries\n", stats.ResponseCached)
	return nil
}
