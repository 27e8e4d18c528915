package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

var (
	chunkJSON    bool
	chunkSize    int
	chunkOverlap int
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <file>",
	Short: "Show how a file would be chunked",
	Long: `Normalises and chunks a file without embedding or indexing it.
Useful for tuning chunk size and overlap.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().BoolVar(&chunkJSON, "json", false, "output chunks as JSON")
	chunkCmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "override the configured chunk size")
	chunkCmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "override the configured chunk overlap")
	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cmd *cobra.Command, args []string) error {
	if chunkService == nil {
		return notConfigured("chunk")
	}

	cfg, err := chunkingOverride(chunkSize, chunkOverlap)
	if err != nil {
		return err
	}

	chunks, err := chunkService.ChunkFile(cmd.Context(), args[0], cfg)
	if err != nil {
		return fmt.Errorf("chunk failed: %w", err)
	}

	if chunkJSON {
		if chunks == nil {
			chunks = []domain.Chunk{}
		}
		return outputJSON(cmd, chunks)
	}
	outputChunkTable(cmd, chunks)
	return nil
}

func outputChunkTable(cmd *cobra.Command, chunks []domain.Chunk) {
	out := cmd.OutOrStdout()
	if len(chunks) == 0 {
		fmt.Fprintln(out, "No chunks produced.")
		return
	}

	for i := range chunks {
		m := &chunks[i].Metadata
		fmt.Fprintf(out, "[%d] %s page %s, %d chars, ~%d tokens\n",
			m.ChunkIndex, m.ChunkType, pageLabel(m.PageNumber), m.CharCount, m.TokenCount)
		fmt.Fprintf(out, "    %s\n", previewLine(chunks[i].Text, 120))
	}
	fmt.Fprintf(out, "\n%d chunks\n", len(chunks))
}
