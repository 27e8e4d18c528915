package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

var (
	queryTopK    int
	queryLocal   bool
	queryNoCache bool
	queryFilter  []string
	queryJSON    bool
	queryYAML    bool
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question from indexed documents",
	Long: `Retrieves the chunks most similar to the question and asks a language
model to answer from them. The local model is tried first unless --local=false;
the remote model is the fallback.

Answers are cached by question, top-k and model. Use --no-cache to bypass it.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (default from settings)")
	queryCmd.Flags().BoolVar(&queryLocal, "local", true, "try the local model first")
	queryCmd.Flags().BoolVar(&queryNoCache, "no-cache", false, "bypass the response cache")
	queryCmd.Flags().StringArrayVar(&queryFilter, "filter", nil, "metadata filter key=value (repeatable)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the response as JSON")
	queryCmd.Flags().BoolVar(&queryYAML, "yaml", false, "output the response as YAML")
	queryCmd.MarkFlagsMutuallyExclusive("json", "yaml")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return notConfigured("rag")
	}

	filter, err := domain.ParseMetadataFilter(queryFilter)
	if err != nil {
		return err
	}

	opts := domain.QueryOptions{
		TopK:          queryTopK,
		UseLocalModel: queryLocal,
		UseCache:      !queryNoCache,
		Filter:        filter,
	}

	resp, err := ragService.Query(cmd.Context(), args[0], opts)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return err
		}
		return fmt.Errorf("query failed: %w", err)
	}

	switch {
	case queryJSON:
		return outputJSON(cmd, resp)
	case queryYAML:
		return outputYAML(cmd, resp)
	}
	outputAnswer(cmd, resp)
	return nil
}

func outputAnswer(cmd *cobra.Command, resp *domain.QueryResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, resp.Answer)

	if len(resp.Sources) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for i := range resp.Sources {
			src := &resp.Sources[i]
			fmt.Fprintf(out, "  [%d] %s page %s (%.3f)\n",
				src.Rank, src.Metadata.SourceFile, pageLabel(src.Metadata.PageNumber), src.SimilarityScore)
			fmt.Fprintf(out, "      %s\n", previewLine(src.Text, 100))
		}
	}

	meta := resp.Metadata
	status := ""
	switch {
	case meta.Cached:
		status = ", cached"
	case meta.Degraded:
		status = ", degraded"
	}
	fmt.Fprintf(out, "\nmodel %s, %d chunks, %.2fs%s\n", meta.ModelUsed, meta.RetrievedChunks, meta.ProcessingTime, status)
}
