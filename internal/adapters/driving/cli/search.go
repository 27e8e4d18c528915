package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

var (
	searchLimit  int
	searchFilter []string
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search indexed chunks",
	Long: `Returns the indexed chunks most similar to the text, without generating
an answer.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum number of results")
	searchCmd.Flags().StringArrayVar(&searchFilter, "filter", nil, "metadata filter key=value (repeatable)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return notConfigured("search")
	}

	filter, err := domain.ParseMetadataFilter(searchFilter)
	if err != nil {
		return err
	}

	hits, err := ingestService.Search(cmd.Context(), args[0], searchLimit, filter)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputJSON(cmd, hits)
	}
	outputSearchTable(cmd, hits)
	return nil
}

func outputSearchTable(cmd *cobra.Command, hits []domain.SearchHit) {
	out := cmd.OutOrStdout()
	if len(hits) == 0 {
		fmt.Fprintln(out, "No results found.")
		return
	}

	fmt.Fprintln(out, "Results:")
	fmt.Fprintln(out)
	for i := range hits {
		m := &hits[i].Metadata
		fmt.Fprintf(out, "  [%d] %s page %s (%.3f)\n", hits[i].Rank, m.SourceFile, pageLabel(m.PageNumber), hits[i].Score)
		fmt.Fprintf(out, "      %s\n", previewLine(hits[i].Text, 100))
		fmt.Fprintln(out)
	}
}
