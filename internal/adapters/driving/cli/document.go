package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

var documentJSON bool

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage ingested files",
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested files",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Show an ingested file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentRemoveCmd = &cobra.Command{
	Use:   "remove <path>",
	Short: "Remove a file's chunks from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentRemove,
}

func init() {
	documentListCmd.Flags().BoolVar(&documentJSON, "json", false, "output as JSON")
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentRemoveCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	docs, err := documentService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if documentJSON {
		if docs == nil {
			docs = []domain.DocumentRecord{}
		}
		return outputJSON(cmd, docs)
	}

	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents ingested.")
		return nil
	}
	for i := range docs {
		fmt.Fprintf(out, "  %s  %d chunks  %s  %s\n",
			docs[i].SourceFile, docs[i].ChunkCount, docs[i].ChunkType,
			docs[i].IngestedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	doc, err := documentService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Path:     %s\n", doc.SourceFile)
	fmt.Fprintf(out, "Hash:     %s\n", doc.FileHash)
	fmt.Fprintf(out, "Type:     %s\n", doc.ChunkType)
	fmt.Fprintf(out, "Chunks:   %d\n", doc.ChunkCount)
	fmt.Fprintf(out, "Ingested: %s\n", doc.IngestedAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}

func runDocumentRemove(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	n, err := documentService.Remove(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to remove document: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d chunks from %s.\n", n, args[0])
	return nil
}
