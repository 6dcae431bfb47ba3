package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	indexAll         bool
	indexRetryFailed bool
	indexRebuild     bool
)

var indexCmd = &cobra.Command{
	Use:   "index [doc-id...]",
	Short: "Index documents",
	Long: `Chunks, embeds and activates documents in the vector index.

Pass document IDs to index specific documents, or use one of:
  --all            re-index every stored document
  --retry-failed   re-index documents whose last run failed
  --rebuild        reload stored embeddings without calling the embedder`,
	RunE: runIndex,
}

var statusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show a document's indexing status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var removeCmd = &cobra.Command{
	Use:   "remove [doc-id]",
	Short: "Remove a document from the index",
	Long: `Drops a document's entries from the index and deletes its stored
embeddings. The document itself is kept and can be indexed again.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	indexCmd.Flags().BoolVar(&indexAll, "all", false, "re-index every stored document")
	indexCmd.Flags().BoolVar(&indexRetryFailed, "retry-failed", false, "re-index failed documents")
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "reload the index from stored embeddings")
	indexCmd.MarkFlagsMutuallyExclusive("all", "retry-failed", "rebuild")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(removeCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexingService == nil {
		return errors.New("indexing service not configured")
	}

	ctx := cmd.Context()
	bulk := indexAll || indexRetryFailed || indexRebuild
	if bulk && len(args) > 0 {
		return errors.New("document IDs cannot be combined with --all, --retry-failed or --rebuild")
	}
	if !bulk && len(args) == 0 {
		return errors.New("specify document IDs or one of --all, --retry-failed, --rebuild")
	}

	switch {
	case indexAll:
		if err := indexingService.ReindexAll(ctx); err != nil {
			persistSnapshot(cmd)
			return fmt.Errorf("failed to re-index documents: %w", err)
		}
		cmd.Println("All documents indexed.")
	case indexRetryFailed:
		n, err := indexingService.RetryFailed(ctx)
		persistSnapshot(cmd)
		if err != nil {
			return fmt.Errorf("failed to retry documents (%d succeeded): %w", n, err)
		}
		cmd.Printf("Retried failed documents: %d indexed.\n", n)
		return nil
	case indexRebuild:
		n, err := indexingService.Rebuild(ctx)
		if err != nil {
			return fmt.Errorf("failed to rebuild index: %w", err)
		}
		cmd.Printf("Index rebuilt with %d entries.\n", n)
	default:
		ids, err := parseDocumentIDs(args)
		if err != nil {
			return err
		}
		var errs []error
		for _, id := range ids {
			if err := indexingService.IndexDocument(ctx, id); err != nil {
				cmd.PrintErrf("  %s document %d: %v\n", warnStyle.Render("failed"), id, err)
				errs = append(errs, err)
				continue
			}
			cmd.Printf("  indexed document %d\n", id)
		}
		persistSnapshot(cmd)
		if len(errs) > 0 {
			return fmt.Errorf("%d of %d documents failed to index: %w", len(errs), len(ids), errors.Join(errs...))
		}
		return nil
	}

	persistSnapshot(cmd)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	if indexingService == nil {
		return errors.New("indexing service not configured")
	}

	id, err := parseDocumentID(args[0])
	if err != nil {
		return err
	}

	st, err := indexingService.Status(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	cmd.Printf("Document: %d\n\n", st.DocumentID)
	cmd.Printf("  Status:    %s\n", st.Status)
	cmd.Printf("  Entries:   %d\n", st.Entries)
	cmd.Printf("  In flight: %t\n", st.InFlight)
	if st.ErrorMessage != "" {
		cmd.Printf("  Error:     %s\n", warnStyle.Render(st.ErrorMessage))
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	if indexingService == nil {
		return errors.New("indexing service not configured")
	}

	id, err := parseDocumentID(args[0])
	if err != nil {
		return err
	}

	removed, err := indexingService.RemoveDocument(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to remove document: %w", err)
	}
	persistSnapshot(cmd)

	cmd.Printf("Removed %d index entries for document %d.\n", removed, id)
	return nil
}

func parseDocumentID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document ID %q", s)
	}
	return id, nil
}

func parseDocumentIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseDocumentID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
