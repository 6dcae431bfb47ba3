package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var (
	searchLimit      int
	searchJSON       bool
	searchNamespaces []string
	searchDocument   int64
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Performs semantic search across all indexed documents.
The query is embedded and compared against every chunk by cosine similarity,
then results are re-ranked so that recent documents score higher.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringSliceVar(&searchNamespaces, "namespace", nil, "restrict to namespaces (repeatable, * for all)")
	searchCmd.Flags().Int64Var(&searchDocument, "document", 0, "restrict to one document ID")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	filter := domain.SearchFilter{Namespaces: searchNamespaces}
	if searchDocument > 0 {
		id := searchDocument
		filter.DocumentID = &id
	}

	results, err := searchService.Search(cmd.Context(), query, searchLimit, filter)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

// searchResultView is the JSON shape of a search result.
type searchResultView struct {
	EmbeddingID     int64           `json:"embeddingId"`
	DocumentID      int64           `json:"documentId"`
	ChunkIndex      int             `json:"chunkIndex"`
	ChunkText       string          `json:"chunkText"`
	Namespace       *string         `json:"namespace"`
	RawScore        float64         `json:"rawScore"`
	FreshnessFactor float64         `json:"freshnessFactor"`
	AdjustedScore   float64         `json:"adjustedScore"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
	Attachments     json.RawMessage `json:"attachments"`
}

func newSearchResultView(r *domain.SearchResult) (searchResultView, error) {
	attachments, err := domain.MarshalAttachments(r.Attachments)
	if err != nil {
		return searchResultView{}, err
	}
	return searchResultView{
		EmbeddingID:     r.EmbeddingID,
		DocumentID:      r.DocumentID,
		ChunkIndex:      r.ChunkIndex,
		ChunkText:       r.ChunkText,
		Namespace:       r.Namespace,
		RawScore:        r.RawScore,
		FreshnessFactor: r.FreshnessFactor,
		AdjustedScore:   r.AdjustedScore,
		Metadata:        r.Metadata,
		Attachments:     attachments,
	}, nil
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	views := make([]searchResultView, 0, len(results))
	for i := range results {
		v, err := newSearchResultView(&results[i])
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		views = append(views, v)
	}
	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println(headingStyle.Render("Results:"))
	cmd.Println()
	for i := range results {
		r := &results[i]
		// Format: [N] Document D, chunk C (adjusted)
		cmd.Printf("  [%d] Document %d, chunk %d %s\n",
			i+1, r.DocumentID, r.ChunkIndex, scoreStyle.Render(fmt.Sprintf("(%.3f)", r.AdjustedScore)))
		cmd.Printf("      %s\n", mutedStyle.Render(fmt.Sprintf(
			"similarity %.3f, freshness %.2f", r.RawScore, r.FreshnessFactor)))
		if r.Namespace != nil {
			cmd.Printf("      Namespace: %s\n", *r.Namespace)
		}
		if text := snippet(r.ChunkText, snippetWidth); text != "" {
			cmd.Printf("      %s\n", text)
		}
		if len(r.Attachments) > 0 {
			cmd.Printf("      Attachments: %d\n", len(r.Attachments))
		}
		cmd.Println()
	}

	return nil
}
