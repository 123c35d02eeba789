package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plinth-labs/retrieva/internal/core/domain"
)

// Flags for query.
var (
	queryKB    string
	queryTopK  int
	queryAlpha float64
	queryJSON  bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Query a knowledge base",
	Long: `Runs hybrid retrieval against a knowledge base.
Vector and keyword scores are blended by the knowledge base's alpha
weight; override it per query with --alpha.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryKB, "kb", "k", "", "knowledge base ID or name (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "n", domain.DefaultTopK, "maximum number of results")
	queryCmd.Flags().Float64Var(&queryAlpha, "alpha", -1,
		"blend override in [0,1]; 0 = pure keyword, 1 = pure vector (default: knowledge base setting)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	_ = queryCmd.MarkFlagRequired("kb") //nolint:errcheck // flag is registered above

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	kbID, err := resolveKnowledgeBaseID(cmd.Context(), queryKB)
	if err != nil {
		return err
	}

	opts := domain.QueryOptions{TopK: queryTopK}
	if queryAlpha >= 0 {
		alpha := queryAlpha
		opts.Alpha = &alpha
	}

	resp, err := queryService.Query(cmd.Context(), kbID, args[0], opts)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputQueryJSON(cmd, resp)
	}
	return outputQueryTable(cmd, resp)
}

func outputQueryJSON(cmd *cobra.Command, resp *domain.QueryResponse) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputQueryTable(cmd *cobra.Command, resp *domain.QueryResponse) error {
	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range resp.Results {
		r := &resp.Results[i]

		title := r.Citation.DocumentTitle
		if title == "" {
			title = r.DocumentID
		}

		cmd.Printf("  [%d] %s (%.3f)\n", i+1, title, r.Score)
		cmd.Printf("      Chunk %d, tokens %d-%d\n", r.Citation.Ordinal, r.Span.Start, r.Span.End)
		if r.Content != "" {
			cmd.Printf("      %s\n", snippet(r.Content, 160))
		}
		cmd.Println()
	}

	if resp.Partial {
		cmd.Println("Note: some results were dropped because their documents changed during the query.")
	}

	return nil
}

// snippet trims content to at most n runes for single-line display.
func snippet(content string, n int) string {
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	return string(runes[:n]) + "..."
}
