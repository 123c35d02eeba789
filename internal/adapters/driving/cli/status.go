package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plinth-labs/retrieva/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status [document-id]",
	Short: "Show ingestion status for a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingestion service not configured")
	}

	status, err := ingestService.Status(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get ingestion status: %w", err)
	}

	cmd.Printf("Document: %s\n\n", status.DocumentID)
	cmd.Printf("  Status:   %s\n", status.Status)
	cmd.Printf("  Chunks:   %d\n", status.TotalChunks)
	cmd.Printf("  Embedded: %d\n", status.EmbeddedChunks)
	cmd.Printf("  Failed:   %d\n", status.FailedChunks)

	if status.Status == domain.DocumentFailed {
		if status.EmbeddedChunks > 0 {
			cmd.Println("\nThe document failed ingestion; its embedded chunks stay searchable until it is deleted.")
		} else {
			cmd.Println("\nThe document failed ingestion; none of its chunks are retrievable.")
		}
	}

	return nil
}
