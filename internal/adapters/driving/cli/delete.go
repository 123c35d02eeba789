package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete a document and its indexed chunks",
	Long: `Removes a document, its chunks and all derived index entries.
Safe against in-flight ingestions: remaining work is cancelled and
already-indexed chunks are removed. Deleting an unknown ID succeeds.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingestion service not configured")
	}

	docID := args[0]
	if err := ingestService.Delete(cmd.Context(), docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Deleted document %s.\n", docID)
	return nil
}
