package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driving"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a text file into a knowledge base",
	Long: `Reads a text file (or stdin when the argument is "-"), submits it for
ingestion and follows progress until the document is ready.

Ingestion is asynchronous: the document is chunked, embedded in batches
and committed to the vector and keyword indices. Re-ingesting identical
content is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

// Flags for ingest.
var (
	ingestKB           string
	ingestTitle        string
	ingestChunkSize    int
	ingestChunkOverlap int
	ingestNoWait       bool
)

func init() {
	ingestCmd.Flags().StringVarP(&ingestKB, "kb", "k", "", "knowledge base ID or name (required)")
	ingestCmd.Flags().StringVarP(&ingestTitle, "title", "t", "", "document title (default: file name)")
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "chunk size override in tokens")
	ingestCmd.Flags().IntVar(&ingestChunkOverlap, "chunk-overlap", 0, "chunk overlap override in tokens")
	ingestCmd.Flags().BoolVar(&ingestNoWait, "no-wait", false, "submit and exit without waiting for completion")
	_ = ingestCmd.MarkFlagRequired("kb") //nolint:errcheck // flag is registered above

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingestion service not configured")
	}

	text, title, err := readIngestInput(cmd, args[0])
	if err != nil {
		return err
	}
	if ingestTitle != "" {
		title = ingestTitle
	}

	kbID, err := resolveKnowledgeBaseID(cmd.Context(), ingestKB)
	if err != nil {
		return err
	}

	req := driving.IngestRequest{
		KnowledgeBaseID: kbID,
		Text:            text,
		Title:           title,
	}
	if ingestChunkSize > 0 || ingestChunkOverlap > 0 {
		req.ChunkConfig = &domain.ChunkConfig{
			ChunkSize:    ingestChunkSize,
			ChunkOverlap: ingestChunkOverlap,
		}
	}

	ctx := cmd.Context()
	receipt, err := ingestService.Ingest(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrBackpressure) {
			return fmt.Errorf("engine is at capacity, retry shortly: %w", err)
		}
		return fmt.Errorf("failed to ingest document: %w", err)
	}

	if receipt.Status.Terminal() {
		cmd.Printf("Document %s already ingested (%s).\n", receipt.IngestionID, receipt.Status)
		return nil
	}

	cmd.Printf("Ingesting document %s...\n", receipt.IngestionID)
	if ingestNoWait {
		cmd.Printf("Check progress with 'retrieva status %s'.\n", receipt.IngestionID)
		return nil
	}

	return followIngestion(cmd, receipt.IngestionID)
}

// followIngestion polls document status until it reaches a terminal
// state, printing embedding progress along the way.
func followIngestion(cmd *cobra.Command, documentID string) error {
	ctx := cmd.Context()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	lastEmbedded := -1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		status, err := ingestService.Status(ctx, documentID)
		if err != nil {
			return fmt.Errorf("failed to get ingestion status: %w", err)
		}

		if status.TotalChunks > 0 && status.EmbeddedChunks > lastEmbedded {
			cmd.Printf("\rEmbedding... %d/%d chunks", status.EmbeddedChunks, status.TotalChunks)
			lastEmbedded = status.EmbeddedChunks
		}

		if !status.Status.Terminal() {
			continue
		}

		cmd.Println()
		if status.Status == domain.DocumentFailed {
			return fmt.Errorf("ingestion failed: %d of %d chunks could not be embedded",
				status.FailedChunks, status.TotalChunks)
		}

		cmd.Printf("Document %s ready: %d chunks indexed", documentID, status.EmbeddedChunks)
		if status.FailedChunks > 0 {
			cmd.Printf(" (%d failed and excluded)", status.FailedChunks)
		}
		cmd.Println()
		return nil
	}
}

// readIngestInput loads the document text from a file, or from stdin
// when path is "-". The second return is the default title.
func readIngestInput(cmd *cobra.Command, path string) (string, string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), "stdin", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), filepath.Base(path), nil
}

// resolveKnowledgeBaseID turns a knowledge base ID or name into its ID.
// Falls back to the given value when the lookup service is absent.
func resolveKnowledgeBaseID(ctx context.Context, idOrName string) (string, error) {
	if kbService == nil {
		return idOrName, nil
	}
	kb, err := kbService.Get(ctx, idOrName)
	if err != nil {
		return "", fmt.Errorf("failed to resolve knowledge base %q: %w", idOrName, err)
	}
	return kb.ID, nil
}
