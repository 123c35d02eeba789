package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Inspect ingested documents",
	Long:  `List documents, show their ingestion state, or print their reassembled text.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list [kb]",
	Short: "List documents in a knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print the document text reassembled from its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

func init() {
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentContentCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ctx := context.Background()

	kbID, err := resolveKnowledgeBaseID(ctx, args[0])
	if err != nil {
		return err
	}

	docs, err := documentService.ListByKnowledgeBase(ctx, kbID)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Printf("No documents in knowledge base %s.\n", kbID)
		return nil
	}

	cmd.Printf("Documents in knowledge base %s:\n\n", kbID)
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Title:  %s\n", docs[i].Title)
		cmd.Printf("    Status: %s\n", docs[i].Status)
		if docs[i].ChunkCount > 0 {
			cmd.Printf("    Chunks: %d\n", docs[i].ChunkCount)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ctx := context.Background()

	doc, err := documentService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Title:          %s\n", doc.Title)
	cmd.Printf("  Knowledge base: %s\n", doc.KnowledgeBaseID)
	cmd.Printf("  Status:         %s\n", doc.Status)
	cmd.Printf("  Chunks:         %d\n", doc.ChunkCount)
	if doc.FailedChunks > 0 {
		cmd.Printf("  Failed chunks:  %d\n", doc.FailedChunks)
	}
	cmd.Printf("  Content hash:   %s\n", doc.ContentHash)
	cmd.Printf("  Chunking:       %d tokens, %d overlap\n",
		doc.ChunkConfig.ChunkSize, doc.ChunkConfig.ChunkOverlap)
	cmd.Printf("  Created:        %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:        %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ctx := context.Background()

	content, err := documentService.GetContent(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get document content: %w", err)
	}

	cmd.Println(content)
	return nil
}
