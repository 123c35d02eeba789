package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plinth-labs/retrieva/internal/core/domain"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage knowledge bases",
	Long:  `Create, list, or inspect knowledge bases.`,
}

var kbCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a knowledge base",
	Long: `Creates a knowledge base with the given name.

The embedding model is pinned at creation time: every document ingested
later is embedded with this model, and the vector index dimensionality
follows from it.`,
	Args: cobra.ExactArgs(1),
	RunE: runKBCreate,
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge bases",
	RunE:  runKBList,
}

var kbShowCmd = &cobra.Command{
	Use:   "show [kb-id]",
	Short: "Show knowledge base configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runKBShow,
}

// Flags for kb create.
var (
	kbOwner        string
	kbModel        string
	kbChunkSize    int
	kbChunkOverlap int
	kbHybridWeight float64
	kbPolicy       string
)

func init() {
	kbCreateCmd.Flags().StringVar(&kbOwner, "owner", "", "owner recorded on the knowledge base")
	kbCreateCmd.Flags().StringVar(&kbModel, "model", "", "embedding model (default: configured provider's model)")
	kbCreateCmd.Flags().IntVar(&kbChunkSize, "chunk-size", 0, "default chunk size in tokens")
	kbCreateCmd.Flags().IntVar(&kbChunkOverlap, "chunk-overlap", 0, "default chunk overlap in tokens")
	kbCreateCmd.Flags().Float64Var(&kbHybridWeight, "alpha", domain.DefaultHybridWeight,
		"hybrid ranking weight in [0,1]; 0 = pure keyword, 1 = pure vector")
	kbCreateCmd.Flags().StringVar(&kbPolicy, "policy", "",
		"failure policy: strict (any failed chunk fails the document) or partial")

	kbCmd.AddCommand(kbCreateCmd)
	kbCmd.AddCommand(kbListCmd)
	kbCmd.AddCommand(kbShowCmd)
	rootCmd.AddCommand(kbCmd)
}

func runKBCreate(cmd *cobra.Command, args []string) error {
	if kbService == nil {
		return errors.New("knowledge base service not configured")
	}

	ctx := context.Background()

	kb := domain.KnowledgeBase{
		Name:             args[0],
		Owner:            kbOwner,
		EmbeddingModelID: kbModel,
		HybridWeight:     kbHybridWeight,
		FailurePolicy:    domain.FailurePolicy(kbPolicy),
		ChunkConfig: domain.ChunkConfig{
			ChunkSize:    kbChunkSize,
			ChunkOverlap: kbChunkOverlap,
		},
	}

	created, err := kbService.Create(ctx, kb)
	if err != nil {
		return fmt.Errorf("failed to create knowledge base: %w", err)
	}

	cmd.Printf("Created knowledge base %s\n", created.ID)
	cmd.Printf("  Name:   %s\n", created.Name)
	cmd.Printf("  Model:  %s\n", created.EmbeddingModelID)
	cmd.Printf("  Chunks: %d tokens, %d overlap\n", created.ChunkConfig.ChunkSize, created.ChunkConfig.ChunkOverlap)
	cmd.Printf("  Alpha:  %.2f\n", created.HybridWeight)
	cmd.Printf("  Policy: %s\n", created.FailurePolicy)
	return nil
}

func runKBList(cmd *cobra.Command, _ []string) error {
	if kbService == nil {
		return errors.New("knowledge base service not configured")
	}

	ctx := context.Background()

	kbs, err := kbService.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list knowledge bases: %w", err)
	}

	if len(kbs) == 0 {
		cmd.Println("No knowledge bases. Create one with 'retrieva kb create'.")
		return nil
	}

	cmd.Println("Knowledge bases:")
	cmd.Println()
	for i := range kbs {
		cmd.Printf("  %s\n", kbs[i].ID)
		cmd.Printf("    Name:  %s\n", kbs[i].Name)
		cmd.Printf("    Model: %s\n", kbs[i].EmbeddingModelID)
		cmd.Println()
	}

	cmd.Printf("Total: %d\n", len(kbs))
	return nil
}

func runKBShow(cmd *cobra.Command, args []string) error {
	if kbService == nil {
		return errors.New("knowledge base service not configured")
	}

	ctx := context.Background()

	kb, err := kbService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get knowledge base: %w", err)
	}

	cmd.Printf("Knowledge base: %s\n\n", kb.ID)
	cmd.Printf("  Name:          %s\n", kb.Name)
	if kb.Owner != "" {
		cmd.Printf("  Owner:         %s\n", kb.Owner)
	}
	cmd.Printf("  Model:         %s\n", kb.EmbeddingModelID)
	cmd.Printf("  Chunk size:    %d tokens\n", kb.ChunkConfig.ChunkSize)
	cmd.Printf("  Chunk overlap: %d tokens\n", kb.ChunkConfig.ChunkOverlap)
	cmd.Printf("  Alpha:         %.2f\n", kb.HybridWeight)
	cmd.Printf("  Policy:        %s\n", kb.FailurePolicy)
	cmd.Printf("  Created:       %s\n", kb.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:       %s\n", kb.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}
