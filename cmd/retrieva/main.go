// Command retrieva is the local-first retrieval engine: it chunks and
// embeds text into knowledge bases and answers queries with hybrid
// (vector + keyword) search and citations. All wiring happens here;
// behaviour lives in internal/core.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/plinth-labs/retrieva/internal/adapters/driven/ai"
	configfile "github.com/plinth-labs/retrieva/internal/adapters/driven/config/file"
	"github.com/plinth-labs/retrieva/internal/adapters/driven/index/lexical"
	"github.com/plinth-labs/retrieva/internal/adapters/driven/index/vector"
	"github.com/plinth-labs/retrieva/internal/adapters/driven/storage/sqlite"
	"github.com/plinth-labs/retrieva/internal/adapters/driving/cli"
	"github.com/plinth-labs/retrieva/internal/chunker"
	"github.com/plinth-labs/retrieva/internal/core/services"
	"github.com/plinth-labs/retrieva/internal/logger"
)

// version is overridden at build time via ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configStore, err := configfile.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	store, err := sqlite.NewStore("")
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close() //nolint:errcheck

	// A missing or unreachable provider is not fatal: queries degrade to
	// keyword-only results and ingestion is refused until it is fixed.
	embedder, err := ai.CreateAndValidateEmbeddingService(&settings.Embedding)
	if err != nil {
		logger.Warn("%v", err)
	}
	if embedder != nil {
		defer embedder.Close() //nolint:errcheck
	}

	vectorIndex := vector.New()
	lexicalIndex := lexical.New()

	// Shared between ingestion and query so chunks only become
	// retrievable once both indices hold them.
	visibility := services.NewChunkVisibility()

	batcher := services.NewEmbeddingBatcher(embedder, store.DocumentStore(), settings.Engine)
	coordinator := services.NewIngestionCoordinator(
		store.KnowledgeBaseStore(),
		store.DocumentStore(),
		chunker.New(),
		batcher,
		vectorIndex,
		lexicalIndex,
		visibility,
	)
	if err := coordinator.WarmStart(ctx); err != nil {
		return fmt.Errorf("load indices: %w", err)
	}
	defer coordinator.Wait()

	cli.Initialize(cli.Services{
		KnowledgeBase: services.NewKnowledgeBaseService(store.KnowledgeBaseStore(), embedder),
		Ingestor:      coordinator,
		Querier: services.NewQueryService(
			store.KnowledgeBaseStore(),
			store.DocumentStore(),
			vectorIndex,
			lexicalIndex,
			embedder,
			visibility,
		),
		Document: services.NewDocumentService(store.DocumentStore()),
		Settings: settingsService,
	})
	cli.SetVersion(version)

	return cli.Execute(ctx)
}
