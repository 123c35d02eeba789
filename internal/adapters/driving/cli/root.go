// Package cli implements the retrieva command-line interface. Commands
// are thin shells over the driving ports; behaviour lives in the core
// services.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/plinth-labs/retrieva/internal/core/ports/driving"
	"github.com/plinth-labs/retrieva/internal/logger"
)

// version is overridden at build time via ldflags.
var version = "dev"

// Services wired by Initialize. Commands check for nil so a partially
// wired binary fails with a clear message instead of a panic.
var (
	kbService       driving.KnowledgeBaseService
	ingestService   driving.Ingestor
	queryService    driving.Querier
	documentService driving.DocumentService
	settingsService driving.SettingsService
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "retrieva",
	Short: "Local-first retrieval engine with hybrid search",
	Long: `Retrieva ingests text into knowledge bases, chunks and embeds it,
and answers queries with hybrid (vector + keyword) retrieval and
citations back to the source documents.

Typical flow:

  retrieva kb create "notes"
  retrieva ingest --kb notes ./meeting-notes.md
  retrieva query --kb notes "decisions about the rollout"`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Services bundles the implementations the command tree depends on.
type Services struct {
	KnowledgeBase driving.KnowledgeBaseService
	Ingestor      driving.Ingestor
	Querier       driving.Querier
	Document      driving.DocumentService
	Settings      driving.SettingsService
}

// Initialize wires service implementations into the command tree.
// Call once from main before Execute.
func Initialize(svcs Services) {
	kbService = svcs.KnowledgeBase
	ingestService = svcs.Ingestor
	queryService = svcs.Querier
	documentService = svcs.Document
	settingsService = svcs.Settings
}

// SetVersion sets the version string reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command. The context is propagated to commands
// via cmd.Context, so cancelling it stops long-running commands.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
