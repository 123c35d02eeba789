package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driving"
	"github.com/plinth-labs/retrieva/internal/logger"
)

// watchDebounce is how long a file must be quiet before it is ingested.
// Editors typically emit several write events per save.
const watchDebounce = 500 * time.Millisecond

// Flags for watch.
var (
	watchDir string
	watchKB  string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a directory and ingest changed text files",
	Long: `Watches a directory and ingests text files (.txt, .md) as they are
created or modified. Unchanged content is skipped, so repeated saves of
the same file do not produce duplicate documents.

Subdirectories are not watched. Runs until interrupted.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchDir, "dir", "d", "", "directory to watch (required)")
	watchCmd.Flags().StringVarP(&watchKB, "kb", "k", "", "knowledge base ID or name (required)")
	_ = watchCmd.MarkFlagRequired("dir") //nolint:errcheck // flag is registered above
	_ = watchCmd.MarkFlagRequired("kb")  //nolint:errcheck // flag is registered above

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingestion service not configured")
	}

	info, err := os.Stat(watchDir)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", watchDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cannot watch %s: not a directory", watchDir)
	}

	ctx := cmd.Context()
	kbID, err := resolveKnowledgeBaseID(ctx, watchKB)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	if err := watcher.Add(watchDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", watchDir, err)
	}

	cmd.Printf("Watching %s (Ctrl-C to stop)...\n", watchDir)

	pending := newPendingFiles()
	defer pending.stopAll()

	for {
		select {
		case <-ctx.Done():
			cmd.Println("\nStopped watching.")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isTextFile(event.Name) {
				continue
			}
			pending.schedule(event.Name, watchDebounce, func() {
				ingestWatchedFile(ctx, cmd, kbID, event.Name)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error: %v", err)
		}
	}
}

// ingestWatchedFile reads one settled file and submits it.
func ingestWatchedFile(ctx context.Context, cmd *cobra.Command, kbID, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("skipping %s: %v", path, err)
		return
	}
	if strings.TrimSpace(string(data)) == "" {
		return
	}

	receipt, err := ingestService.Ingest(ctx, driving.IngestRequest{
		KnowledgeBaseID: kbID,
		Text:            string(data),
		Title:           filepath.Base(path),
	})
	switch {
	case errors.Is(err, domain.ErrBackpressure):
		cmd.Printf("Engine at capacity, %s will be retried on its next change.\n", filepath.Base(path))
	case err != nil:
		cmd.Printf("Failed to ingest %s: %v\n", filepath.Base(path), err)
	case receipt.Status.Terminal():
		logger.Debug("unchanged content for %s, already %s", path, receipt.Status)
	default:
		cmd.Printf("Ingesting %s as %s\n", filepath.Base(path), receipt.IngestionID)
	}
}

// isTextFile reports whether the path has a recognised text extension.
func isTextFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown", ".text":
		return true
	default:
		return false
	}
}

// pendingFiles debounces per-path file events: each new event resets the
// path's timer, and the action fires only after the file goes quiet.
type pendingFiles struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newPendingFiles() *pendingFiles {
	return &pendingFiles{timers: make(map[string]*time.Timer)}
}

func (p *pendingFiles) schedule(path string, delay time.Duration, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.timers[path]; ok {
		t.Stop()
	}
	p.timers[path] = time.AfterFunc(delay, func() {
		p.mu.Lock()
		delete(p.timers, path)
		p.mu.Unlock()
		fn()
	})
}

func (p *pendingFiles) stopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for path, t := range p.timers {
		t.Stop()
		delete(p.timers, path)
	}
}
