package driving

import (
	"context"

	"github.com/plinth-labs/retrieva/internal/core/domain"
)

// SettingsService manages persisted application settings.
type SettingsService interface {
	// Get retrieves the current settings, with defaults filled in for
	// anything not yet configured.
	Get() (*domain.AppSettings, error)

	// Save persists the given settings.
	Save(settings *domain.AppSettings) error

	// SetEmbeddingProvider switches the embedding provider, choosing a
	// default model when none is given.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// Validate checks the stored settings against the live providers.
	Validate(ctx context.Context) error
}
