package services

import (
	"context"
	"fmt"
	"time"

	"github.com/plinth-labs/retrieva/internal/core/domain"
	"github.com/plinth-labs/retrieva/internal/core/ports/driven"
	"github.com/plinth-labs/retrieva/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedAPIKey   = "embedding.api_key"

	keyEngineBatchItems  = "engine.max_batch_items"
	keyEngineBatchTokens = "engine.max_batch_tokens"
	keyEngineWorkers     = "engine.workers"
	keyEngineQueueLimit  = "engine.queue_limit"
	keyEngineMaxAttempts = "engine.max_attempts"
	keyEngineRetryBaseMs = "engine.retry_base_ms"
	keyEngineRetryMaxMs  = "engine.retry_max_ms"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		Engine: domain.EngineConfig{
			MaxBatchItems:  s.getInt(keyEngineBatchItems, defaults.Engine.MaxBatchItems),
			MaxBatchTokens: s.getInt(keyEngineBatchTokens, defaults.Engine.MaxBatchTokens),
			Workers:        s.getInt(keyEngineWorkers, defaults.Engine.Workers),
			QueueLimit:     s.getInt(keyEngineQueueLimit, defaults.Engine.QueueLimit),
			MaxAttempts:    s.getInt(keyEngineMaxAttempts, defaults.Engine.MaxAttempts),
			RetryBaseDelay: s.getMillis(keyEngineRetryBaseMs, defaults.Engine.RetryBaseDelay),
			RetryMaxDelay:  s.getMillis(keyEngineRetryMaxMs, defaults.Engine.RetryMaxDelay),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	// Save embedding settings
	if err := s.configStore.Set(keyEmbedProvider, settings.Embedding.Provider.String()); err != nil {
		return fmt.Errorf("save embedding provider: %w", err)
	}
	if err := s.configStore.Set(keyEmbedModel, settings.Embedding.Model); err != nil {
		return fmt.Errorf("save embedding model: %w", err)
	}
	if err := s.configStore.Set(keyEmbedBaseURL, settings.Embedding.BaseURL); err != nil {
		return fmt.Errorf("save embedding base_url: %w", err)
	}
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}

	// Save engine limits
	engine := map[string]int{
		keyEngineBatchItems:  settings.Engine.MaxBatchItems,
		keyEngineBatchTokens: settings.Engine.MaxBatchTokens,
		keyEngineWorkers:     settings.Engine.Workers,
		keyEngineQueueLimit:  settings.Engine.QueueLimit,
		keyEngineMaxAttempts: settings.Engine.MaxAttempts,
		keyEngineRetryBaseMs: int(settings.Engine.RetryBaseDelay / time.Millisecond),
		keyEngineRetryMaxMs:  int(settings.Engine.RetryMaxDelay / time.Millisecond),
	}
	for key, value := range engine {
		if err := s.configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	return s.configStore.Save()
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider %q", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or the provider default
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	// Local providers need a base URL; cloud providers use their own
	if provider == domain.AIProviderOllama {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks the stored settings against the live provider.
func (s *SettingsService) Validate(ctx context.Context) error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := s.aiValidator.ValidateEmbedding(ctx, &settings.Embedding); err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}
	return nil
}

// --- typed getters with defaults ---

func (s *SettingsService) getString(key, fallback string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return fallback
}

func (s *SettingsService) getInt(key string, fallback int) int {
	if v := s.configStore.GetInt(key); v > 0 {
		return v
	}
	return fallback
}

func (s *SettingsService) getMillis(key string, fallback time.Duration) time.Duration {
	if v := s.configStore.GetInt(key); v > 0 {
		return time.Duration(v) * time.Millisecond
	}
	return fallback
}

func (s *SettingsService) getProvider(key string, fallback domain.AIProvider) domain.AIProvider {
	v := domain.AIProvider(s.configStore.GetString(key))
	if v.IsValid() {
		return v
	}
	return fallback
}
