package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available embedding providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderLocal is the built-in deterministic embedder.
	// Useful for development and tests; no network access.
	AIProviderLocal AIProvider = "local"
)

// IsValid returns true if the provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderLocal:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderLocal:
		return "Built-in deterministic (dev/test)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// IsLocal returns true if the provider runs on this machine.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLocal
}

// AppSettings aggregates the persisted engine configuration.
type AppSettings struct {
	// Embedding configures the embedding provider.
	Embedding EmbeddingSettings

	// Engine holds the ingestion resource limits.
	Engine EngineConfig
}

// DefaultAppSettings returns the configuration used before the user
// changes anything: the built-in deterministic embedder and the stock
// engine limits. Everything works offline out of the box.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderLocal,
			Model:    DefaultEmbeddingModels()[AIProviderLocal],
		},
		Engine: DefaultEngineConfig(),
	}
}

// EngineConfig holds the resource limits for the ingestion engine.
type EngineConfig struct {
	// MaxBatchItems caps the number of texts sent in one provider call.
	MaxBatchItems int

	// MaxBatchTokens caps the summed token count of one provider call.
	MaxBatchTokens int

	// Workers is the number of concurrent in-flight embedding batches.
	Workers int

	// QueueLimit bounds the pending-chunk queue. Ingestions that would
	// push past it are rejected with ErrBackpressure.
	QueueLimit int

	// MaxAttempts is the per-chunk embedding retry budget.
	MaxAttempts int

	// RetryBaseDelay is the first retry backoff.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the exponential backoff.
	RetryMaxDelay time.Duration
}

// DefaultEngineConfig returns limits suitable for a single-node engine.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxBatchItems:  32,
		MaxBatchTokens: 8000,
		Workers:        4,
		QueueLimit:     4096,
		MaxAttempts:    3,
		RetryBaseDelay: 200 * time.Millisecond,
		RetryMaxDelay:  5 * time.Second,
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderLocal,
	}
}

// DefaultEmbeddingModels returns default models for each provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderLocal:  "hash-256",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Built-in deterministic model
		"hash-256": 256,
	}
}
