package driving

import "github.com/custodia-labs/ragcore/internal/core/domain"

// SettingsService manages persisted application settings.
type SettingsService interface {
	// Get returns the persisted settings merged over defaults.
	Get() (*domain.AppSettings, error)

	// GetValue returns a single setting by dotted key.
	GetValue(key string) (any, bool)

	// SetValue validates and persists a single setting by dotted key.
	SetValue(key, value string) error

	// Keys returns every recognised setting key, sorted.
	Keys() []string

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetGenerationProvider configures the local or remote generation backend.
	SetGenerationProvider(remote bool, provider domain.AIProvider, model, apiKey string) error

	// Validate checks the persisted settings.
	Validate() error
}
