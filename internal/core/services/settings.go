package services

import (
	"fmt"
	"slices"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/core/ports/driving"
	"github.com/custodia-labs/ragcore/internal/logger"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// defaultOllamaURL is used when a local provider is selected without a base URL.
const defaultOllamaURL = "http://localhost:11434"

// Config keys written by the provider helpers.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDimensions = "embedding.dimensions"
	keyLocalProvider   = "llm.local_provider"
	keyLocalModel      = "llm.local_model"
	keyLocalBaseURL    = "llm.local_base_url"
	keyRemoteProvider  = "llm.remote_provider"
	keyRemoteModel     = "llm.remote_model"
	keyRemoteBaseURL   = "llm.base_url"
	keyRemoteAPIKey    = "llm.api_key"
)

// SettingsService manages persisted settings. Every key goes through the
// domain setting registry, so values written here are the values the config
// loader accepts.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service. aiValidator may be nil.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get returns stored values merged over defaults. A stored value that no
// longer validates is ignored in favour of the default.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()
	for _, key := range domain.SettingKeys() {
		raw, ok := s.configStore.Get(key.Name)
		if !ok {
			continue
		}
		if err := key.Apply(&settings, raw); err != nil {
			logger.Warn("ignoring stored setting: %v", err)
		}
	}
	return &settings, nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// GetValue returns the effective value of one key.
func (s *SettingsService) GetValue(name string) (any, bool) {
	key, ok := domain.LookupSettingKey(name)
	if !ok {
		return nil, false
	}
	settings, err := s.Get()
	if err != nil {
		return nil, false
	}
	return key.Value(settings), true
}

// SetValue validates value against the key and persists it.
func (s *SettingsService) SetValue(name, value string) error {
	key, ok := domain.LookupSettingKey(name)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, name)
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := key.Apply(settings, value); err != nil {
		return err
	}
	if err := checkCrossField(settings); err != nil {
		return err
	}

	if err := s.configStore.Set(name, key.Persisted(key.Value(settings))); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// Keys returns every recognised setting key, sorted.
func (s *SettingsService) Keys() []string {
	keys := domain.SettingKeys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.Name
	}
	return names
}

// SetEmbeddingProvider configures the embedding provider. An empty model
// selects the provider default; the vector size follows known models.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}
	baseURL := ""
	if provider == domain.AIProviderOllama {
		baseURL = settings.Embedding.BaseURL
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
	}
	dims := domain.EmbeddingDimensions()[model]

	return s.setAll(map[string]any{
		keyEmbedProvider:   provider.String(),
		keyEmbedModel:      model,
		keyEmbedBaseURL:    baseURL,
		keyEmbedAPIKey:     apiKey,
		keyEmbedDimensions: dims,
	})
}

// SetGenerationProvider configures the local (tried first) or remote backend.
// The local slot only takes providers that run on this machine.
func (s *SettingsService) SetGenerationProvider(remote bool, provider domain.AIProvider, model, apiKey string) error {
	if !slices.Contains(domain.AllLLMProviders(), provider) {
		return fmt.Errorf("%w: provider %s does not support generation", domain.ErrInvalidInput, provider)
	}
	if !remote && !provider.IsLocal() {
		return fmt.Errorf("%w: %s cannot be the local backend", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	if model == "" {
		model = domain.DefaultLLMModels()[provider]
	}

	if !remote {
		baseURL := settings.Generation.Local.BaseURL
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
		return s.setAll(map[string]any{
			keyLocalProvider: provider.String(),
			keyLocalModel:    model,
			keyLocalBaseURL:  baseURL,
		})
	}

	baseURL := ""
	if provider.IsLocal() {
		baseURL = settings.Generation.Remote.BaseURL
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
	}
	return s.setAll(map[string]any{
		keyRemoteProvider: provider.String(),
		keyRemoteModel:    model,
		keyRemoteBaseURL:  baseURL,
		keyRemoteAPIKey:   apiKey,
	})
}

// Validate checks the effective settings and, when a validator is set,
// pings every configured backend.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := s.ValidateEmbeddingConfig(); err != nil {
		return err
	}
	if err := s.ValidateLLMConfig(false); err != nil {
		return err
	}
	return s.ValidateLLMConfig(true)
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the local or remote LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig(remote bool) error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if remote {
		return s.aiValidator.ValidateLLM(&settings.Generation.Remote)
	}
	return s.aiValidator.ValidateLLM(&settings.Generation.Local)
}

// setAll validates and persists several keys. Nothing is written if any value is invalid.
func (s *SettingsService) setAll(values map[string]any) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	slices.Sort(names)

	persisted := make(map[string]any, len(values))
	for _, name := range names {
		key, ok := domain.LookupSettingKey(name)
		if !ok {
			return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, name)
		}
		v, err := key.Coerce(values[name])
		if err != nil {
			return err
		}
		persisted[name] = key.Persisted(v)
	}

	for _, name := range names {
		if err := s.configStore.Set(name, persisted[name]); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}
	return nil
}

// checkCrossField runs the constraints a single key cannot express, apart
// from provider readiness which is checked by Validate.
func checkCrossField(settings *domain.AppSettings) error {
	if err := settings.Chunking.Validate(); err != nil {
		return err
	}
	if settings.Index.NProbe > settings.Index.NList {
		return fmt.Errorf("%w: index.nprobe (%d) exceeds index.nlist (%d)",
			domain.ErrInvalidInput, settings.Index.NProbe, settings.Index.NList)
	}
	return nil
}
