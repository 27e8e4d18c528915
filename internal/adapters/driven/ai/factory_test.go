package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

func TestInitResult_Close(t *testing.T) {
	t.Run("close with nil services", func(t *testing.T) {
		result := &InitResult{}
		// Should not panic
		result.Close()
	})
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantNil  bool
		wantErr  bool
		wantDims int
	}{
		{
			name:     "nil settings returns nil",
			settings: nil,
			wantNil:  true,
		},
		{
			name:     "unconfigured settings returns nil",
			settings: &domain.EmbeddingSettings{},
			wantNil:  true,
		},
		{
			name: "local provider creates hashing embedder",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderLocal,
				Model:    "hashing-384",
			},
			wantDims: 384,
		},
		{
			name: "local provider honours explicit dimensions",
			settings: &domain.EmbeddingSettings{
				Provider:   domain.AIProviderLocal,
				Dimensions: 128,
			},
			wantDims: 128,
		},
		{
			name: "ollama provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				BaseURL:  "http://localhost:11434",
				Model:    "nomic-embed-text",
			},
			wantDims: 768,
		},
		{
			name: "openai provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "text-embedding-3-small",
			},
			wantDims: 1536,
		},
		{
			name: "openai without key is not configured",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				Model:    "text-embedding-3-small",
			},
			wantNil: true,
		},
		{
			name: "anthropic is not an embedding provider",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderAnthropic,
				APIKey:   "test-key",
			},
			wantNil: true,
		},
		{
			name: "unknown provider returns nil (not configured)",
			settings: &domain.EmbeddingSettings{
				Provider: "unknown",
				APIKey:   "test-key",
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			defer svc.Close()
			assert.Equal(t, tt.wantDims, svc.Dimensions())
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name      string
		settings  *domain.LLMSettings
		wantNil   bool
		wantLocal bool
	}{
		{
			name:     "nil settings returns nil",
			settings: nil,
			wantNil:  true,
		},
		{
			name:     "unconfigured settings returns nil",
			settings: &domain.LLMSettings{},
			wantNil:  true,
		},
		{
			name: "ollama provider creates local service",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderOllama,
				BaseURL:  "http://localhost:11434",
				Model:    "llama3.2",
			},
			wantLocal: true,
		},
		{
			name: "openai provider creates service",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "gpt-3.5-turbo",
			},
		},
		{
			name: "anthropic provider creates service",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderAnthropic,
				APIKey:   "test-key",
				Model:    "claude-3-5-sonnet-latest",
			},
		},
		{
			name: "local provider cannot generate",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderLocal,
			},
			wantNil: true,
		},
		{
			name: "unknown provider returns nil (not configured)",
			settings: &domain.LLMSettings{
				Provider: "unknown",
				APIKey:   "test-key",
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.settings)
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			defer svc.Close()
			assert.Equal(t, tt.settings.Model, svc.ModelName())
			assert.Equal(t, tt.wantLocal, svc.IsLocal())
		})
	}
}

func TestInit_Defaults(t *testing.T) {
	settings := domain.DefaultAppSettings()

	result, err := Init(&settings)
	require.NoError(t, err)
	defer result.Close()

	require.NotNil(t, result.EmbeddingService)
	assert.Equal(t, "hashing-384", result.EmbeddingService.ModelName())
	require.NotNil(t, result.LocalLLM)
	assert.True(t, result.LocalLLM.IsLocal())

	// Default remote is OpenAI without a key.
	assert.Nil(t, result.RemoteLLM)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "API key not set")
}

func TestInit_RemoteConfigured(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Generation.Remote.APIKey = "sk-test"

	result, err := Init(&settings)
	require.NoError(t, err)
	defer result.Close()

	require.NotNil(t, result.RemoteLLM)
	assert.False(t, result.RemoteLLM.IsLocal())
	assert.Empty(t, result.Warnings)
}

func TestInit_EmbeddingRequired(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Embedding.Provider = domain.AIProviderOpenAI

	_, err := Init(&settings)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingBackendUnavailable)
}

func TestRateLimit(t *testing.T) {
	assert.Zero(t, rateLimit(0).RequestsPerSecond)

	cfg := rateLimit(5)
	assert.Equal(t, 5.0, cfg.RequestsPerSecond)
	assert.Equal(t, 10, cfg.BurstSize)

	assert.Equal(t, 1, rateLimit(0.2).BurstSize)
}
