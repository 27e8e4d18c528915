// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"fmt"

	"github.com/custodia-labs/ragcore/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/custodia-labs/ragcore/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/ragcore/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/ragcore/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/ragcore/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/ragcore/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/logger"
	"github.com/custodia-labs/ragcore/internal/ratelimit"
)

// InitResult contains the AI services built from settings.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LocalLLM         driven.LLMService // Tried first for queries that ask for the local model.
	RemoteLLM        driven.LLMService // Fallback, or the only backend when local is not requested.
	Warnings         []string          // Non-fatal issues, e.g. a missing API key.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LocalLLM != nil {
		r.LocalLLM.Close()
	}
	if r.RemoteLLM != nil {
		r.RemoteLLM.Close()
	}
}

// Init builds the embedding service and both generation backends.
// The embedding service is required; a generation backend that cannot be
// built is left nil and reported as a warning so retrieval still works.
func Init(settings *domain.AppSettings) (*InitResult, error) {
	embedder, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingBackendUnavailable, err)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding provider %q is not configured",
			domain.ErrEmbeddingBackendUnavailable, settings.Embedding.Provider)
	}

	result := &InitResult{EmbeddingService: embedder}

	local, err := CreateLLMService(&settings.Generation.Local)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("local model disabled: %v", err))
	}
	result.LocalLLM = local

	remote, err := CreateLLMService(&settings.Generation.Remote)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, fmt.Sprintf("remote model disabled: %v", err))
	case remote == nil && settings.Generation.Remote.Provider.RequiresAPIKey():
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"remote model disabled: %s API key not set", settings.Generation.Remote.Provider))
	}
	result.RemoteLLM = remote

	return result, nil
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderLocal:
		return createLocalEmbedding(settings), nil

	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaLLM(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAILLM(settings)

	case domain.AIProviderAnthropic:
		return createAnthropicLLM(settings)

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

// createLocalEmbedding creates the in-process hashing embedder.
func createLocalEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := settings.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[settings.Model]
	}
	return hashing.NewEmbeddingService(dimensions)
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := settings.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[settings.Model]
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
		Timeout:    settings.Timeout,
		Logger:     logger.Zap(),
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	dimensions := settings.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[settings.Model]
	}

	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
		Timeout:    settings.Timeout,
		RateLimit:  rateLimit(settings.RequestsPerSecond),
		Logger:     logger.Zap(),
	})
}

// createOllamaLLM creates an Ollama LLM service.
func createOllamaLLM(settings *domain.LLMSettings) driven.LLMService {
	return ollamallm.NewLLMService(ollamallm.Config{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
		Timeout: settings.Timeout,
		Logger:  logger.Zap(),
	})
}

// createOpenAILLM creates an OpenAI LLM service.
func createOpenAILLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return openaillm.NewLLMService(openaillm.Config{
		APIKey:    settings.APIKey,
		BaseURL:   settings.BaseURL,
		Model:     settings.Model,
		Timeout:   settings.Timeout,
		RateLimit: rateLimit(settings.RequestsPerSecond),
		Logger:    logger.Zap(),
	})
}

// createAnthropicLLM creates an Anthropic LLM service.
func createAnthropicLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:    settings.APIKey,
		BaseURL:   settings.BaseURL,
		Model:     settings.Model,
		Timeout:   settings.Timeout,
		RateLimit: rateLimit(settings.RequestsPerSecond),
		Logger:    logger.Zap(),
	})
}

// rateLimit allows a burst of twice the sustained rate. Zero keeps the
// adapter default.
func rateLimit(rps float64) ratelimit.Config {
	if rps == 0 {
		return ratelimit.Config{}
	}
	burst := int(rps * 2)
	if burst < 1 {
		burst = 1
	}
	return ratelimit.Config{RequestsPerSecond: rps, BurstSize: burst}
}
