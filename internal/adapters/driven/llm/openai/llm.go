// Package openai provides an LLM service adapter using the OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/ratelimit"
	"github.com/custodia-labs/ragcore/internal/retry"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-3.5-turbo"
	DefaultTimeout = 60 * time.Second
)

// Config holds configuration for the OpenAI LLM service.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the LLM model to use (default: gpt-3.5-turbo).
	Model string

	// Timeout bounds each request attempt (default: 60s).
	Timeout time.Duration

	// RateLimit paces requests. Zero value uses ratelimit.DefaultRemote.
	RateLimit ratelimit.Config

	// Retry overrides the retry policy. Zero value uses retry.DefaultConfig.
	Retry retry.Config

	// Logger receives retry warnings.
	Logger *zap.Logger
}

// LLMService provides LLM operations using OpenAI API.
type LLMService struct {
	client  *openai.Client
	model   string
	limiter *ratelimit.Limiter
	retry   retry.Config
}

// NewLLMService creates a new OpenAI LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit = ratelimit.DefaultRemote
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	cfg.Retry.AttemptTimeout = cfg.Timeout
	if cfg.Logger != nil {
		cfg.Retry.Logger = cfg.Logger
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{}

	return &LLMService{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		limiter: ratelimit.New(cfg.RateLimit),
		retry:   cfg.Retry,
	}, nil
}

// Generate produces text completion from a prompt.
// A System option is sent as a system message ahead of the prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
		Stop:        opts.StopWords,
	}

	text, err := retry.DoWithResult(ctx, s.retry, func(ctx context.Context) (string, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
		resp, err := s.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", s.classify(err)
		}
		if len(resp.Choices) == 0 {
			return "", retry.Permanent(errors.New("no choices returned"))
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai: %w", domain.ErrGenerationBackendUnavailable, err)
	}
	return text, nil
}

// classify marks client errors permanent and records 429 backoff.
func (s *LLMService) classify(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		s.limiter.RecordRateLimitError(0)
		return err
	case status >= 400 && status < 500:
		return retry.Permanent(err)
	}
	return err
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// IsLocal reports false: requests go to a hosted API.
func (s *LLMService) IsLocal() bool {
	return false
}

// Ping validates the API key by listing models.
// This is a lightweight check that runs no inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%w: openai: ping failed: %w", domain.ErrGenerationBackendUnavailable, err)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
