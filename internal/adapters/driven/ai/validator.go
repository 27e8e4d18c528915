package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/logger"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// DefaultPingTimeout bounds each backend check made by `settings validate`.
const DefaultPingTimeout = 5 * time.Second

// ConfigValidator builds a backend from settings and pings it. Unconfigured
// settings pass; there is nothing to reach.
type ConfigValidator struct {
	timeout time.Duration
}

// ValidatorOption configures a ConfigValidator.
type ValidatorOption func(*ConfigValidator)

// WithPingTimeout overrides DefaultPingTimeout.
func WithPingTimeout(d time.Duration) ValidatorOption {
	return func(v *ConfigValidator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// NewConfigValidator creates a validator.
func NewConfigValidator(opts ...ValidatorOption) *ConfigValidator {
	v := &ConfigValidator{timeout: DefaultPingTimeout}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateEmbedding checks that the embedding backend answers.
func (v *ConfigValidator) ValidateEmbedding(cfg *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(cfg)
	if err != nil {
		return fmt.Errorf("embedding (%s): %w", cfg.Provider, err)
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	if err := v.ping(svc.Ping); err != nil {
		return fmt.Errorf("embedding (%s %s): %w", cfg.Provider, svc.ModelName(), err)
	}
	logger.Debug("validated embedding backend %s %s", cfg.Provider, svc.ModelName())
	return nil
}

// ValidateLLM checks that a generation backend answers.
func (v *ConfigValidator) ValidateLLM(cfg *domain.LLMSettings) error {
	svc, err := CreateLLMService(cfg)
	if err != nil {
		return fmt.Errorf("model (%s): %w", cfg.Provider, err)
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	if err := v.ping(svc.Ping); err != nil {
		return fmt.Errorf("model (%s %s): %w", cfg.Provider, svc.ModelName(), err)
	}
	logger.Debug("validated generation backend %s %s", cfg.Provider, svc.ModelName())
	return nil
}

func (v *ConfigValidator) ping(fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	return fn(ctx)
}
