package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/ratelimit"
	"github.com/custodia-labs/ragcore/internal/retry"
)

func testConfig(url string) Config {
	r := retry.DefaultConfig()
	r.InitialDelay = time.Millisecond
	r.MaxDelay = time.Millisecond
	return Config{
		APIKey:    "sk-test",
		BaseURL:   url + "/v1",
		Model:     "gpt-test",
		RateLimit: ratelimit.Config{RequestsPerSecond: 1000, BurstSize: 100},
		Retry:     r,
	}
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens int      `json:"max_tokens"`
	Stop      []string `json:"stop"`
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-test",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	}
}

func TestNewLLMService_RequiresKey(t *testing.T) {
	_, err := NewLLMService(Config{})
	assert.Error(t, err)
}

func TestNewLLMService_Defaults(t *testing.T) {
	s, err := NewLLMService(Config{APIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.False(t, s.IsLocal())
	assert.NoError(t, s.Close())
}

func TestGenerate_SystemAndUserMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "You are helpful.", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "Question?", req.Messages[1].Content)
		assert.Equal(t, 128, req.MaxTokens)

		_ = json.NewEncoder(w).Encode(completion("  An answer.  "))
	}))
	defer server.Close()

	s, err := NewLLMService(testConfig(server.URL))
	require.NoError(t, err)

	out, err := s.Generate(context.Background(), "Question?", driven.GenerateOptions{
		System:    "You are helpful.",
		MaxTokens: 128,
	})
	require.NoError(t, err)
	assert.Equal(t, "An answer.", out)
}

func TestGenerate_UserOnlyWithoutSystem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		_ = json.NewEncoder(w).Encode(completion("ok"))
	}))
	defer server.Close()

	s, err := NewLLMService(testConfig(server.URL))
	require.NoError(t, err)
	_, err = s.Generate(context.Background(), "hi", driven.GenerateOptions{})
	require.NoError(t, err)
}

func TestGenerate_AuthErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	s, err := NewLLMService(testConfig(server.URL))
	require.NoError(t, err)

	_, err = s.Generate(context.Background(), "hi", driven.GenerateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGenerationBackendUnavailable))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerate_ServerErrorRetriedOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	s, err := NewLLMService(testConfig(server.URL))
	require.NoError(t, err)

	_, err = s.Generate(context.Background(), "hi", driven.GenerateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGenerationBackendUnavailable))
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerate_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	s, err := NewLLMService(testConfig(server.URL))
	require.NoError(t, err)

	_, err = s.Generate(context.Background(), "hi", driven.GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
