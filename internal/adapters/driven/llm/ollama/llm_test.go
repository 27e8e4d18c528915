package ollama

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
	"github.com/custodia-labs/ragcore/internal/retry"
)

func testConfig(url string) Config {
	r := retry.DefaultConfig()
	r.InitialDelay = time.Millisecond
	r.MaxDelay = time.Millisecond
	return Config{BaseURL: url, Model: "test-model", Timeout: time.Second, Retry: r}
}

func TestNewLLMService_Defaults(t *testing.T) {
	s := NewLLMService(Config{})
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, DefaultBaseURL, s.baseURL)
	assert.True(t, s.IsLocal())
	assert.NoError(t, s.Close())
}

func TestGenerate_SendsPromptAndOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "What is RAG?", req.Prompt)
		assert.Equal(t, "Be brief.", req.System)
		assert.False(t, req.Stream)
		require.NotNil(t, req.Options)
		assert.Equal(t, 64, req.Options.NumPredict)
		assert.Equal(t, []string{"\n\n"}, req.Options.Stop)

		_ = json.NewEncoder(w).Encode(generateResponse{Response: "Retrieval-augmented generation.", Done: true})
	}))
	defer server.Close()

	s := NewLLMService(testConfig(server.URL))
	out, err := s.Generate(context.Background(), "What is RAG?", driven.GenerateOptions{
		System:      "Be brief.",
		MaxTokens:   64,
		Temperature: 0.2,
		StopWords:   []string{"\n\n"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Retrieval-augmented generation.", out)
}

func TestGenerate_NoOptionsWhenZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Nil(t, req.Options)
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
	}))
	defer server.Close()

	s := NewLLMService(testConfig(server.URL))
	_, err := s.Generate(context.Background(), "hi", driven.GenerateOptions{})
	require.NoError(t, err)
}

func TestGenerate_RetriesServerErrorOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "second time"})
	}))
	defer server.Close()

	s := NewLLMService(testConfig(server.URL))
	out, err := s.Generate(context.Background(), "hi", driven.GenerateOptions{})

	require.NoError(t, err)
	assert.Equal(t, "second time", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerate_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	s := NewLLMService(testConfig(server.URL))
	_, err := s.Generate(context.Background(), "hi", driven.GenerateOptions{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGenerationBackendUnavailable))
	assert.Contains(t, err.Error(), "not found")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerate_TimeoutIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Timeout = 20 * time.Millisecond
	s := NewLLMService(cfg)

	_, err := s.Generate(context.Background(), "hi", driven.GenerateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGenerationBackendUnavailable))
}

func TestGenerate_ErrorFieldInBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{Error: "out of memory"})
	}))
	defer server.Close()

	s := NewLLMService(testConfig(server.URL))
	_, err := s.Generate(context.Background(), "hi", driven.GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	s := NewLLMService(testConfig(server.URL))
	assert.NoError(t, s.Ping(context.Background()))
}

func TestPing_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	s := NewLLMService(testConfig(url))
	err := s.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGenerationBackendUnavailable))
}
