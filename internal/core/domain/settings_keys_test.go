package domain

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingKeys_SortedAndUnique(t *testing.T) {
	keys := SettingKeys()
	names := make([]string, len(keys))
	seen := map[string]bool{}
	for i, k := range keys {
		names[i] = k.Name
		assert.False(t, seen[k.Name], "duplicate key %s", k.Name)
		seen[k.Name] = true
	}
	assert.True(t, sort.StringsAreSorted(names))
}

func TestSettingKeys_DefaultsRoundTrip(t *testing.T) {
	defaults := DefaultAppSettings()

	for _, k := range SettingKeys() {
		var s AppSettings
		require.NoError(t, k.Apply(&s, k.Value(&defaults)), k.Name)
		assert.Equal(t, k.Value(&defaults), k.Value(&s), k.Name)
	}
}

func TestSettingKey_ApplyFromStrings(t *testing.T) {
	s := DefaultAppSettings()

	apply := func(name, value string) error {
		k, ok := LookupSettingKey(name)
		require.True(t, ok, name)
		return k.Apply(&s, value)
	}

	require.NoError(t, apply("rag.top_k", "8"))
	require.NoError(t, apply("llm.temperature", "0.1"))
	require.NoError(t, apply("rag.degraded_responses", "false"))
	require.NoError(t, apply("embedding.timeout", "90s"))
	require.NoError(t, apply("index.metric", "l2"))

	assert.Equal(t, 8, s.RAG.TopK)
	assert.Equal(t, 0.1, s.Generation.Remote.Temperature)
	assert.False(t, s.RAG.DegradedResponses)
	assert.Equal(t, 90*time.Second, s.Embedding.Timeout)
	assert.Equal(t, MetricL2, s.Index.Metric)
}

func TestSettingKey_Rejects(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{"rag.top_k", "0"},
		{"rag.top_k", "x"},
		{"rag.top_k", 2.5},
		{"llm.temperature", "3"},
		{"embedding.provider", "anthropic"},
		{"llm.remote_provider", "local"},
		{"index.type", "hnsw"},
		{"rag.truncation", "random"},
		{"logging.format", "xml"},
		{"embedding.timeout", "-1s"},
		{"embedding.model", "  "},
		{"rag.degraded_responses", 1},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			k, ok := LookupSettingKey(tt.key)
			require.True(t, ok)
			s := DefaultAppSettings()
			before := k.Value(&s)

			err := k.Apply(&s, tt.value)

			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, before, k.Value(&s))
		})
	}
}

func TestSettingKey_Persisted(t *testing.T) {
	k, _ := LookupSettingKey("llm.timeout")
	assert.Equal(t, "1m0s", k.Persisted(time.Minute))
	assert.Equal(t, 3, k.Persisted(3))
}

func TestSettingKey_SecretsMarked(t *testing.T) {
	for _, name := range []string{"embedding.api_key", "llm.api_key", "redis.password"} {
		k, ok := LookupSettingKey(name)
		require.True(t, ok)
		assert.True(t, k.Secret, name)
	}
	k, _ := LookupSettingKey("embedding.model")
	assert.False(t, k.Secret)
}

func TestAppSettings_Validate(t *testing.T) {
	s := DefaultAppSettings()
	require.NoError(t, s.Validate())

	s.Index.NProbe = s.Index.NList + 1
	assert.ErrorIs(t, s.Validate(), ErrInvalidInput)

	s = DefaultAppSettings()
	s.Embedding.Provider = AIProviderOpenAI
	assert.ErrorIs(t, s.Validate(), ErrInvalidInput)

	s = DefaultAppSettings()
	s.Chunking.ChunkOverlap = s.Chunking.ChunkSize
	assert.Error(t, s.Validate())
}
