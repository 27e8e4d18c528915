package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies a backend for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderLocal is the built-in in-process embedder. Embeddings only.
	AIProviderLocal AIProvider = "local"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API. Generation only.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderLocal, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs on the local machine.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderLocal || p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderLocal:
		return "Built-in (in-process)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// CacheBackend selects where embedding and response caches are stored.
type CacheBackend string

// Available cache backends.
const (
	CacheBackendMemory CacheBackend = "memory"
	CacheBackendSQLite CacheBackend = "sqlite"
	CacheBackendRedis  CacheBackend = "redis"
)

// IsValid returns true if the cache backend is recognised.
func (b CacheBackend) IsValid() bool {
	switch b {
	case CacheBackendMemory, CacheBackendSQLite, CacheBackendRedis:
		return true
	default:
		return false
	}
}

// SplitterKind selects the sentence splitter used by the chunker.
type SplitterKind string

// Available sentence splitters.
const (
	SplitterRegex SplitterKind = "regex"
	SplitterProse SplitterKind = "prose"
)

// ChunkingSettings holds chunker configuration.
type ChunkingSettings struct {
	ChunkingConfig

	// Splitter selects sentence segmentation.
	Splitter SplitterKind
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama and OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the vector size. Zero uses the model's known size.
	Dimensions int

	// BatchSize is the number of texts sent per backend call.
	BatchSize int

	// Timeout bounds each backend call.
	Timeout time.Duration

	// RequestsPerSecond rate-limits remote calls. Zero uses the backend default.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds one generation backend's configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// MaxTokens caps generated tokens.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64

	// Timeout bounds each backend call.
	Timeout time.Duration

	// RequestsPerSecond rate-limits remote calls. Zero uses the backend default.
	RequestsPerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderLocal {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// GenerationSettings pairs the local-first backend with its remote fallback.
type GenerationSettings struct {
	// Local is tried first when a query asks for the local model.
	Local LLMSettings

	// Remote is the fallback, and the only backend when local is not requested.
	Remote LLMSettings
}

// IndexSettings holds vector index configuration.
type IndexSettings struct {
	Type           IndexType
	Metric         Metric
	NList          int
	NProbe         int
	TrainThreshold int
}

// RAGSettings holds query orchestration configuration.
type RAGSettings struct {
	// TopK is the default number of chunks to retrieve.
	TopK int

	// MaxContextTokens is the prompt budget for retrieved context.
	MaxContextTokens int

	// Truncation is how context is cut to fit the budget.
	Truncation TruncationStrategy

	// DegradedResponses returns retrieval-only answers when generation fails.
	DegradedResponses bool

	// SourcePreviewChars truncates source text in responses.
	SourcePreviewChars int
}

// CacheSettings holds cache store configuration.
type CacheSettings struct {
	Embedding     CacheBackend
	Response      CacheBackend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// AppSettings holds all application settings.
type AppSettings struct {
	// DataDir holds the index, side-table and sqlite stores.
	DataDir string

	Chunking   ChunkingSettings
	Embedding  EmbeddingSettings
	Generation GenerationSettings
	Index      IndexSettings
	RAG        RAGSettings
	Cache      CacheSettings
	Logging    LoggingSettings
}

// LoggingSettings holds log output configuration.
type LoggingSettings struct {
	// Format is "console" or "json".
	Format string
}

// DefaultAppSettings returns settings that work offline out of the box:
// the built-in embedder, a flat cosine index and sqlite caches.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		DataDir: "data",
		Chunking: ChunkingSettings{
			ChunkingConfig: DefaultChunkingConfig(),
			Splitter:       SplitterRegex,
		},
		Embedding: EmbeddingSettings{
			Provider:  AIProviderLocal,
			Model:     DefaultEmbeddingModels()[AIProviderLocal],
			BatchSize: 32,
			Timeout:   30 * time.Second,
		},
		Generation: GenerationSettings{
			Local: LLMSettings{
				Provider:    AIProviderOllama,
				Model:       DefaultLLMModels()[AIProviderOllama],
				MaxTokens:   256,
				Temperature: 0.7,
				Timeout:     120 * time.Second,
			},
			Remote: LLMSettings{
				Provider:          AIProviderOpenAI,
				Model:             DefaultLLMModels()[AIProviderOpenAI],
				MaxTokens:         512,
				Temperature:       0.7,
				Timeout:           60 * time.Second,
				RequestsPerSecond: 2,
			},
		},
		Index: IndexSettings{
			Type:           IndexTypeFlat,
			Metric:         MetricCosine,
			NList:          100,
			NProbe:         8,
			TrainThreshold: 1000,
		},
		RAG: RAGSettings{
			TopK:               5,
			MaxContextTokens:   2048,
			Truncation:         TruncationDropLowest,
			DegradedResponses:  true,
			SourcePreviewChars: 200,
		},
		Cache: CacheSettings{
			Embedding: CacheBackendSQLite,
			Response:  CacheBackendSQLite,
			RedisAddr: "localhost:6379",
		},
		Logging: LoggingSettings{Format: "console"},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderLocal,
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderLocal:  "hashing-384",
		AIProviderOllama: "all-minilm",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-3.5-turbo",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Built-in
		"hashing-384": 384,
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
