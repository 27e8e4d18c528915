package domain

import "time"

// NoContextAnswer is returned when retrieval finds nothing to ground an answer on.
const NoContextAnswer = "I don't have any relevant documents to answer your question. " +
	"Please make sure you have uploaded and processed some documents first."

// GenerationFailedAnswer prefixes degraded responses whose generation step failed.
const GenerationFailedAnswer = "I found relevant documents but could not generate an answer " +
	"because no language model is reachable. The retrieved sources are listed below."

// ModelNone is reported as ModelUsed when no generation backend was invoked.
const ModelNone = "none"

// QueryOptions configures a single RAG query.
type QueryOptions struct {
	// TopK is the number of chunks to retrieve.
	TopK int

	// UseLocalModel tries the local generation backend before the remote one.
	UseLocalModel bool

	// UseCache enables the response cache for this query.
	UseCache bool

	// Filter restricts retrieval to chunks whose metadata matches.
	Filter MetadataFilter
}

// DefaultQueryOptions returns top-5 retrieval, local-first generation and caching.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{TopK: 5, UseLocalModel: true, UseCache: true}
}

// Source is one retrieved chunk attributed in an answer.
type Source struct {
	// Text is the chunk text, truncated for display.
	Text string `json:"text"`

	// Metadata is the full chunk metadata.
	Metadata ChunkMetadata `json:"metadata"`

	// SimilarityScore is the retrieval score.
	SimilarityScore float64 `json:"similarity_score"`

	// Rank is the 1-based retrieval position.
	Rank int `json:"rank"`
}

// ResponseMetadata describes how an answer was produced.
type ResponseMetadata struct {
	Query           string     `json:"query"`
	RetrievedChunks int        `json:"retrieved_chunks"`
	ProcessingTime  float64    `json:"processing_time"`
	ModelUsed       string     `json:"model_used"`
	Cached          bool       `json:"cached"`
	Degraded        bool       `json:"degraded,omitempty"`
	CachedAt        *time.Time `json:"cached_at,omitempty"`
}

// QueryResponse is the result of a RAG query.
type QueryResponse struct {
	Answer   string           `json:"answer"`
	Sources  []Source         `json:"sources"`
	Metadata ResponseMetadata `json:"metadata"`
}

// QueryState is a step of the RAG query lifecycle.
type QueryState string

// Query lifecycle states in order of occurrence.
const (
	QueryStateReceived    QueryState = "RECEIVED"
	QueryStateCacheCheck  QueryState = "CACHE_CHECK"
	QueryStateCacheHit    QueryState = "CACHE_HIT"
	QueryStateEmbedQuery  QueryState = "EMBED_QUERY"
	QueryStateRetrieve    QueryState = "RETRIEVE"
	QueryStateBuildPrompt QueryState = "BUILD_PROMPT"
	QueryStateGenerate    QueryState = "GENERATE"
	QueryStateCacheWrite  QueryState = "CACHE_WRITE"
	QueryStateDone        QueryState = "DONE"
)

// TruncationStrategy decides how retrieved context is cut to fit the prompt budget.
type TruncationStrategy string

// Available truncation strategies.
const (
	// TruncationDropLowest removes the lowest-similarity chunks first.
	TruncationDropLowest TruncationStrategy = "drop_lowest"

	// TruncationTrimTail keeps every chunk and trims text from the end of the context.
	TruncationTrimTail TruncationStrategy = "trim_tail"
)

// IsValid returns true if the strategy is recognised.
func (s TruncationStrategy) IsValid() bool {
	return s == TruncationDropLowest || s == TruncationTrimTail
}
