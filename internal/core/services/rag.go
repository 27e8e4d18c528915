package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/core/ports/driving"
	"github.com/custodia-labs/ragcore/internal/logger"
	"github.com/custodia-labs/ragcore/internal/retry"
)

// Ensure RAGService implements the interfaces.
var (
	_ driving.RAGService      = (*RAGService)(nil)
	_ driven.PromptStoreAware = (*RAGService)(nil)
)

// cacheNameResponse labels response cache metrics.
const cacheNameResponse = "response"

var errEmptyAnswer = errors.New("empty answer")

// StateObserver receives every query state transition in order.
type StateObserver func(state domain.QueryState)

// RAGConfig holds query orchestration settings.
type RAGConfig struct {
	// DefaultTopK is used when QueryOptions.TopK is not positive.
	DefaultTopK int

	// MaxContextTokens bounds the retrieved context in the prompt.
	MaxContextTokens int

	// Truncation is how context is cut to fit MaxContextTokens.
	Truncation domain.TruncationStrategy

	// DegradedResponses returns the sources with an explanatory answer when
	// every generation backend fails, instead of an error.
	DegradedResponses bool

	// SourcePreviewChars truncates source text in responses. Zero keeps full text.
	SourcePreviewChars int

	// Local and Remote are the per-backend generation settings.
	Local  GenerationConfig
	Remote GenerationConfig
}

// GenerationConfig bounds one generation backend.
type GenerationConfig struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// DefaultRAGConfig mirrors domain.DefaultAppSettings.
func DefaultRAGConfig() RAGConfig {
	s := domain.DefaultAppSettings()
	return RAGConfigFromSettings(&s)
}

// RAGConfigFromSettings extracts the orchestration settings.
func RAGConfigFromSettings(s *domain.AppSettings) RAGConfig {
	return RAGConfig{
		DefaultTopK:        s.RAG.TopK,
		MaxContextTokens:   s.RAG.MaxContextTokens,
		Truncation:         s.RAG.Truncation,
		DegradedResponses:  s.RAG.DegradedResponses,
		SourcePreviewChars: s.RAG.SourcePreviewChars,
		Local: GenerationConfig{
			MaxTokens:   s.Generation.Local.MaxTokens,
			Temperature: s.Generation.Local.Temperature,
			Timeout:     s.Generation.Local.Timeout,
		},
		Remote: GenerationConfig{
			MaxTokens:   s.Generation.Remote.MaxTokens,
			Temperature: s.Generation.Remote.Temperature,
			Timeout:     s.Generation.Remote.Timeout,
		},
	}
}

// RAGService answers questions from indexed documents: it checks the response
// cache, retrieves chunks, builds a prompt and asks the local model first,
// then the remote one.
type RAGService struct {
	embedder driving.EmbeddingGenerator
	index    driven.VectorIndex
	cache    driven.ResponseCache
	local    driven.LLMService
	remote   driven.LLMService
	prompts  driven.PromptStore
	metrics  driven.Metrics
	observer StateObserver
	retry    retry.Config
	cfg      RAGConfig
	now      func() time.Time
}

// NewRAGService creates a RAG service. cache, local and remote may be nil.
func NewRAGService(
	embedder driving.EmbeddingGenerator,
	index driven.VectorIndex,
	cache driven.ResponseCache,
	local driven.LLMService,
	remote driven.LLMService,
	cfg RAGConfig,
) *RAGService {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = domain.DefaultQueryOptions().TopK
	}
	r := retry.DefaultConfig()
	r.Logger = logger.Zap()
	return &RAGService{
		embedder: embedder,
		index:    index,
		cache:    cache,
		local:    local,
		remote:   remote,
		metrics:  driven.NopMetrics{},
		retry:    r,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetPromptStore sets where prompt templates are loaded from.
func (s *RAGService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// SetMetrics records query and cache metrics.
func (s *RAGService) SetMetrics(m driven.Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// SetStateObserver registers a callback for state transitions.
func (s *RAGService) SetStateObserver(fn StateObserver) {
	s.observer = fn
}

// SetRetry replaces the generation retry policy.
func (s *RAGService) SetRetry(cfg retry.Config) {
	s.retry = cfg
}

// Query answers text from the indexed documents.
func (s *RAGService) Query(ctx context.Context, text string, opts domain.QueryOptions) (*domain.QueryResponse, error) {
	start := time.Now()
	query := strings.TrimSpace(text)
	if query == "" {
		return nil, fmt.Errorf("rag: %w: empty query", domain.ErrInvalidInput)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}

	logger.Section("RAG Query")
	s.enter(domain.QueryStateReceived)
	logger.Debug("Query: %q, top_k=%d, local=%t, cache=%t, filter=%s",
		query, topK, opts.UseLocalModel, opts.UseCache, opts.Filter)

	useCache := opts.UseCache && s.cache != nil
	key := s.cacheKey(query, topK, opts)

	if useCache {
		s.enter(domain.QueryStateCacheCheck)
		if resp, ok := s.cached(ctx, key); ok {
			s.enter(domain.QueryStateCacheHit)
			s.metrics.ObserveQuery(time.Since(start), true)
			s.enter(domain.QueryStateDone)
			return resp, nil
		}
	}

	s.enter(domain.QueryStateEmbedQuery)
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: %w", err)
	}

	s.enter(domain.QueryStateRetrieve)
	var hits []domain.SearchHit
	if len(opts.Filter) > 0 {
		hits, err = s.index.SearchWithFilter(ctx, opts.Filter, vec, topK)
	} else {
		hits, err = s.index.Search(ctx, vec, topK)
	}
	if err != nil {
		return nil, fmt.Errorf("rag: retrieve: %w", err)
	}
	logger.Debug("Retrieved %d chunks", len(hits))

	if len(hits) == 0 {
		s.enter(domain.QueryStateDone)
		resp := &domain.QueryResponse{
			Answer:  domain.NoContextAnswer,
			Sources: []domain.Source{},
			Metadata: domain.ResponseMetadata{
				Query:     query,
				ModelUsed: domain.ModelNone,
			},
		}
		resp.Metadata.ProcessingTime = time.Since(start).Seconds()
		s.metrics.ObserveQuery(time.Since(start), false)
		return resp, nil
	}

	s.enter(domain.QueryStateBuildPrompt)
	builder := NewPromptBuilder(s.loadPrompt(driven.PromptRAGAnswer), s.cfg.MaxContextTokens, s.cfg.Truncation)
	prompt, used := builder.Build(query, hits)
	logger.Debug("Prompt: %d chars, %d of %d chunks in context", len(prompt), used, len(hits))

	s.enter(domain.QueryStateGenerate)
	answer, model, genErr := s.generate(ctx, prompt, opts.UseLocalModel)

	resp := &domain.QueryResponse{
		Answer:  answer,
		Sources: s.sources(hits),
		Metadata: domain.ResponseMetadata{
			Query:           query,
			RetrievedChunks: len(hits),
			ModelUsed:       model,
		},
	}

	if genErr != nil {
		if !s.cfg.DegradedResponses {
			return nil, fmt.Errorf("rag: %w", genErr)
		}
		logger.Warn("generation failed, returning sources only: %v", genErr)
		resp.Answer = domain.GenerationFailedAnswer
		resp.Metadata.ModelUsed = domain.ModelNone
		resp.Metadata.Degraded = true
		resp.Metadata.ProcessingTime = time.Since(start).Seconds()
		s.enter(domain.QueryStateDone)
		s.metrics.ObserveQuery(time.Since(start), false)
		return resp, nil
	}

	resp.Metadata.ProcessingTime = time.Since(start).Seconds()

	if useCache {
		s.enter(domain.QueryStateCacheWrite)
		cachedAt := s.now().UTC()
		resp.Metadata.CachedAt = &cachedAt
		if err := s.cache.Put(ctx, key, resp); err != nil {
			logger.Warn("response cache write failed: %v", err)
			resp.Metadata.CachedAt = nil
		}
	}

	s.enter(domain.QueryStateDone)
	s.metrics.ObserveQuery(time.Since(start), false)
	return resp, nil
}

// ClearCache removes every cached response.
func (s *RAGService) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("rag: clear cache: %w", err)
	}
	return nil
}

func (s *RAGService) enter(state domain.QueryState) {
	logger.Debug("RAG state: %s", state)
	if s.observer != nil {
		s.observer(state)
	}
}

// primaryModel is the model a query would be answered by when nothing fails.
func (s *RAGService) primaryModel(useLocal bool) string {
	if useLocal && s.local != nil {
		return s.local.ModelName()
	}
	if s.remote != nil {
		return s.remote.ModelName()
	}
	return domain.ModelNone
}

// cacheKey is md5(query_topK_model). A metadata filter is appended so
// filtered and unfiltered queries never share an entry.
func (s *RAGService) cacheKey(query string, topK int, opts domain.QueryOptions) string {
	raw := query + "_" + strconv.Itoa(topK) + "_" + s.primaryModel(opts.UseLocalModel)
	if len(opts.Filter) > 0 {
		raw += "_" + opts.Filter.String()
	}
	return contentHash([]byte(raw))
}

// cached returns a stored response marked as cached. Corrupt entries are misses.
func (s *RAGService) cached(ctx context.Context, key string) (*domain.QueryResponse, bool) {
	resp, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		s.metrics.CacheHit(cacheNameResponse)
		resp.Metadata.Cached = true
		logger.Debug("Response cache hit")
		return resp, true
	case errors.Is(err, domain.ErrCacheMiss):
	default:
		logger.Warn("response cache entry %s ignored: %v", key, err)
	}
	s.metrics.CacheMiss(cacheNameResponse)
	return nil, false
}

func (s *RAGService) loadPrompt(name string) string {
	if s.prompts != nil {
		if p, err := s.prompts.Load(name); err == nil {
			return p
		}
	}
	switch name {
	case driven.PromptRAGSystem:
		return domain.DefaultRAGSystemPrompt
	default:
		return domain.DefaultRAGAnswerPrompt
	}
}

// generate tries the local backend (when asked for) and then the remote one.
// The returned error wraps domain.ErrGenerationBackendUnavailable.
func (s *RAGService) generate(ctx context.Context, prompt string, useLocal bool) (string, string, error) {
	type backend struct {
		svc driven.LLMService
		cfg GenerationConfig
	}
	var chain []backend
	if useLocal && s.local != nil {
		chain = append(chain, backend{s.local, s.cfg.Local})
	}
	if s.remote != nil {
		chain = append(chain, backend{s.remote, s.cfg.Remote})
	}
	if len(chain) == 0 {
		return "", domain.ModelNone, fmt.Errorf("%w: no generation backend configured",
			domain.ErrGenerationBackendUnavailable)
	}

	system := s.loadPrompt(driven.PromptRAGSystem)
	var errs []error
	for _, b := range chain {
		model := b.svc.ModelName()
		logger.Debug("Generating with %s", model)

		cfg := s.retry
		cfg.AttemptTimeout = b.cfg.Timeout
		started := time.Now()
		answer, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context) (string, error) {
			out, err := b.svc.Generate(ctx, prompt, driven.GenerateOptions{
				System:      system,
				MaxTokens:   b.cfg.MaxTokens,
				Temperature: b.cfg.Temperature,
			})
			if err != nil {
				return "", err
			}
			if out = strings.TrimSpace(out); out == "" {
				return "", errEmptyAnswer
			}
			return out, nil
		})
		s.metrics.ObserveBackendCall("generation", model, time.Since(started), err)
		if err == nil {
			return answer, model, nil
		}

		logger.Warn("generation with %s failed: %v", model, err)
		errs = append(errs, fmt.Errorf("%s: %w", model, err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", domain.ModelNone, fmt.Errorf("%w: %w", domain.ErrGenerationBackendUnavailable, errors.Join(errs...))
}

// sources converts hits to response sources with preview text.
func (s *RAGService) sources(hits []domain.SearchHit) []domain.Source {
	out := make([]domain.Source, len(hits))
	for i := range hits {
		out[i] = domain.Source{
			Text:            previewText(hits[i].Text, s.cfg.SourcePreviewChars),
			Metadata:        hits[i].Metadata.Clone(),
			SimilarityScore: hits[i].Score,
			Rank:            i + 1,
		}
	}
	return out
}
