package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/core/ports/driving"
	"github.com/custodia-labs/ragcore/internal/logger"
	"github.com/custodia-labs/ragcore/internal/retry"
)

// Ensure EmbeddingGenerator implements the interface.
var _ driving.EmbeddingGenerator = (*EmbeddingGenerator)(nil)

// DefaultEmbeddingBatchSize is how many texts go to the backend per call.
const DefaultEmbeddingBatchSize = 32

// cacheNameEmbedding labels embedding cache metrics.
const cacheNameEmbedding = "embedding"

// EmbeddingGenerator maps text to unit-norm vectors and memoises them by
// md5(text + model). A nil cache disables memoisation.
type EmbeddingGenerator struct {
	backend      driven.EmbeddingService
	cache        driven.EmbeddingCache
	metrics      driven.Metrics
	retry        retry.Config
	timeout      time.Duration
	batchSize    int
	cacheQueries bool

	hits   atomic.Int64
	misses atomic.Int64
}

// EmbeddingOption configures an EmbeddingGenerator.
type EmbeddingOption func(*EmbeddingGenerator)

// WithQueryCache makes EmbedQuery consult and fill the cache.
func WithQueryCache(enabled bool) EmbeddingOption {
	return func(g *EmbeddingGenerator) { g.cacheQueries = enabled }
}

// WithEmbeddingMetrics records cache and backend metrics.
func WithEmbeddingMetrics(m driven.Metrics) EmbeddingOption {
	return func(g *EmbeddingGenerator) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithEmbeddingBatchSize sets the default batch size.
func WithEmbeddingBatchSize(n int) EmbeddingOption {
	return func(g *EmbeddingGenerator) {
		if n > 0 {
			g.batchSize = n
		}
	}
}

// WithEmbeddingTimeout bounds each backend attempt.
func WithEmbeddingTimeout(d time.Duration) EmbeddingOption {
	return func(g *EmbeddingGenerator) { g.timeout = d }
}

// WithEmbeddingRetry replaces the retry policy.
func WithEmbeddingRetry(cfg retry.Config) EmbeddingOption {
	return func(g *EmbeddingGenerator) { g.retry = cfg }
}

// NewEmbeddingGenerator creates a generator over backend. cache may be nil.
func NewEmbeddingGenerator(
	backend driven.EmbeddingService, cache driven.EmbeddingCache, opts ...EmbeddingOption,
) *EmbeddingGenerator {
	g := &EmbeddingGenerator{
		backend:   backend,
		cache:     cache,
		metrics:   driven.NopMetrics{},
		retry:     retry.DefaultConfig(),
		timeout:   30 * time.Second,
		batchSize: DefaultEmbeddingBatchSize,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.retry.Logger = logger.Zap()
	return g
}

// EmbedBatch embeds texts, returning one unit vector per text in input order.
// Identical texts are embedded once.
func (g *EmbeddingGenerator) EmbedBatch(
	ctx context.Context, texts []string, batchSize int, useCache bool,
) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}
	if batchSize <= 0 {
		batchSize = g.batchSize
	}
	useCache = useCache && g.cache != nil

	// Group input positions by cache key so duplicates share one call.
	var order []string
	pending := make(map[string][]int)
	for i, text := range texts {
		key := g.cacheKey(text)
		if _, seen := pending[key]; !seen {
			order = append(order, key)
		}
		pending[key] = append(pending[key], i)
	}

	var missKeys []string
	for _, key := range order {
		if useCache {
			if vec, ok := g.lookup(ctx, key); ok {
				for _, i := range pending[key] {
					out[i] = vec
				}
				continue
			}
		}
		missKeys = append(missKeys, key)
	}

	if len(missKeys) > 0 {
		logger.Debug("Embedding %d texts (%d cached) with %s", len(missKeys), len(order)-len(missKeys), g.ModelName())
	}

	for start := 0; start < len(missKeys); start += batchSize {
		end := min(start+batchSize, len(missKeys))
		keys := missKeys[start:end]

		batch := make([]string, len(keys))
		for j, key := range keys {
			batch[j] = texts[pending[key][0]]
		}

		vectors, err := g.call(ctx, batch)
		if err != nil {
			return nil, err
		}

		for j, key := range keys {
			vec := normalize(vectors[j])
			for _, i := range pending[key] {
				out[i] = vec
			}
			if useCache {
				if err := g.cache.Put(ctx, key, vec); err != nil {
					logger.Warn("embedding cache write failed: %v", err)
				}
			}
		}
	}

	return out, nil
}

// EmbedQuery embeds a single query. The cache is only used with WithQueryCache.
func (g *EmbeddingGenerator) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EmbedBatch(ctx, []string{text}, 1, g.cacheQueries)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedChunks embeds chunk texts through the cache and pairs them with chunk IDs.
func (g *EmbeddingGenerator) EmbedChunks(
	ctx context.Context, chunks []domain.Chunk, batchSize int,
) ([]domain.Embedding, error) {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	vectors, err := g.EmbedBatch(ctx, texts, batchSize, true)
	if err != nil {
		return nil, err
	}

	model := g.ModelName()
	out := make([]domain.Embedding, len(chunks))
	for i := range chunks {
		out[i] = domain.Embedding{
			ChunkID:    chunks[i].ID,
			Vector:     vectors[i],
			Model:      model,
			Normalized: true,
		}
	}
	return out, nil
}

// Dimensions returns the backend vector size.
func (g *EmbeddingGenerator) Dimensions() int {
	return g.backend.Dimensions()
}

// ModelName returns the backend model identifier.
func (g *EmbeddingGenerator) ModelName() string {
	return g.backend.ModelName()
}

// Stats summarises cache usage since the generator was created.
func (g *EmbeddingGenerator) Stats(ctx context.Context) driving.EmbeddingStats {
	stats := driving.EmbeddingStats{
		Model:       g.ModelName(),
		Dimensions:  g.Dimensions(),
		CacheHits:   g.hits.Load(),
		CacheMisses: g.misses.Load(),
	}
	if g.cache != nil {
		n, err := g.cache.Len(ctx)
		if err != nil {
			logger.Warn("embedding cache size unavailable: %v", err)
		}
		stats.CacheEntries = n
	}
	return stats
}

// ClearCache removes every cached embedding.
func (g *EmbeddingGenerator) ClearCache(ctx context.Context) error {
	if g.cache == nil {
		return nil
	}
	if err := g.cache.Clear(ctx); err != nil {
		return fmt.Errorf("embedding: clear cache: %w", err)
	}
	return nil
}

func (g *EmbeddingGenerator) cacheKey(text string) string {
	return contentHash([]byte(text + g.ModelName()))
}

// lookup returns a cached vector. Corrupt or mis-sized entries count as misses.
func (g *EmbeddingGenerator) lookup(ctx context.Context, key string) ([]float32, bool) {
	vec, err := g.cache.Get(ctx, key)
	if err == nil && g.Dimensions() > 0 && len(vec) != g.Dimensions() {
		err = fmt.Errorf("%w: cached vector has %d dimensions, want %d",
			domain.ErrCacheCorrupted, len(vec), g.Dimensions())
	}
	switch {
	case err == nil:
		g.hits.Add(1)
		g.metrics.CacheHit(cacheNameEmbedding)
		return vec, true
	case errors.Is(err, domain.ErrCacheMiss):
	default:
		logger.Warn("embedding cache entry %s ignored: %v", key, err)
	}
	g.misses.Add(1)
	g.metrics.CacheMiss(cacheNameEmbedding)
	return nil, false
}

// call sends one batch to the backend with a per-attempt timeout and one retry.
func (g *EmbeddingGenerator) call(ctx context.Context, batch []string) ([][]float32, error) {
	cfg := g.retry
	cfg.AttemptTimeout = g.timeout

	start := time.Now()
	vectors, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context) ([][]float32, error) {
		return g.backend.EmbedBatch(ctx, batch)
	})
	if err == nil && len(vectors) != len(batch) {
		err = fmt.Errorf("backend returned %d vectors for %d texts", len(vectors), len(batch))
	}
	g.metrics.ObserveBackendCall(cacheNameEmbedding, g.ModelName(), time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w: %w", domain.ErrEmbeddingBackendUnavailable, err)
	}

	if dim := g.Dimensions(); dim > 0 {
		for _, v := range vectors {
			if len(v) != dim {
				return nil, fmt.Errorf("embedding: %w: backend returned %d dimensions, want %d",
					domain.ErrDimensionMismatch, len(v), dim)
			}
		}
	}
	return vectors, nil
}

// normalize returns a unit-length copy of v. A zero vector stays zero.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// Similarity is the dot product of two unit vectors clamped to [-1, 1].
// Vectors of different length score 0.
func Similarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return math.Max(-1, math.Min(1, dot))
}

// Candidate is a vector to rank against a query.
type Candidate struct {
	ID     string
	Vector []float32
}

// ScoredCandidate is a Candidate with its similarity to the query.
type ScoredCandidate struct {
	Candidate
	Score float64
}

// TopK returns the k candidates most similar to query. Ties keep input order.
func TopK(query []float32, candidates []Candidate, k int) []ScoredCandidate {
	if k <= 0 {
		return []ScoredCandidate{}
	}
	scored := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = ScoredCandidate{Candidate: c, Score: Similarity(query, c.Vector)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}
