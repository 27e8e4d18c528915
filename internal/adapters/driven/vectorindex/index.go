// Package vectorindex provides an in-process vector index with exact (flat)
// and clustered (IVF) search, tombstone deletion and on-disk persistence.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultNList          = 100
	DefaultNProbe         = 8
	DefaultTrainThreshold = 1000
	DefaultSeed           = 42
)

// Config configures an index.
type Config struct {
	// Dimension is the vector size. Required.
	Dimension int

	// Type selects exact or clustered search (default: flat).
	Type domain.IndexType

	// Metric selects the similarity function (default: cosine).
	Metric domain.Metric

	// NList is the number of IVF clusters.
	NList int

	// NProbe is how many clusters an IVF search visits.
	NProbe int

	// TrainThreshold is the live vector count at which AutoTrain trains.
	TrainThreshold int

	// AutoTrain trains an IVF index from Add once TrainThreshold is reached.
	AutoTrain bool

	// Seed makes k-means reproducible.
	Seed int64
}

// entry is the side-table row for one position.
type entry struct {
	ChunkID  string
	Text     string
	Metadata domain.ChunkMetadata
	Deleted  bool
}

// Index is a vector index guarded by an RWMutex: searches share the read
// lock, mutations take the write lock.
type Index struct {
	mu      sync.RWMutex
	cfg     Config
	vectors [][]float32
	entries []entry
	ids     map[string]int // live chunk ID -> position

	// IVF state. assign[pos] is the list of pos, or -1 before training.
	state     domain.TrainingState
	centroids [][]float32
	lists     [][]int
	assign    []int

	// generation changes whenever the contents are replaced wholesale
	// (Clear, Load). Training discards centroids from an older generation.
	generation uint64
	trainHook  func() // test hook, runs while clustering is unlocked

	newID func() string
}

// New creates an empty index.
func New(cfg Config) (*Index, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("vectorindex: %w: dimension must be positive, got %d",
			domain.ErrInvalidInput, cfg.Dimension)
	}
	if cfg.Type == "" {
		cfg.Type = domain.IndexTypeFlat
	}
	if cfg.Metric == "" {
		cfg.Metric = domain.MetricCosine
	}
	if !cfg.Type.IsValid() {
		return nil, fmt.Errorf("vectorindex: %w: unknown index type %q", domain.ErrInvalidInput, cfg.Type)
	}
	if !cfg.Metric.IsValid() {
		return nil, fmt.Errorf("vectorindex: %w: unknown metric %q", domain.ErrInvalidInput, cfg.Metric)
	}
	if cfg.NList <= 0 {
		cfg.NList = DefaultNList
	}
	if cfg.NProbe <= 0 {
		cfg.NProbe = DefaultNProbe
	}
	if cfg.TrainThreshold <= 0 {
		cfg.TrainThreshold = DefaultTrainThreshold
	}
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}

	idx := &Index{
		cfg:   cfg,
		newID: func() string { return uuid.New().String() },
	}
	idx.reset()
	return idx, nil
}

// reset empties all state. Caller holds the write lock (or owns idx exclusively).
func (idx *Index) reset() {
	idx.vectors = nil
	idx.entries = nil
	idx.ids = make(map[string]int)
	idx.centroids = nil
	idx.lists = nil
	idx.assign = nil
	idx.generation++
	idx.state = domain.TrainingStateReady
	if idx.cfg.Type.RequiresTraining() {
		idx.state = domain.TrainingStateUntrained
	}
}

// Config returns the index configuration.
func (idx *Index) Config() Config {
	return idx.cfg
}

// Dimension returns the configured vector size.
func (idx *Index) Dimension() int {
	return idx.cfg.Dimension
}

// Add inserts chunks with their vectors. The batch is validated before any
// state changes. A chunk whose ID is already live replaces the old entry.
func (idx *Index) Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) ([]string, error) {
	ids, _, err := idx.replace(ctx, "", chunks, vectors)
	return ids, err
}

// ReplaceSource swaps every live chunk from sourceFile for the given batch
// in one step. An invalid batch leaves the existing chunks untouched.
func (idx *Index) ReplaceSource(
	ctx context.Context, sourceFile string, chunks []domain.Chunk, vectors [][]float32,
) ([]string, int, error) {
	return idx.replace(ctx, sourceFile, chunks, vectors)
}

func (idx *Index) validate(chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("vectorindex: %w: %d chunks but %d vectors",
			domain.ErrInvalidInput, len(chunks), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != idx.cfg.Dimension {
			return fmt.Errorf("vectorindex: %w: vector %d has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, i, len(v), idx.cfg.Dimension)
		}
		if !finite(v) {
			return fmt.Errorf("vectorindex: %w: vector %d contains NaN or Inf", domain.ErrInvalidInput, i)
		}
	}
	return nil
}

// replace validates the batch, tombstones sourceFile's chunks (when
// sourceFile is set) and appends the batch, all under one lock.
func (idx *Index) replace(
	ctx context.Context, sourceFile string, chunks []domain.Chunk, vectors [][]float32,
) ([]string, int, error) {
	if err := idx.validate(chunks, vectors); err != nil {
		return nil, 0, err
	}
	if sourceFile == "" && len(chunks) == 0 {
		return []string{}, 0, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	idx.mu.Lock()
	replaced := 0
	if sourceFile != "" {
		replaced = idx.deleteSourceLocked(sourceFile)
	}
	ids := make([]string, len(chunks))
	for i := range chunks {
		id := chunks[i].ID
		if id == "" {
			id = idx.newID()
		}
		ids[i] = id

		if old, ok := idx.ids[id]; ok {
			idx.entries[old].Deleted = true
		}

		pos := len(idx.entries)
		idx.vectors = append(idx.vectors, idx.prepare(vectors[i]))
		idx.entries = append(idx.entries, entry{
			ChunkID:  id,
			Text:     chunks[i].Text,
			Metadata: chunks[i].Metadata.Clone(),
		})
		idx.ids[id] = pos
		idx.assignPosition(pos)
	}
	autoTrain := idx.cfg.AutoTrain &&
		len(chunks) > 0 &&
		idx.state == domain.TrainingStateUntrained &&
		len(idx.ids) >= idx.cfg.TrainThreshold
	idx.mu.Unlock()

	if autoTrain {
		if err := idx.Train(ctx); err != nil && !errors.Is(err, errTrainingInProgress) && !errors.Is(err, errTrainingDiscarded) {
			logger.Warn("vectorindex: automatic training failed: %v", err)
		}
	}

	return ids, replaced, nil
}

// prepare copies v, normalising it when the metric is cosine.
func (idx *Index) prepare(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	if idx.cfg.Metric == domain.MetricCosine {
		normalize(out)
	}
	return out
}

// Search returns the k best live entries. Ties keep position order.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]domain.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.search(query, k)
}

// SearchWithFilter returns up to k hits whose metadata matches filter.
// It over-fetches 2k candidates and doubles until enough matches are found
// or every live entry has been considered.
func (idx *Index) SearchWithFilter(
	ctx context.Context,
	filter domain.MetadataFilter,
	query []float32,
	k int,
) ([]domain.SearchHit, error) {
	if len(filter) == 0 {
		return idx.Search(ctx, query, k)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 || len(idx.ids) == 0 {
		return []domain.SearchHit{}, nil
	}

	fetch := k * 2
	for {
		hits, err := idx.search(query, fetch)
		if err != nil {
			return nil, err
		}

		matched := make([]domain.SearchHit, 0, k)
		for i := range hits {
			if filter.Matches(&hits[i].Metadata) {
				matched = append(matched, hits[i])
				if len(matched) == k {
					break
				}
			}
		}

		if len(matched) == k || fetch >= len(idx.ids) {
			for i := range matched {
				matched[i].Rank = i + 1
			}
			return matched, nil
		}
		fetch *= 2
	}
}

// search scores candidates and returns the top k. Caller holds a read lock.
func (idx *Index) search(query []float32, k int) ([]domain.SearchHit, error) {
	if len(query) != idx.cfg.Dimension {
		return nil, fmt.Errorf("vectorindex: %w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), idx.cfg.Dimension)
	}
	live := len(idx.ids)
	if k <= 0 || live == 0 {
		return []domain.SearchHit{}, nil
	}
	if k > live {
		k = live
	}

	q := query
	if idx.cfg.Metric == domain.MetricCosine {
		q = make([]float32, len(query))
		copy(q, query)
		normalize(q)
	}

	type scored struct {
		pos      int
		score    float64
		distance float64
	}

	candidates := idx.candidates(q, k)
	results := make([]scored, 0, len(candidates))
	for _, pos := range candidates {
		score, distance := idx.score(q, idx.vectors[pos])
		results = append(results, scored{pos: pos, score: score, distance: distance})
	}

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].score != results[b].score {
			return results[a].score > results[b].score
		}
		return results[a].pos < results[b].pos
	})
	if len(results) > k {
		results = results[:k]
	}

	hits := make([]domain.SearchHit, len(results))
	for i, r := range results {
		e := &idx.entries[r.pos]
		hits[i] = domain.SearchHit{
			ChunkID:  e.ChunkID,
			Position: r.pos,
			Text:     e.Text,
			Metadata: e.Metadata.Clone(),
			Score:    r.score,
			Distance: r.distance,
			Rank:     i + 1,
		}
	}
	return hits, nil
}

// candidates returns the live positions to score, in position order.
// A ready IVF index probes the nearest lists; if they hold fewer than k
// live entries, or the index is untrained, every live position is scanned.
func (idx *Index) candidates(q []float32, k int) []int {
	if idx.cfg.Type == domain.IndexTypeIVF && idx.state == domain.TrainingStateReady && len(idx.centroids) > 0 {
		var out []int
		for _, list := range idx.probe(q) {
			for _, pos := range idx.lists[list] {
				if !idx.entries[pos].Deleted {
					out = append(out, pos)
				}
			}
		}
		if len(out) >= k {
			sort.Ints(out)
			return out
		}
	}

	out := make([]int, 0, len(idx.ids))
	for pos := range idx.entries {
		if !idx.entries[pos].Deleted {
			out = append(out, pos)
		}
	}
	return out
}

// score returns the similarity of v to q and, for l2, the raw distance.
func (idx *Index) score(q, v []float32) (float64, float64) {
	if idx.cfg.Metric == domain.MetricL2 {
		d := math.Sqrt(squaredDistance(q, v))
		return 1 / (1 + d), d
	}
	return dot(q, v), 0
}

// Delete tombstones the given chunks and returns how many were live.
func (idx *Index) Delete(_ context.Context, chunkIDs ...string) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := 0
	for _, id := range chunkIDs {
		pos, ok := idx.ids[id]
		if !ok {
			continue
		}
		idx.entries[pos].Deleted = true
		delete(idx.ids, id)
		n++
	}
	return n, nil
}

// DeleteBySource tombstones every live chunk whose source_file equals sourceFile.
func (idx *Index) DeleteBySource(_ context.Context, sourceFile string) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.deleteSourceLocked(sourceFile), nil
}

// deleteSourceLocked tombstones sourceFile's live chunks. Caller holds the
// write lock.
func (idx *Index) deleteSourceLocked(sourceFile string) int {
	n := 0
	for id, pos := range idx.ids {
		if idx.entries[pos].Metadata.SourceFile == sourceFile {
			idx.entries[pos].Deleted = true
			delete(idx.ids, id)
			n++
		}
	}
	return n
}

// Compact rebuilds the index without tombstoned entries. Trained centroids
// are kept and live vectors are reassigned to them.
func (idx *Index) Compact() (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	removed := len(idx.entries) - len(idx.ids)
	if removed == 0 {
		return 0, nil
	}

	vectors := make([][]float32, 0, len(idx.ids))
	entries := make([]entry, 0, len(idx.ids))
	for pos := range idx.entries {
		if idx.entries[pos].Deleted {
			continue
		}
		vectors = append(vectors, idx.vectors[pos])
		entries = append(entries, idx.entries[pos])
	}

	idx.vectors = vectors
	idx.entries = entries
	idx.ids = make(map[string]int, len(entries))
	for pos := range entries {
		idx.ids[entries[pos].ChunkID] = pos
	}
	idx.rebuildLists()

	return removed, nil
}

// State returns the training state.
func (idx *Index) State() domain.TrainingState {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.state
}

// Stats summarises the index.
func (idx *Index) Stats() domain.IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return domain.IndexStats{
		TotalVectors:  len(idx.entries),
		LiveVectors:   len(idx.ids),
		Tombstoned:    len(idx.entries) - len(idx.ids),
		Dimension:     idx.cfg.Dimension,
		Type:          idx.cfg.Type,
		Metric:        idx.cfg.Metric,
		TrainingState: idx.state,
		IsTrained:     idx.state == domain.TrainingStateReady,
		Lists:         len(idx.centroids),
	}
}

// Clear empties the index. Configuration is kept.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.reset()
}

// Close releases resources.
func (idx *Index) Close() error {
	return nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func squaredDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// normalize scales v to unit length in place. Zero vectors are left as is.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

func finite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
