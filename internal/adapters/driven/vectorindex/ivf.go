package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/logger"
)

// kmeansIterations bounds Lloyd iterations; training stops earlier once
// assignments settle.
const kmeansIterations = 20

var (
	errTrainingInProgress = errors.New("training already in progress")
	errTrainingDiscarded  = errors.New("index contents replaced during training")
)

// Train clusters the live vectors into NList lists. It moves the index
// Untrained -> Training -> Ready. Clustering runs outside the lock so
// searches continue (by exact scan) while it works; vectors added in the
// meantime are assigned when the centroids are installed. If the index is
// cleared or reloaded meanwhile the centroids are discarded.
// Flat indexes are always Ready and Train is a no-op.
func (idx *Index) Train(ctx context.Context) error {
	if !idx.cfg.Type.RequiresTraining() {
		return nil
	}

	idx.mu.Lock()
	if idx.state == domain.TrainingStateTraining {
		idx.mu.Unlock()
		return fmt.Errorf("vectorindex: %w", errTrainingInProgress)
	}
	sample := make([][]float32, 0, len(idx.ids))
	for pos := range idx.entries {
		if !idx.entries[pos].Deleted {
			sample = append(sample, idx.vectors[pos])
		}
	}
	if len(sample) == 0 {
		idx.mu.Unlock()
		return fmt.Errorf("vectorindex: %w: no vectors to train on", domain.ErrInvalidInput)
	}
	previous := idx.state
	generation := idx.generation
	idx.state = domain.TrainingStateTraining
	hook := idx.trainHook
	idx.mu.Unlock()

	if hook != nil {
		hook()
	}
	logger.Debug("vectorindex: training %d lists over %d vectors", min(idx.cfg.NList, len(sample)), len(sample))
	centroids, err := kmeans(ctx, sample, idx.cfg.NList, idx.cfg.Metric, idx.cfg.Seed)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.generation != generation {
		logger.Debug("vectorindex: discarding centroids trained on replaced contents")
		return fmt.Errorf("vectorindex: %w", errTrainingDiscarded)
	}
	if err != nil {
		idx.state = previous
		return fmt.Errorf("vectorindex: train: %w", err)
	}
	idx.centroids = centroids
	idx.state = domain.TrainingStateReady
	idx.rebuildLists()
	return nil
}

// assignPosition files a newly appended position under its nearest list.
// Caller holds the write lock.
func (idx *Index) assignPosition(pos int) {
	for len(idx.assign) <= pos {
		idx.assign = append(idx.assign, -1)
	}
	if idx.state != domain.TrainingStateReady || len(idx.centroids) == 0 {
		return
	}
	c := nearest(idx.centroids, idx.vectors[pos], idx.cfg.Metric)
	idx.assign[pos] = c
	idx.lists[c] = append(idx.lists[c], pos)
}

// rebuildLists reassigns every live position to its nearest centroid.
// Caller holds the write lock.
func (idx *Index) rebuildLists() {
	idx.assign = make([]int, len(idx.entries))
	for pos := range idx.assign {
		idx.assign[pos] = -1
	}
	if len(idx.centroids) == 0 {
		idx.lists = nil
		return
	}

	idx.lists = make([][]int, len(idx.centroids))
	for pos := range idx.entries {
		if idx.entries[pos].Deleted {
			continue
		}
		c := nearest(idx.centroids, idx.vectors[pos], idx.cfg.Metric)
		idx.assign[pos] = c
		idx.lists[c] = append(idx.lists[c], pos)
	}
}

// probe returns the NProbe lists whose centroids score best against q.
func (idx *Index) probe(q []float32) []int {
	order := make([]int, len(idx.centroids))
	scores := make([]float64, len(idx.centroids))
	for i, c := range idx.centroids {
		order[i] = i
		scores[i] = similarity(q, c, idx.cfg.Metric)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	n := idx.cfg.NProbe
	if n > len(order) {
		n = len(order)
	}
	return order[:n]
}

// kmeans runs Lloyd's algorithm. k is capped at len(data). Cosine
// centroids are renormalised after each update (spherical k-means).
func kmeans(ctx context.Context, data [][]float32, k int, metric domain.Metric, seed int64) ([][]float32, error) {
	if k > len(data) {
		k = len(data)
	}
	centroids := seedCentroids(data, k, metric, seed)
	dim := len(data[0])

	assign := make([]int, len(data))
	for iter := 0; iter < kmeansIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changed := iter == 0
		for i, v := range data {
			c := nearest(centroids, v, metric)
			if c != assign[i] {
				changed = true
			}
			assign[i] = c
		}
		if !changed {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, v := range data {
			c := assign[i]
			counts[c]++
			for d, x := range v {
				sums[c][d] += float64(x)
			}
		}
		for c := range centroids {
			// An empty cluster keeps its previous centroid.
			if counts[c] == 0 {
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
			if metric == domain.MetricCosine {
				normalize(centroids[c])
			}
		}
	}

	return centroids, nil
}

// seedCentroids picks a random first centroid and then, farthest-first,
// the point least similar to every centroid chosen so far. Ties go to the
// lowest index, so a given seed always yields the same centroids.
func seedCentroids(data [][]float32, k int, metric domain.Metric, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	first := rng.Intn(len(data))

	chosen := make([]bool, len(data))
	closest := make([]float64, len(data))
	centroids := make([][]float32, 0, k)

	pick := func(i int) {
		chosen[i] = true
		c := make([]float32, len(data[i]))
		copy(c, data[i])
		centroids = append(centroids, c)
		for j, v := range data {
			s := similarity(v, c, metric)
			if len(centroids) == 1 || s > closest[j] {
				closest[j] = s
			}
		}
	}

	pick(first)
	for len(centroids) < k {
		next := -1
		for j := range data {
			if chosen[j] {
				continue
			}
			if next == -1 || closest[j] < closest[next] {
				next = j
			}
		}
		pick(next)
	}
	return centroids
}

// nearest returns the index of the best-scoring centroid. Ties go to the lowest index.
func nearest(centroids [][]float32, v []float32, metric domain.Metric) int {
	best := 0
	bestScore := similarity(v, centroids[0], metric)
	for i := 1; i < len(centroids); i++ {
		if s := similarity(v, centroids[i], metric); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// similarity is higher-is-better for every metric: negated squared
// distance for l2, dot product otherwise.
func similarity(a, b []float32, metric domain.Metric) float64 {
	if metric == domain.MetricL2 {
		return -squaredDistance(a, b)
	}
	return dot(a, b)
}
