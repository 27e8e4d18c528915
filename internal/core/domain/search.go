package domain

// IndexType selects the vector index structure.
type IndexType string

// Available index types.
const (
	// IndexTypeFlat performs exact brute-force search.
	IndexTypeFlat IndexType = "flat"

	// IndexTypeIVF clusters vectors into inverted lists and probes the nearest ones.
	// Results are a high-probability, not guaranteed, top-k.
	IndexTypeIVF IndexType = "ivf"
)

// IsValid returns true if the index type is recognised.
func (t IndexType) IsValid() bool {
	return t == IndexTypeFlat || t == IndexTypeIVF
}

// RequiresTraining returns true if the index must be trained before approximate search.
func (t IndexType) RequiresTraining() bool {
	return t == IndexTypeIVF
}

// Metric selects how vectors are compared.
type Metric string

// Available metrics.
const (
	// MetricCosine compares unit-normalised vectors by dot product.
	MetricCosine Metric = "cosine"

	// MetricL2 compares by Euclidean distance. Scores are 1/(1+distance).
	MetricL2 Metric = "l2"

	// MetricInnerProduct compares raw vectors by dot product.
	MetricInnerProduct Metric = "ip"
)

// IsValid returns true if the metric is recognised.
func (m Metric) IsValid() bool {
	switch m {
	case MetricCosine, MetricL2, MetricInnerProduct:
		return true
	default:
		return false
	}
}

// TrainingState is the lifecycle of an index that needs training.
type TrainingState string

// Training states. Flat indexes are always Ready.
const (
	TrainingStateUntrained TrainingState = "untrained"
	TrainingStateTraining  TrainingState = "training"
	TrainingStateReady     TrainingState = "ready"
)

// Embedding is the vector for one chunk.
type Embedding struct {
	// ChunkID is the owning chunk.
	ChunkID string `json:"chunk_id"`

	// Vector is the dense representation.
	Vector []float32 `json:"vector"`

	// Model is the embedding model that produced the vector.
	Model string `json:"model"`

	// Normalized is true when the vector has unit L2 norm.
	Normalized bool `json:"normalized"`
}

// SearchHit is a single ranked match from the vector index.
type SearchHit struct {
	// ChunkID identifies the matched chunk.
	ChunkID string `json:"chunk_id"`

	// Position is the slot in the underlying index structure.
	Position int `json:"position"`

	// Text is the stored chunk text.
	Text string `json:"text"`

	// Metadata is the stored chunk metadata.
	Metadata ChunkMetadata `json:"metadata"`

	// Score is the similarity under the index metric (higher is better).
	Score float64 `json:"similarity_score"`

	// Distance is the raw L2 distance. Zero for other metrics.
	Distance float64 `json:"distance,omitempty"`

	// Rank is the 1-based position in the result list.
	Rank int `json:"rank"`
}

// IndexStats summarises a vector index.
type IndexStats struct {
	TotalVectors  int           `json:"total_vectors"`
	LiveVectors   int           `json:"live_vectors"`
	Tombstoned    int           `json:"tombstoned"`
	Dimension     int           `json:"embedding_dim"`
	Type          IndexType     `json:"index_type"`
	Metric        Metric        `json:"metric"`
	TrainingState TrainingState `json:"training_state"`
	IsTrained     bool          `json:"is_trained"`
	Lists         int           `json:"lists,omitempty"`
}
