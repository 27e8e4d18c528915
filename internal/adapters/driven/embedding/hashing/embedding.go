// Package hashing provides an in-process embedding service based on
// feature hashing. It needs no model download or network access, which
// makes it the default backend and the one used by tests.
//
// Word unigrams, word bigrams and character trigrams are hashed into a
// fixed number of signed buckets, weighted by log term frequency and
// L2-normalised. Texts that share vocabulary get similar vectors; there is
// no semantic model.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultDimensions = 384
	bigramWeight      = 0.7
	trigramWeight     = 0.5
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

// ModelName returns the model identifier for a dimension, e.g. "hashing-384".
func ModelName(dimensions int) string {
	return fmt.Sprintf("hashing-%d", dimensions)
}

// EmbeddingService generates deterministic hashed embeddings.
type EmbeddingService struct {
	dimensions int
	stopwords  map[string]struct{}
}

// NewEmbeddingService creates a hashing embedder. Zero dimensions uses 384.
func NewEmbeddingService(dimensions int) *EmbeddingService {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &EmbeddingService{
		dimensions: dimensions,
		stopwords:  defaultStopwords(),
	}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.embed(text), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = s.embed(text)
	}
	return out, nil
}

func (s *EmbeddingService) embed(text string) []float32 {
	acc := make([]float64, s.dimensions)

	counts := make(map[string]int)
	bigrams := make(map[string]int)
	prev := ""
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := s.stopwords[tok]; stop {
			continue
		}
		counts[tok]++
		if prev != "" {
			bigrams[prev+" "+tok]++
		}
		prev = tok
	}

	for tok, n := range counts {
		w := 1 + math.Log(float64(n))
		s.add(acc, "w:"+tok, w)

		// Trigrams give partial credit for inflections and typos.
		padded := []rune("^" + tok + "$")
		for i := 0; i+3 <= len(padded); i++ {
			s.add(acc, "g:"+string(padded[i:i+3]), w*trigramWeight)
		}
	}

	for pair, n := range bigrams {
		s.add(acc, "b:"+pair, (1+math.Log(float64(n)))*bigramWeight)
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, s.dimensions)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

// add hashes feature into a bucket with a hash-derived sign.
func (s *EmbeddingService) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(s.dimensions))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[bucket] += weight
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return ModelName(s.dimensions)
}

// Ping always succeeds; the embedder runs in process.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "from",
		"has", "have", "he", "her", "his", "i", "in", "is", "it", "its", "of",
		"on", "or", "she", "that", "the", "their", "them", "there", "they",
		"this", "to", "was", "we", "were", "what", "which", "who", "will",
		"with", "you", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
