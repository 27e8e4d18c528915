package postprocessors

import (
	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/postprocessors/chunker"
)

// RegisterDefaults registers the built-in sentence splitters.
func RegisterDefaults(r *Registry) {
	r.Register(string(domain.SplitterRegex), func(cfg map[string]any) (driven.Chunker, error) {
		return buildChunker(cfg, chunker.RegexSplitter{}), nil
	})
	r.Register(string(domain.SplitterProse), func(cfg map[string]any) (driven.Chunker, error) {
		return buildChunker(cfg, chunker.ProseSplitter{}), nil
	})
}

// NewDefaultRegistry returns a registry with the built-in splitters.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// buildChunker creates a chunker from generic config.
// Supported config keys:
//   - chunk_size (int): Estimated tokens per chunk (default: 500)
//   - chunk_overlap (int): Overlapping tokens between chunks (default: 50)
func buildChunker(cfg map[string]any, splitter chunker.SentenceSplitter) *chunker.Processor {
	opts := []chunker.Option{chunker.WithSplitter(splitter)}

	if cfg != nil {
		if size := getIntFromConfig(cfg, "chunk_size"); size > 0 {
			opts = append(opts, chunker.WithChunkSize(size))
		}
		if _, ok := cfg["chunk_overlap"]; ok {
			opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "chunk_overlap")))
		}
	}

	return chunker.New(opts...)
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
