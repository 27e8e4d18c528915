package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/retry"
)

// fastRetry retries once with no meaningful delay.
func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

// fakeEmbedder returns fixed vectors keyed by text, or a vector derived from
// the text length. It counts texts sent to the backend.
type fakeEmbedder struct {
	mu      sync.Mutex
	dims    int
	vectors map[string][]float32
	err     error
	failN   int // fail this many calls before succeeding
	calls   int
	texts   int
	short   bool // return one vector fewer than asked for
	nan     bool // return vectors full of NaN
}

func newFakeEmbedder(dims int) *fakeEmbedder {
	return &fakeEmbedder{dims: dims, vectors: map[string][]float32{}}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failN > 0 {
		f.failN--
		return nil, errors.New("connection refused")
	}
	if f.err != nil {
		return nil, f.err
	}
	f.texts += len(texts)

	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out = append(out, v)
			continue
		}
		v := make([]float32, f.dims)
		v[len(t)%f.dims] = 2
		if f.nan {
			for i := range v {
				v[i] = float32(math.NaN())
			}
		}
		out = append(out, v)
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int            { return f.dims }
func (f *fakeEmbedder) ModelName() string          { return "fake-embed" }
func (f *fakeEmbedder) Ping(context.Context) error { return nil }
func (f *fakeEmbedder) Close() error               { return nil }

func (f *fakeEmbedder) textCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.texts
}

// fakeLLM answers with a fixed string or fails.
type fakeLLM struct {
	mu      sync.Mutex
	name    string
	local   bool
	answer  string
	err     error
	calls   int
	prompts []string
	opts    []driven.GenerateOptions
	block   bool // wait for the context to end
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeLLM) ModelName() string          { return f.name }
func (f *fakeLLM) IsLocal() bool              { return f.local }
func (f *fakeLLM) Ping(context.Context) error { return f.err }
func (f *fakeLLM) Close() error               { return nil }

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingMetrics counts calls by name.
type recordingMetrics struct {
	mu        sync.Mutex
	hits      map[string]int
	misses    map[string]int
	queries   []bool
	ingests   int
	backend   map[string]int
	indexSize int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{hits: map[string]int{}, misses: map[string]int{}, backend: map[string]int{}}
}

func (m *recordingMetrics) CacheHit(c string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[c]++
}

func (m *recordingMetrics) CacheMiss(c string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses[c]++
}

func (m *recordingMetrics) ObserveQuery(_ time.Duration, cached bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, cached)
}

func (m *recordingMetrics) ObserveIngest(time.Duration, string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingests++
}

func (m *recordingMetrics) ObserveBackendCall(kind, _ string, _ time.Duration, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backend[kind]++
}

func (m *recordingMetrics) SetIndexSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexSize = n
}

// brokenResponseCache fails every operation.
type brokenResponseCache struct{ err error }

func (c brokenResponseCache) Get(context.Context, string) (*domain.QueryResponse, error) {
	return nil, c.err
}
func (c brokenResponseCache) Put(context.Context, string, *domain.QueryResponse) error { return c.err }
func (c brokenResponseCache) Len(context.Context) (int, error)                         { return 0, c.err }
func (c brokenResponseCache) Clear(context.Context) error                              { return c.err }

// fakePromptStore serves prompts from a map.
type fakePromptStore map[string]string

func (s fakePromptStore) Load(name string) (string, error) {
	if p, ok := s[name]; ok {
		return p, nil
	}
	return "", domain.ErrNotFound
}

func (s fakePromptStore) Reload() {}
