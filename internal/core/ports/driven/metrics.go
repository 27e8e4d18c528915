package driven

import "time"

// Metrics records pipeline counters and timings.
type Metrics interface {
	// CacheHit counts a hit on the named cache ("embedding" or "response").
	CacheHit(cache string)

	// CacheMiss counts a miss on the named cache.
	CacheMiss(cache string)

	// ObserveQuery records a RAG query duration and whether it was served from cache.
	ObserveQuery(d time.Duration, cached bool)

	// ObserveIngest records an ingestion duration and the number of chunks produced.
	ObserveIngest(d time.Duration, chunkType string, chunks int)

	// ObserveBackendCall records a backend call by kind ("embedding" or "generation").
	ObserveBackendCall(kind, model string, d time.Duration, err error)

	// SetIndexSize reports the number of live vectors.
	SetIndexSize(n int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) CacheHit(string) {}
func (NopMetrics) CacheMiss(string) {}
func (NopMetrics) ObserveQuery(time.Duration, bool) {}
func (NopMetrics) ObserveIngest(time.Duration, string, int) {}
func (NopMetrics) ObserveBackendCall(string, string, time.Duration, error) {}
func (NopMetrics) SetIndexSize(int) {}
