// Package metrics records pipeline counters and timings with Prometheus.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Ensure Prometheus implements the interface.
var _ driven.Metrics = (*Prometheus)(nil)

const namespace = "ragcore"

// Prometheus implements driven.Metrics on its own registry, so several
// instances (one per test) never collide.
type Prometheus struct {
	registry *prometheus.Registry

	queryDuration   *prometheus.HistogramVec
	queryTotal      *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	ingestDuration  *prometheus.HistogramVec
	chunksIngested  *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	backendErrors   *prometheus.CounterVec
	indexSize       prometheus.Gauge
}

// New creates the collectors and registers them with a fresh registry.
// withRuntime also registers the Go runtime and process collectors.
func New(withRuntime bool) *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "RAG query processing duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"cached"},
		),
		queryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_total",
				Help:      "Total number of RAG queries processed",
			},
			[]string{"cached"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total cache hits",
			},
			[]string{"cache"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total cache misses",
			},
			[]string{"cache"},
		),
		ingestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingest_duration_seconds",
				Help:      "File ingestion duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"chunk_type"},
		),
		chunksIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunks_ingested_total",
				Help:      "Total chunks added to the index",
			},
			[]string{"chunk_type"},
		),
		backendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_call_duration_seconds",
				Help:      "Embedding and generation backend call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind", "model"},
		),
		backendErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_call_errors_total",
				Help:      "Total failed backend calls",
			},
			[]string{"kind", "model"},
		),
		indexSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_live_vectors",
				Help:      "Number of live vectors in the index",
			},
		),
	}

	p.registry.MustRegister(
		p.queryDuration,
		p.queryTotal,
		p.cacheHits,
		p.cacheMisses,
		p.ingestDuration,
		p.chunksIngested,
		p.backendDuration,
		p.backendErrors,
		p.indexSize,
	)
	if withRuntime {
		p.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return p
}

// CacheHit counts a hit on the named cache.
func (p *Prometheus) CacheHit(cache string) {
	p.cacheHits.WithLabelValues(cache).Inc()
}

// CacheMiss counts a miss on the named cache.
func (p *Prometheus) CacheMiss(cache string) {
	p.cacheMisses.WithLabelValues(cache).Inc()
}

// ObserveQuery records a query duration.
func (p *Prometheus) ObserveQuery(d time.Duration, cached bool) {
	label := strconv.FormatBool(cached)
	p.queryDuration.WithLabelValues(label).Observe(d.Seconds())
	p.queryTotal.WithLabelValues(label).Inc()
}

// ObserveIngest records an ingestion duration and chunk count.
func (p *Prometheus) ObserveIngest(d time.Duration, chunkType string, chunks int) {
	p.ingestDuration.WithLabelValues(chunkType).Observe(d.Seconds())
	p.chunksIngested.WithLabelValues(chunkType).Add(float64(chunks))
}

// ObserveBackendCall records a backend call and counts it as an error when err is set.
func (p *Prometheus) ObserveBackendCall(kind, model string, d time.Duration, err error) {
	p.backendDuration.WithLabelValues(kind, model).Observe(d.Seconds())
	if err != nil {
		p.backendErrors.WithLabelValues(kind, model).Inc()
	}
}

// SetIndexSize reports the number of live vectors.
func (p *Prometheus) SetIndexSize(n int) {
	p.indexSize.Set(float64(n))
}

// Registry exposes the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// WriteText writes every metric family in the text exposition format.
func (p *Prometheus) WriteText(w io.Writer) error {
	families, err := p.registry.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
