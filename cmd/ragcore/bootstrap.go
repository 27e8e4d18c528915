package main

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/ragcore/internal/adapters/driven/ai"
	"github.com/custodia-labs/ragcore/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragcore/internal/adapters/driven/metrics"
	"github.com/custodia-labs/ragcore/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragcore/internal/adapters/driven/storage/redis"
	"github.com/custodia-labs/ragcore/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragcore/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/ragcore/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragcore/internal/config"
	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/core/services"
	"github.com/custodia-labs/ragcore/internal/logger"
	"github.com/custodia-labs/ragcore/internal/normalisers"
	"github.com/custodia-labs/ragcore/internal/postprocessors"
)

// closers releases resources in reverse order of acquisition.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// bootstrap builds every service from the config file. Errors leave nothing open.
func bootstrap(configFile string) (svcs *cli.Services, cleanup func(), err error) {
	var release closers
	defer func() {
		if err != nil {
			release.run()
		}
	}()

	cfg, err := config.Load(config.Options{ConfigFile: configFile})
	if err != nil {
		return nil, nil, err
	}
	settings := &cfg.Settings
	logger.SetFormat(settings.Logging.Format)
	logger.Debug("Config file %s, data directory %s", cfg.File, settings.DataDir)

	if err := os.MkdirAll(settings.DataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}

	configStore, err := file.NewConfigStore(cfg.File)
	if err != nil {
		return nil, nil, err
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	aiServices, err := ai.Init(settings)
	if err != nil {
		// Settings commands must still work so the provider can be fixed.
		logger.Warn("%v; see \"ragcore settings embedding --help\"", err)
		return &cli.Services{Settings: settingsService}, release.run, nil
	}
	release.add(aiServices.Close)
	for _, w := range aiServices.Warnings {
		logger.Warn("%s", w)
	}

	prom := metrics.New(true)

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return nil, nil, err
	}
	release.add(func() {
		if err := store.Close(); err != nil {
			logger.Warn("Closing sqlite store: %v", err)
		}
	})

	embeddingCache, responseCache, err := openCaches(settings, store, &release)
	if err != nil {
		return nil, nil, err
	}

	embedder := services.NewEmbeddingGenerator(aiServices.EmbeddingService, embeddingCache,
		services.WithEmbeddingMetrics(prom),
		services.WithEmbeddingBatchSize(settings.Embedding.BatchSize),
		services.WithEmbeddingTimeout(settings.Embedding.Timeout),
	)

	index, err := vectorindex.New(vectorindex.Config{
		Dimension:      embedder.Dimensions(),
		Type:           settings.Index.Type,
		Metric:         settings.Index.Metric,
		NList:          settings.Index.NList,
		NProbe:         settings.Index.NProbe,
		TrainThreshold: settings.Index.TrainThreshold,
		AutoTrain:      settings.Index.Type == domain.IndexTypeIVF,
	})
	if err != nil {
		return nil, nil, err
	}
	found, err := index.Load(settings.DataDir)
	if err != nil {
		return nil, nil, err
	}
	if found {
		logger.Debug("Loaded index with %d vectors", index.Stats().LiveVectors)
	}

	chunker, err := postprocessors.NewDefaultRegistry().Build(string(settings.Chunking.Splitter), map[string]any{
		"chunk_size":    settings.Chunking.ChunkSize,
		"chunk_overlap": settings.Chunking.ChunkOverlap,
	})
	if err != nil {
		return nil, nil, err
	}
	chunks := services.NewChunkService(normalisers.NewDefaultRegistry(nil), chunker)

	docs := store.DocumentStore()
	ingest := services.NewIngestService(chunks, embedder, index, docs, services.IngestConfig{
		DataDir:   settings.DataDir,
		Chunking:  settings.Chunking.ChunkingConfig,
		BatchSize: settings.Embedding.BatchSize,
		Metrics:   prom,
	})

	rag := services.NewRAGService(embedder, index, responseCache,
		aiServices.LocalLLM, aiServices.RemoteLLM, services.RAGConfigFromSettings(settings))
	rag.SetMetrics(prom)
	rag.SetStateObserver(func(state domain.QueryState) {
		logger.Debug("Query state: %s", state)
	})
	if prompts, err := file.NewPromptStore(cfg.PromptDir()); err != nil {
		logger.Warn("Using built-in prompts: %v", err)
	} else {
		rag.SetPromptStore(prompts)
	}

	maintenance := services.NewMaintenanceService(index, docs, embedder, responseCache, settings.DataDir)
	maintenance.SetMetrics(prom)
	prom.SetIndexSize(index.Stats().LiveVectors)

	return &cli.Services{
		Ingest:      ingest,
		Chunk:       chunks,
		RAG:         rag,
		Maintenance: maintenance,
		Document:    services.NewDocumentService(docs, ingest),
		Settings:    settingsService,
		Metrics:     prom,
	}, release.run, nil
}

// openCaches returns the embedding and response caches for the configured
// backends. Redis is connected once and shared when both caches use it.
func openCaches(
	settings *domain.AppSettings, store *sqlite.Store, release *closers,
) (driven.EmbeddingCache, driven.ResponseCache, error) {
	var rdb *redis.Store
	connect := func() (*redis.Store, error) {
		if rdb != nil {
			return rdb, nil
		}
		s, err := redis.NewStore(context.Background(), redis.Options{
			Addr:     settings.Cache.RedisAddr,
			Password: settings.Cache.RedisPassword,
			DB:       settings.Cache.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		release.add(func() {
			if err := s.Close(); err != nil {
				logger.Warn("Closing redis: %v", err)
			}
		})
		rdb = s
		return s, nil
	}

	var embeddings driven.EmbeddingCache
	switch settings.Cache.Embedding {
	case domain.CacheBackendMemory:
		embeddings = memory.NewEmbeddingCache()
	case domain.CacheBackendRedis:
		s, err := connect()
		if err != nil {
			return nil, nil, err
		}
		embeddings = s.EmbeddingCache()
	default:
		embeddings = store.EmbeddingCache()
	}

	var responses driven.ResponseCache
	switch settings.Cache.Response {
	case domain.CacheBackendMemory:
		responses = memory.NewResponseCache()
	case domain.CacheBackendRedis:
		s, err := connect()
		if err != nil {
			return nil, nil, err
		}
		responses = s.ResponseCache()
	default:
		responses = store.ResponseCache()
	}

	return embeddings, responses, nil
}
