package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tanyalayanan/ragcore/cache"
	"github.com/tanyalayanan/ragcore/common/httpx"
	"github.com/tanyalayanan/ragcore/common/logging"
	"github.com/tanyalayanan/ragcore/config"
	"github.com/tanyalayanan/ragcore/corpus"
	"github.com/tanyalayanan/ragcore/embedding"
	"github.com/tanyalayanan/ragcore/generation"
	"github.com/tanyalayanan/ragcore/guardrail"
	"github.com/tanyalayanan/ragcore/pipeline"
	"github.com/tanyalayanan/ragcore/prompt"
	"github.com/tanyalayanan/ragcore/quota"
	"github.com/tanyalayanan/ragcore/retriever"
	"github.com/tanyalayanan/ragcore/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the yaml config file")
	logLevel := flag.String("log-level", "info", "zap log level")
	dev := flag.Bool("dev", false, "development logging")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, err := logging.New(*logLevel, *dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(*configPath, logger); err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
}

func run(configPath string, logger *zap.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	snap, err := corpus.LoadFile(cfg.Corpus.Path)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	store := corpus.NewStore(snap)
	logger.Info("corpus loaded",
		zap.String("path", cfg.Corpus.Path),
		zap.Int("chunks", snap.Len()),
		zap.Int("dims", snap.Dims()))

	embedder, err := embedding.NewFromConfig(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}

	sparse := retriever.NewSparse(cfg.Retrieval.BM25K1, cfg.Retrieval.BM25B)
	var dense retriever.Ranker
	if cfg.VectorDB.Provider == "milvus" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		mv, err := retriever.NewMilvus(ctx, cfg.VectorDB, embedder)
		if err != nil {
			return fmt.Errorf("milvus: %w", err)
		}
		defer func() { _ = mv.Close() }()
		dense = mv
	} else {
		dense = retriever.NewDense(embedder)
	}
	hybrid := retriever.NewHybrid(store, dense, sparse, cfg.Retrieval, logger)

	var semCache *cache.Semantic
	if cfg.Cache.Enabled {
		semCache = cache.NewSemantic(embedder, cfg.Cache.Capacity, cfg.Cache.TTL(), cfg.Cache.Threshold)
	}

	guard, err := guardrail.New(cfg.Guardrail, logger)
	if err != nil {
		return err
	}

	var quotaStore quota.Store
	if cfg.Quota.Store == "memory" {
		quotaStore = quota.NewMemoryStore()
	} else {
		quotaStore, err = quota.OpenSQLite(cfg.Quota.Path)
		if err != nil {
			return fmt.Errorf("quota store: %w", err)
		}
	}
	defer func() { _ = quotaStore.Close() }()

	httpClient := httpx.NewFromConfig(cfg.HTTP, logger)
	tiers := make([]generation.Tier, 0, len(cfg.Tiers))
	for _, tc := range cfg.Tiers {
		var backend generation.Backend
		switch tc.Provider {
		case "http":
			backend = generation.NewHTTPBackend(tc, httpClient)
		default:
			backend = generation.NewOpenAIBackend(tc)
		}
		tiers = append(tiers, generation.Tier{
			ID:      tc.ID,
			Backend: backend,
			Counter: quota.NewCounter(tc.ID, quota.Limits{
				RequestsPerMinute: tc.RequestsPerMinute,
				RequestsPerDay:    tc.RequestsPerDay,
				TokensPerDay:      tc.TokensPerDay,
			}, quotaStore),
			Timeout:   tc.Timeout(),
			MaxTokens: tc.MaxTokens,
		})
	}

	builder := prompt.NewBuilder(0)
	orch := generation.NewOrchestrator(tiers, logger)
	orch.EstimateUsage = builder.EstimateUsage

	pipe := &pipeline.Pipeline{
		Guard:    guard,
		Cache:    semCache,
		Hybrid:   hybrid,
		Builder:  builder,
		Orch:     orch,
		Guardcfg: cfg.Guardrail,
		Retcfg:   cfg.Retrieval,
		Logger:   logger,
	}

	srv := server.New(pipe, store, orch, cfg.Server, cfg.Corpus.Path, logger)
	return srv.ListenAndServe()
}
