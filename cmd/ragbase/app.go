package main

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragbase/internal/ai"
	"github.com/xxxsen/ragbase/internal/config"
	"github.com/xxxsen/ragbase/internal/embedcache"
	"github.com/xxxsen/ragbase/internal/filestore"
	"github.com/xxxsen/ragbase/internal/service"
	"github.com/xxxsen/ragbase/internal/vectorstore"
)

type app struct {
	cfg       *config.Config
	store     *vectorstore.Manager
	retrieval *service.RetrievalService
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func newApp(cfg *config.Config) (*app, error) {
	provider, err := ai.NewProvider(cfg.Embedding.Provider, cfg.EmbeddingArgs())
	if err != nil {
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}
	embedder := ai.NewEmbedder(provider, cfg.Embedding.Model,
		ai.WithDimension(cfg.Embedding.Dimension),
		ai.WithTimeout(cfg.EmbeddingTimeout()),
	)
	embedder = ai.WithRateLimit(embedder, cfg.Embedding.RateLimit, cfg.Embedding.RateBurst)
	embedder = embedcache.WrapLRU(embedder, cfg.Embedding.CacheSize, cfg.CacheTTL())

	chunker, err := ai.NewChunker(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return nil, fmt.Errorf("init chunker: %w", err)
	}

	store, err := vectorstore.NewManager(cfg.VectorStore.Provider, cfg.VectorStoreParams(), vectorstore.Options{
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.VectorTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}

	opts := []service.Option{
		service.WithPolicy(cfg.Ingest.Policy),
		service.WithEmbedConcurrency(cfg.Ingest.EmbedConcurrency),
	}
	if args := cfg.FileStoreArgs(); args != nil {
		files, err := filestore.New(cfg.FileStore.Type, args)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init file store: %w", err)
		}
		opts = append(opts, service.WithFileStore(files))
	}
	retrieval, err := service.NewRetrievalService(chunker, embedder, store, opts...)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init retrieval service: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("retrieval pipeline ready",
		zap.String("vector_provider", store.ActiveProvider()),
		zap.String("embed_provider", provider.Name()),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimension", cfg.Embedding.Dimension),
	)
	return &app{cfg: cfg, store: store, retrieval: retrieval}, nil
}

func (a *app) Close() {
	a.retrieval.Close()
	if err := a.store.Close(); err != nil {
		logutil.GetLogger(context.Background()).Warn("close vector store failed", zap.Error(err))
	}
}
