package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/ragbase/internal/handler"
	"github.com/xxxsen/ragbase/internal/job"
	"github.com/xxxsen/ragbase/internal/metrics"
	"github.com/xxxsen/ragbase/internal/middleware"
	"github.com/xxxsen/ragbase/internal/schedule"
)

func runServer(a *app) error {
	cfg := a.cfg
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_provider", cfg.VectorStore.Provider),
		zap.String("embed_provider", cfg.Embedding.Provider),
		zap.String("file_store", cfg.FileStore.Type),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if cfg.Jobs.IndexMaintenance != "" {
		if err := scheduler.AddJob(job.NewIndexMaintenanceJob(a.store), cfg.Jobs.IndexMaintenance); err != nil {
			return fmt.Errorf("schedule index maintenance: %w", err)
		}
	}
	if cfg.Jobs.StoreStats != "" {
		if err := scheduler.AddJob(job.NewStoreStatsJob(a.store, metrics.Get().StoredChunks), cfg.Jobs.StoreStats); err != nil {
			return fmt.Errorf("schedule store stats: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Documents: handler.NewDocumentHandler(a.retrieval, cfg.HTTP.MaxUploadSize),
		Search:    handler.NewSearchHandler(a.retrieval),
		System:    handler.NewSystemHandler(a.retrieval),
	}
	engine, err := webapi.NewEngine(
		"/",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.AccessLog(metrics.Get()),
			middleware.CORS(cfg.HTTP.CORSOrigins),
			middleware.RateLimit(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
