package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"driftmail/backend/internal/blob"
	blobfs "driftmail/backend/internal/blob/filesystem"
	blobmem "driftmail/backend/internal/blob/memory"
	"driftmail/backend/internal/config"
	"driftmail/backend/internal/logger"
	"driftmail/backend/internal/monitoring"
	"driftmail/backend/internal/service"
	"driftmail/backend/internal/storage"
	storagemem "driftmail/backend/internal/storage/memory"
	"driftmail/backend/internal/storage/sqldb"
)

// main 执行一次过期邮箱清理后退出，适合 cron 或容器任务调度。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	var store storage.Store
	switch cfg.Database.Type {
	case "postgres":
		store, err = sqldb.NewStore(cfg.Database.DSN)
	case "mysql":
		store, err = sqldb.NewMySQLStore(cfg.Database.DSN)
	case "":
		// 内存存储对一次性任务没有意义，仅用于本地演练
		store = storagemem.NewStore()
	default:
		panic(fmt.Sprintf("unsupported database type: %s", cfg.Database.Type))
	}
	if err != nil {
		panic(fmt.Sprintf("failed to initialize storage: %v", err))
	}

	var blobs blob.Store
	if cfg.Blob.Path != "" {
		blobs, err = blobfs.NewStore(cfg.Blob.Path)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize blob storage: %v", err))
		}
	} else {
		blobs = blobmem.NewStore()
	}

	metrics := monitoring.NewMetrics()
	retention := service.NewRetentionService(store, blobs, log, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	start := time.Now()
	if err := retention.Sweep(ctx); err != nil {
		log.Fatal("retention sweep failed", zap.Error(err))
	}

	log.Info("retention sweep completed", zap.Duration("elapsed", time.Since(start)))
}
