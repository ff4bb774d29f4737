package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"driftmail/backend/internal/blob"
	blobfs "driftmail/backend/internal/blob/filesystem"
	blobmem "driftmail/backend/internal/blob/memory"
	"driftmail/backend/internal/config"
	"driftmail/backend/internal/health"
	"driftmail/backend/internal/logger"
	"driftmail/backend/internal/monitoring"
	"driftmail/backend/internal/service"
	"driftmail/backend/internal/smtp"
	"driftmail/backend/internal/storage"
	storagemem "driftmail/backend/internal/storage/memory"
	redisstore "driftmail/backend/internal/storage/redis"
	"driftmail/backend/internal/storage/sqldb"
	httptransport "driftmail/backend/internal/transport/http"
)

const (
	// SMTP 并发连接与新建连接速率上限
	smtpMaxConnections = 128
	smtpMaxConnRate    = 64
)

// main 启动同时包含 HTTP API 与 SMTP 接收的综合服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting driftmail server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.Strings("allowed_domains", cfg.Mailbox.AllowedDomains),
	)

	// 初始化元数据存储层
	var store storage.Store

	// 根据配置选择存储类型
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = initializeDatabaseStorage(cfg)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		// 内存存储（开发环境）
		store = storagemem.NewStore()
		log.Info("using memory storage (development mode)")
	}

	// 初始化 Blob 对象存储（原始邮件与附件内容）
	var blobs blob.Store
	if cfg.Blob.Path != "" {
		blobs, err = blobfs.NewStore(cfg.Blob.Path)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize blob storage: %v", err))
		}
		log.Info("using filesystem blob storage", zap.String("path", cfg.Blob.Path))
	} else {
		blobs = blobmem.NewStore()
		log.Info("using memory blob storage (development mode)")
	}

	// 初始化 Redis 发件限流器（可选）
	var rateLimiter *redisstore.RateLimiter
	if cfg.Redis.Address != "" {
		rateLimiter, err = redisstore.NewRateLimiter(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to redis: %v", err))
		}
		defer rateLimiter.Close()
		log.Info("redis sender rate limiting enabled", zap.String("address", cfg.Redis.Address))
	}

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 初始化健康检查
	healthChecker := health.NewChecker(store, cfg.Blob.Path, rateLimiter, log)

	// 初始化告警系统
	alertManager := monitoring.NewAlertManager(log)
	alertManager.AddReceiver(monitoring.NewLogAlertReceiver(log))
	alertManager.AddRule(monitoring.HighMemoryUsageRule(512.0))
	alertManager.AddRule(monitoring.GoroutineCountRule(2000))
	alertManager.AddRule(monitoring.StoreConnectionRule(store))

	// 初始化服务层
	mailboxService := service.NewMailboxService(store, cfg, metrics)
	ingestService := service.NewIngestService(mailboxService, store, blobs, log, metrics)
	accessService := service.NewAccessService(store, blobs, log, metrics)
	retentionService := service.NewRetentionService(store, blobs, log, metrics)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:    cfg,
		Mailboxes: mailboxService,
		Access:    accessService,
		Metrics:   metrics,
		Health:    healthChecker.Handler(),
		Logger:    log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 创建 SMTP 服务器
	var senderLimiter smtp.SenderLimiter
	if rateLimiter != nil {
		senderLimiter = rateLimiter
	}
	connLimiter := smtp.NewConnectionLimiter(smtpMaxConnections, smtpMaxConnRate)
	smtpBackend := smtp.NewBackend(mailboxService, ingestService, senderLimiter, connLimiter, cfg.SMTP, log, metrics)
	smtpServer := gosmtp.NewServer(smtpBackend)
	smtpServer.Addr = cfg.SMTP.BindAddr
	smtpServer.Domain = cfg.SMTP.Domain
	smtpServer.ReadTimeout = 10 * time.Second
	smtpServer.WriteTimeout = 10 * time.Second
	smtpServer.MaxMessageBytes = cfg.SMTP.MaxMessageBytes
	smtpServer.MaxRecipients = 50

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting SMTP server",
			zap.String("address", cfg.SMTP.BindAddr),
			zap.String("domain", cfg.SMTP.Domain),
		)
		if err := smtpServer.ListenAndServe(); err != nil {
			log.Error("SMTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理过期邮箱 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(cfg.Retention.SweepInterval)
		defer ticker.Stop()

		log.Info("starting retention sweep task", zap.Duration("interval", cfg.Retention.SweepInterval))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("retention sweep task stopped")
				return nil
			case <-ticker.C:
				if err := retentionService.Sweep(groupCtx); err != nil {
					log.Error("retention sweep failed", zap.Error(err))
				}
			}
		}
	})

	// 告警监控 goroutine
	group.Go(func() error {
		log.Info("starting alert monitoring")
		alertManager.StartMonitoring(groupCtx, time.Minute)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// 关闭 HTTP 服务器
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		// 关闭 SMTP 服务器
		if err := smtpServer.Close(); err != nil {
			log.Warn("SMTP server close warning", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeDatabaseStorage 根据配置初始化数据库存储。
func initializeDatabaseStorage(cfg *config.Config) (storage.Store, error) {
	switch cfg.Database.Type {
	case "postgres":
		return sqldb.NewStore(cfg.Database.DSN)
	case "mysql":
		return sqldb.NewMySQLStore(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}
}
