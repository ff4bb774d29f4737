// Package health 基于 heptiolabs/healthcheck 提供存活与就绪探针。
package health

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"driftmail/backend/internal/storage"
	redisstore "driftmail/backend/internal/storage/redis"
)

// Checker 健康检查器
type Checker struct {
	handler healthcheck.Handler
	logger  *zap.Logger
}

// NewChecker 创建健康检查器。
//
// 存活检查只看进程自身（协程数），就绪检查覆盖外部依赖：
// 元数据存储、Blob 目录可写、可选的 Redis。
func NewChecker(store storage.Store, blobPath string, rateLimiter *redisstore.RateLimiter, logger *zap.Logger) *Checker {
	c := &Checker{
		handler: healthcheck.NewHandler(),
		logger:  logger,
	}

	c.handler.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(2000))

	c.handler.AddReadinessCheck("metadata-store", c.logged("metadata-store", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return store.Ping(ctx)
	}))

	if blobPath != "" {
		c.handler.AddReadinessCheck("blob-dir", c.logged("blob-dir", blobDirWritable(blobPath)))
	}

	if rateLimiter != nil {
		c.handler.AddReadinessCheck("redis", c.logged("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return rateLimiter.Ping(ctx)
		}))
	}

	return c
}

// logged 包装就绪检查，失败时记录日志。
func (c *Checker) logged(name string, check healthcheck.Check) healthcheck.Check {
	return func() error {
		err := check()
		if err != nil {
			c.logger.Warn("readiness check failed",
				zap.String("check", name),
				zap.Error(err))
		}
		return err
	}
}

// Handler 返回探针处理器
func (c *Checker) Handler() healthcheck.Handler {
	return c.handler
}

// blobDirWritable 探测 Blob 目录可写。
func blobDirWritable(base string) healthcheck.Check {
	return func() error {
		probe := filepath.Join(base, ".health-probe")
		if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
			return err
		}
		return os.Remove(probe)
	}
}
