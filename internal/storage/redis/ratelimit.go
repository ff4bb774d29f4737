// Package redis 提供基于 Redis 的投递限流计数。
//
// SMTP 接收路径用它限制单个发件来源在窗口内的投递次数；
// Redis 不可用时上层按放行处理，限流只是保护性功能。
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimiter 基于 Redis INCR + EXPIRE 的固定窗口限流器。
type RateLimiter struct {
	client *goredis.Client
}

// NewRateLimiter 创建 Redis 限流器并验证连接。
func NewRateLimiter(addr, password string, db int) (*RateLimiter, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RateLimiter{client: client}, nil
}

// Increment 自增窗口计数并返回当前值。
func (r *RateLimiter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.client.Pipeline()

	incr := pipe.Incr(ctx, fmt.Sprintf("ratelimit:%s", key))
	pipe.Expire(ctx, fmt.Sprintf("ratelimit:%s", key), window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	return incr.Val(), nil
}

// Ping 测试 Redis 连接。
func (r *RateLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close 关闭 Redis 连接。
func (r *RateLimiter) Close() error {
	return r.client.Close()
}
