package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// MailboxConfig 定义邮箱服务的核心业务配置
type MailboxConfig struct {
	AllowedDomains []string      // 允许接收邮件的域名列表
	TTL            time.Duration // 邮箱生存时间，默认 24h，过期后被清理任务级联删除
}

// SMTPConfig 定义 SMTP 邮件接收服务器的配置
type SMTPConfig struct {
	BindAddr         string        // SMTP 服务监听地址，格式 "host:port"，默认 ":25"
	Domain           string        // SMTP 服务器域名，用于 HELO/EHLO 响应
	MaxMessageBytes  int64         // 单封邮件大小上限，默认 10MB
	SenderRateLimit  int64         // 窗口内单个发件来源最大投递数，0 表示不限
	SenderRateWindow time.Duration // 限流窗口长度
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到 stdout
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type string // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN  string // 数据库连接字符串
}

// BlobConfig 定义 Blob 对象存储配置
type BlobConfig struct {
	Path string // 文件系统存储根目录，留空使用内存存储（开发环境）
}

// RedisConfig 定义 Redis 限流服务配置
type RedisConfig struct {
	Address  string // Redis 服务地址，留空禁用 Redis 限流
	Password string // Redis 认证密码
	DB       int    // Redis 数据库编号
}

// RetentionConfig 定义过期清理任务配置
type RetentionConfig struct {
	SweepInterval time.Duration // 清理任务执行间隔，默认 1h
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server    ServerConfig
	Mailbox   MailboxConfig
	SMTP      SMTPConfig
	CORS      CORSConfig
	Log       LogConfig
	Database  DatabaseConfig
	Blob      BlobConfig
	Redis     RedisConfig
	Retention RetentionConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: DRIFTMAIL_
// 例如: DRIFTMAIL_SERVER_HOST, DRIFTMAIL_MAILBOX_TTL
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetEnvPrefix("driftmail")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("mailbox.allowed_domains", "drift.mail")
	viper.SetDefault("mailbox.ttl", "24h")
	viper.SetDefault("smtp.bind_addr", ":25")
	viper.SetDefault("smtp.domain", "drift.mail")
	viper.SetDefault("smtp.max_message_bytes", 10*1024*1024)
	viper.SetDefault("smtp.sender_rate_limit", 0)
	viper.SetDefault("smtp.sender_rate_window", "1m")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("blob.path", "./data/blob-storage")
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("retention.sweep_interval", "1h")

	ttl, err := time.ParseDuration(viper.GetString("mailbox.ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid mailbox.ttl: %w", err)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("mailbox.ttl must be positive")
	}

	domainList := parseDomains(viper.GetString("mailbox.allowed_domains"))
	if len(domainList) == 0 {
		return nil, fmt.Errorf("mailbox.allowed_domains must not be empty")
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	sweepInterval, err := time.ParseDuration(viper.GetString("retention.sweep_interval"))
	if err != nil || sweepInterval <= 0 {
		sweepInterval = time.Hour
	}

	senderRateWindow, err := time.ParseDuration(viper.GetString("smtp.sender_rate_window"))
	if err != nil || senderRateWindow <= 0 {
		senderRateWindow = time.Minute
	}

	dbType := viper.GetString("database.type")
	if dbType != "" && dbType != "postgres" && dbType != "mysql" {
		return nil, fmt.Errorf("unsupported database.type: %s", dbType)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Mailbox: MailboxConfig{
			AllowedDomains: domainList,
			TTL:            ttl,
		},
		SMTP: SMTPConfig{
			BindAddr:         viper.GetString("smtp.bind_addr"),
			Domain:           viper.GetString("smtp.domain"),
			MaxMessageBytes:  viper.GetInt64("smtp.max_message_bytes"),
			SenderRateLimit:  viper.GetInt64("smtp.sender_rate_limit"),
			SenderRateWindow: senderRateWindow,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
		Database: DatabaseConfig{
			Type: dbType,
			DSN:  viper.GetString("database.dsn"),
		},
		Blob: BlobConfig{
			Path: viper.GetString("blob.path"),
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Retention: RetentionConfig{
			SweepInterval: sweepInterval,
		},
	}

	return cfg, nil
}

// parseDomains 将逗号分隔的域名字符串解析为小写域名数组
func parseDomains(value string) []string {
	out := parseList(value)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 如果文件不存在，静默失败（.env 是可选的）；
// 已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
