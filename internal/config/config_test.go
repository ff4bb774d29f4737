package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// 保存原始环境变量
	originalEnvs := make(map[string]string)
	envKeys := []string{
		"DRIFTMAIL_SERVER_HOST",
		"DRIFTMAIL_SERVER_PORT",
		"DRIFTMAIL_MAILBOX_ALLOWED_DOMAINS",
		"DRIFTMAIL_MAILBOX_TTL",
		"DRIFTMAIL_SMTP_BIND_ADDR",
		"DRIFTMAIL_SMTP_DOMAIN",
		"DRIFTMAIL_DATABASE_TYPE",
		"DRIFTMAIL_BLOB_PATH",
		"DRIFTMAIL_LOG_LEVEL",
		"DRIFTMAIL_RETENTION_SWEEP_INTERVAL",
	}

	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
	}

	// 测试后恢复环境变量
	defer func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	clearEnv := func() {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
	}

	t.Run("加载默认配置成功", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		// 验证默认值
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, []string{"drift.mail"}, cfg.Mailbox.AllowedDomains)
		assert.Equal(t, 24*time.Hour, cfg.Mailbox.TTL)
		assert.Equal(t, ":25", cfg.SMTP.BindAddr)
		assert.Equal(t, "drift.mail", cfg.SMTP.Domain)
		assert.Equal(t, int64(10*1024*1024), cfg.SMTP.MaxMessageBytes)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
		assert.Equal(t, "", cfg.Database.Type)
		assert.Equal(t, "./data/blob-storage", cfg.Blob.Path)
		assert.Equal(t, time.Hour, cfg.Retention.SweepInterval)
	})

	t.Run("环境变量覆盖默认值", func(t *testing.T) {
		clearEnv()
		os.Setenv("DRIFTMAIL_MAILBOX_ALLOWED_DOMAINS", "Foo.Mail, bar.mail")
		os.Setenv("DRIFTMAIL_MAILBOX_TTL", "2h")
		os.Setenv("DRIFTMAIL_RETENTION_SWEEP_INTERVAL", "10m")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.Equal(t, []string{"foo.mail", "bar.mail"}, cfg.Mailbox.AllowedDomains)
		assert.Equal(t, 2*time.Hour, cfg.Mailbox.TTL)
		assert.Equal(t, 10*time.Minute, cfg.Retention.SweepInterval)
	})

	t.Run("非法TTL报错", func(t *testing.T) {
		clearEnv()
		os.Setenv("DRIFTMAIL_MAILBOX_TTL", "not-a-duration")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("不支持的数据库类型报错", func(t *testing.T) {
		clearEnv()
		os.Setenv("DRIFTMAIL_DATABASE_TYPE", "oracle")

		_, err := Load()
		assert.Error(t, err)
	})
}
