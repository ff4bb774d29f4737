// Package httptransport 提供读取侧的 HTTP API。
package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"driftmail/backend/internal/config"
	"driftmail/backend/internal/middleware"
	"driftmail/backend/internal/monitoring"
	"driftmail/backend/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config    *config.Config
	Mailboxes *service.MailboxService
	Access    *service.AccessService
	Metrics   *monitoring.Metrics
	Health    healthcheck.Handler
	Logger    *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
	router.Use(monitor.PanicRecovery())
	router.Use(monitor.HTTPMetrics())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{
		mailboxes: deps.Mailboxes,
		access:    deps.Access,
		logger:    deps.Logger,
	}

	// 健康检查与指标
	router.GET("/healthz", gin.WrapF(deps.Health.LiveEndpoint))
	router.GET("/readyz", gin.WrapF(deps.Health.ReadyEndpoint))
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	api := router.Group("/api")
	{
		api.POST("/mailboxes", handler.resolveOrCreateMailbox)
		api.GET("/inbox", handler.listInbox)

		api.GET("/mailboxes/:id/stats", handler.getStats)
		api.GET("/mailboxes/:id/messages/:messageId", handler.getMessage)
		api.DELETE("/mailboxes/:id/messages/:messageId", handler.deleteMessage)
		api.GET("/mailboxes/:id/attachments/:attachmentId", handler.downloadAttachment)
	}

	return router
}
