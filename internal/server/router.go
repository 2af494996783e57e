package server

import (
	"custody-core/internal/handler"
	"custody-core/internal/handler/response"
	"custody-core/pkg/monitor"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 路由需要的全部 handler
type Handlers struct {
	Account     *handler.AccountHandler
	Transaction *handler.TransactionHandler
	Withdraw    *handler.WithdrawHandler
	Webhook     *handler.WebhookHandler
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
// webhookAllowlist 为通知入口的来源 IP 白名单
func NewHTTPRouter(h Handlers, webhookAllowlist []string) *gin.Engine {
	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 4. 通知入口: 不走身份中间件, 用 IP 白名单把关
	r.POST("/block/webhook", handler.WebhookIPAllowlist(webhookAllowlist), h.Webhook.HandleNotification)

	// 5. API 路由组
	api := r.Group("/api/v1")
	{
		api.GET("/ping", func(c *gin.Context) {
			response.Success(c, gin.H{"pong": true})
		})

		// 开户在身份建立之前发生, 不要求可信头
		api.POST("/users", h.Account.CreateAccount)

		authed := api.Group("", handler.TrustedIdentity())
		{
			authed.GET("/users", h.Account.GetAccount)
			authed.GET("/transactions", h.Transaction.ListTransactions)
			authed.GET("/wallet/address", h.Account.GetDepositAddress)
			authed.POST("/wallet/confirm", h.Transaction.ConfirmPending)
			authed.POST("/withdraw", h.Withdraw.CreateWithdrawal)
		}
	}

	return r
}
