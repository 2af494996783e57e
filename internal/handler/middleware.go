package handler

import (
	"net/http"

	"go.uber.org/zap"

	"custody-core/internal/handler/response"
	"custody-core/pkg/errno"
	"custody-core/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ContextUsername 身份中间件写入 gin context 的账户名键
const ContextUsername = "username"

// HeaderUsername 上游认证网关注入的可信账户头
// 身份校验本身在网关完成, 这里只消费结果
const HeaderUsername = "X-Auth-Username"

// TrustedIdentity 从可信头提取账户身份, 缺失即拒绝
func TrustedIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetHeader(HeaderUsername)
		if username == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Response{
				Code:    errno.ErrTokenInvalid.Code,
				Message: "Access Denied",
				Data:    gin.H{},
			})
			return
		}
		c.Set(ContextUsername, username)
		c.Next()
	}
}

// WebhookIPAllowlist 限制通知入口的来源 IP
// 服务商公布固定的回调出口 IP; 空列表表示不限制 (开发环境)
func WebhookIPAllowlist(allowlist []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowlist))
	for _, ip := range allowlist {
		allowed[ip] = true
	}

	return func(c *gin.Context) {
		if len(allowed) == 0 {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if !allowed[ip] {
			logger.Warn("webhook request from unlisted IP", zap.String("ip", ip))
			c.AbortWithStatusJSON(http.StatusForbidden, response.Response{
				Code:    errno.ErrTokenInvalid.Code,
				Message: "Access Denied",
				Data:    gin.H{},
			})
			return
		}
		c.Next()
	}
}
