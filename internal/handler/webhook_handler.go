package handler

import (
	"custody-core/internal/handler/response"
	"custody-core/internal/service"
	"custody-core/pkg/errno"

	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	reconcile *service.ReconcileService
}

func NewWebhookHandler(reconcile *service.ReconcileService) *WebhookHandler {
	return &WebhookHandler{reconcile: reconcile}
}

// HandleNotification 服务商交易通知入口
// 无效/不相关的事件直接以 not-modified 应答, 不给不可信来源返回错误细节;
// 存储错误返回 5xx, 服务商会按 at-least-once 重投
// @Summary Wallet provider transaction notification
// @Tags webhook
// @Accept json
// @Produce json
// @Success 200 {object} response.Response
// @Router /block/webhook [post]
func (h *WebhookHandler) HandleNotification(c *gin.Context) {
	var raw service.RawNotification
	if err := c.ShouldBindJSON(&raw); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	event, ok := service.ClassifyNotification(&raw)
	if !ok {
		response.Success(c, service.ReconcileResult{
			TxID:      raw.Data.TxID,
			Operation: service.OpNotModified,
		})
		return
	}

	result, err := h.reconcile.ProcessNotification(c.Request.Context(), event)
	if err != nil {
		response.Error(c, asErrno(err, errno.ErrDatabase))
		return
	}

	response.Success(c, result)
}

// asErrno 保留业务错误码, 其余错误归入 fallback
func asErrno(err error, fallback errno.Errno) error {
	switch err.(type) {
	case errno.Errno, *errno.Errno:
		return err
	default:
		return fallback
	}
}
