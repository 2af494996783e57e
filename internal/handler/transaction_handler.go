package handler

import (
	"custody-core/internal/handler/response"
	"custody-core/internal/service"
	"custody-core/pkg/errno"

	"github.com/gin-gonic/gin"
)

type TransactionHandler struct {
	accounts *service.AccountService
	sweeper  *service.SweeperService
}

func NewTransactionHandler(accounts *service.AccountService, sweeper *service.SweeperService) *TransactionHandler {
	return &TransactionHandler{
		accounts: accounts,
		sweeper:  sweeper,
	}
}

// ListTransactions 当前账户的账本流水
// @Summary List ledger transactions for the authenticated account
// @Tags transaction
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/transactions [get]
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	username := c.GetString(ContextUsername)

	txs, err := h.accounts.History(c.Request.Context(), username)
	if err != nil {
		response.Error(c, asErrno(err, errno.ErrDatabase))
		return
	}

	response.Success(c, txs)
}

// ConfirmPending 手动触发一轮确认清扫
// 清扫幂等, 客户端可以任意频率调用
// @Summary Trigger a confirmation sweep for the authenticated account
// @Tags wallet
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/wallet/confirm [post]
func (h *TransactionHandler) ConfirmPending(c *gin.Context) {
	username := c.GetString(ContextUsername)

	summary, err := h.sweeper.ConfirmPending(c.Request.Context(), username)
	if err != nil {
		response.Error(c, asErrno(err, errno.ErrDatabase))
		return
	}

	response.Success(c, summary)
}
