package handler

import (
	"custody-core/internal/handler/request"
	"custody-core/internal/handler/response"
	"custody-core/internal/service"
	"custody-core/pkg/errno"
	"custody-core/pkg/validator"

	"github.com/gin-gonic/gin"
)

type WithdrawHandler struct {
	withdraw *service.WithdrawService
}

func NewWithdrawHandler(withdraw *service.WithdrawService) *WithdrawHandler {
	return &WithdrawHandler{withdraw: withdraw}
}

// CreateWithdrawal 申请提现
// @Summary Request a withdrawal
// @Description Admission-checked withdrawal to an external address
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body request.CreateWithdrawalRequest true "Withdraw Request"
// @Success 200 {object} response.Response
// @Router /api/v1/withdraw [post]
func (h *WithdrawHandler) CreateWithdrawal(c *gin.Context) {
	var req request.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage("%s", validator.GetErrorMsg(err)))
		return
	}

	username := c.GetString(ContextUsername)

	receipt, err := h.withdraw.Withdraw(c.Request.Context(), username, req.Amount, req.ToAddress)
	if err != nil {
		response.Error(c, asErrno(err, errno.ErrDatabase))
		return
	}

	response.Success(c, receipt)
}
