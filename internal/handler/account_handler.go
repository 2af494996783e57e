package handler

import (
	"custody-core/internal/handler/request"
	"custody-core/internal/handler/response"
	"custody-core/internal/model"
	"custody-core/internal/service"
	"custody-core/pkg/errno"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type AccountHandler struct {
	accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// accountView 对外暴露的账户视图, 不泄露内部主键
type accountView struct {
	Username         string          `json:"username"`
	ConfirmedBalance decimal.Decimal `json:"confirmed_balance"`
	PendingBalance   decimal.Decimal `json:"pending_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	DepositAddress   string          `json:"deposit_address,omitempty"`
}

func mapAccount(acc *model.Account) accountView {
	return accountView{
		Username:         acc.Username,
		ConfirmedBalance: acc.ConfirmedBalance,
		PendingBalance:   acc.PendingBalance,
		AvailableBalance: acc.AvailableBalance(),
		DepositAddress:   acc.DepositAddress,
	}
}

// CreateAccount 开户
// @Summary Create a custody account
// @Tags account
// @Accept json
// @Produce json
// @Param request body request.CreateAccountRequest true "Account Request"
// @Success 200 {object} response.Response
// @Router /api/v1/users [post]
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req request.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrUsernameRequired)
		return
	}

	acc, err := h.accounts.CreateAccount(c.Request.Context(), req.Username)
	if err != nil {
		response.Error(c, asErrno(err, errno.ErrDatabase))
		return
	}

	response.Success(c, mapAccount(acc))
}

// GetAccount 查询当前账户的余额状态
// @Summary Get the authenticated account
// @Tags account
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/users [get]
func (h *AccountHandler) GetAccount(c *gin.Context) {
	username := c.GetString(ContextUsername)

	acc, err := h.accounts.GetAccount(c.Request.Context(), username)
	if err != nil {
		response.Error(c, asErrno(err, errno.ErrDatabase))
		return
	}

	response.Success(c, mapAccount(acc))
}

// GetDepositAddress 获取 (必要时生成) 充值地址
// @Summary Get or provision the deposit address
// @Tags wallet
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/wallet/address [get]
func (h *AccountHandler) GetDepositAddress(c *gin.Context) {
	username := c.GetString(ContextUsername)

	address, err := h.accounts.GetDepositAddress(c.Request.Context(), username)
	if err != nil {
		response.Error(c, asErrno(err, errno.ErrDatabase))
		return
	}

	response.Success(c, gin.H{"address": address})
}
