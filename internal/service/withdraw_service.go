package service

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"custody-core/internal/service/provider"
	"custody-core/internal/store"
	"custody-core/pkg/errno"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
)

// WithdrawService 提现准入
// 前置检查按固定顺序逐项失败返回; 通过后先广播再同步扣款,
// 扣款不等提现自身的 webhook (服务商可能复用地址, 且并发提现要看到最新余额)
type WithdrawService struct {
	accounts   store.AccountStore
	provider   provider.Client
	minAmount  decimal.Decimal // 最小可提现金额
	serviceFee decimal.Decimal // 服务商估算未报平台费时的默认平台费
	netParams  *chaincfg.Params
}

func NewWithdrawService(accounts store.AccountStore, client provider.Client, minAmount, serviceFee decimal.Decimal, netParams *chaincfg.Params) *WithdrawService {
	if netParams == nil {
		netParams = &chaincfg.TestNet3Params
	}
	return &WithdrawService{
		accounts:   accounts,
		provider:   client,
		minAmount:  minAmount,
		serviceFee: serviceFee,
		netParams:  netParams,
	}
}

// Withdraw 申请提现
// 检查顺序: 最小金额 -> 目标地址合法 -> 可用余额 > 金额 -> 费用估算 -> 总额不超可用余额
// 可用余额 = confirmed - pending: 未确认部分可能因为重组失效, 不允许再次花出
func (s *WithdrawService) Withdraw(ctx context.Context, username string, amount decimal.Decimal, destination string) (*provider.Receipt, error) {
	if amount.LessThanOrEqual(s.minAmount) {
		s.reject("amount_too_small")
		return nil, errno.ErrAmountTooSmall.WithMessage(
			"Withdrawal amount %s is below the minimum transferable unit %s", amount, s.minAmount)
	}

	if _, err := btcutil.DecodeAddress(destination, s.netParams); err != nil {
		s.reject("invalid_address")
		return nil, errno.ErrInvalidAddress
	}

	acc, err := s.accounts.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errno.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if acc.DepositAddress == "" {
		s.reject("no_source_address")
		return nil, errno.ErrAddressNotFound.WithMessage("Account %s has no bound deposit address", username)
	}

	available := acc.AvailableBalance()
	if available.LessThanOrEqual(amount) {
		s.reject("insufficient_available")
		return nil, errno.ErrInsufficientFunds.WithMessage(
			"Insufficient available balance: available %s, requested %s", available, amount)
	}

	// 估算失败 (例如可花余额不足以凑出输出) 统一按总余额不足返回, 不自动重试
	est, err := s.provider.EstimateFee(ctx, amount, destination)
	if err != nil {
		s.reject("fee_estimate_failed")
		logger.Warn("fee estimation failed",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil, errno.ErrInsufficientTotal
	}

	serviceFee := est.ServiceFee
	if serviceFee.IsZero() {
		serviceFee = s.serviceFee
	}
	total := amount.Add(est.NetworkFee).Add(serviceFee)
	if total.GreaterThan(available) {
		s.reject("insufficient_total")
		return nil, errno.ErrInsufficientTotal.WithMessage(
			"Insufficient total balance: withdrawal of %s requires %s including fees, available %s",
			amount, total, available)
	}

	// 广播失败时扣款尚未发生, 状态仍一致, 调用方整体重试即可
	receipt, err := s.provider.BroadcastWithdrawal(ctx, amount, acc.DepositAddress, destination)
	if err != nil {
		logger.Error("withdrawal broadcast failed",
			zap.String("username", username),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		return nil, errno.ErrProvider.WithMessage("Withdrawal broadcast failed: %v", err)
	}

	remaining, err := s.accounts.DebitConfirmed(ctx, username, total)
	if err != nil {
		// 已广播但扣款失败, 必须人工介入, 不能静默
		logger.Error("withdrawal debit failed after broadcast",
			zap.String("username", username),
			zap.String("txid", receipt.TxID),
			zap.String("total", total.String()),
			zap.Error(err),
		)
		return nil, err
	}
	if remaining.IsNegative() {
		// 并发提现各自通过了准入检查, 扣款后余额为负: 告警等待人工对账
		logger.Error("confirmed balance negative after withdrawal debit",
			zap.String("username", username),
			zap.String("txid", receipt.TxID),
			zap.String("remaining", remaining.String()),
		)
		if monitor.Business != nil {
			monitor.Business.NegativeBalanceTotal.Inc()
		}
	}

	logger.Info("withdrawal accepted",
		zap.String("username", username),
		zap.String("txid", receipt.TxID),
		zap.String("amount", amount.String()),
		zap.String("total", total.String()),
	)
	if monitor.Business != nil {
		totalF, _ := total.Float64()
		monitor.Business.WithdrawAmountTotal.WithLabelValues(receipt.Network).Add(totalF)
	}

	return receipt, nil
}

func (s *WithdrawService) reject(reason string) {
	if monitor.Business != nil {
		monitor.Business.WithdrawRejectedTotal.WithLabelValues(reason).Inc()
	}
}
