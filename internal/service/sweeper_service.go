package service

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"custody-core/internal/service/provider"
	"custody-core/internal/store"
	"custody-core/pkg/errno"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
)

// SweeperService 确认清扫
// 充值在入账时被乐观地同时计入 confirmed 和 pending 两侧;
// 这里对照服务商的权威交易列表, 确认数达标后把 pending 侧回扣掉
// 可以被任意次重复调用: 已确认的行由 TryConfirm 跳过
type SweeperService struct {
	ledger    store.LedgerStore
	accounts  store.AccountStore
	provider  provider.Client
	threshold int64 // 确认数阈值
}

// SweepSummary 单次清扫的结果摘要
type SweepSummary struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Skipped   int `json:"skipped"`
}

func NewSweeperService(ledger store.LedgerStore, accounts store.AccountStore, client provider.Client, threshold int64) *SweeperService {
	if threshold <= 0 {
		threshold = 1
	}
	return &SweeperService{
		ledger:    ledger,
		accounts:  accounts,
		provider:  client,
		threshold: threshold,
	}
}

// ConfirmPending 清扫单个账户的未确认账本行
func (s *SweeperService) ConfirmPending(ctx context.Context, username string) (*SweepSummary, error) {
	if monitor.Business != nil {
		timer := prometheus.NewTimer(monitor.Business.SweepJobDuration)
		defer timer.ObserveDuration()
	}

	acc, err := s.accounts.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errno.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.ledger.ListUnconfirmed(ctx, username)
	if err != nil {
		return nil, err
	}

	summary := &SweepSummary{Checked: len(rows)}
	if len(rows) == 0 || acc.DepositAddress == "" {
		return summary, nil
	}

	external, err := s.fetchExternal(ctx, acc.DepositAddress)
	if err != nil {
		return nil, errno.ErrProvider.WithMessage("Wallet provider request failed: %v", err)
	}

	for i := range rows {
		row := &rows[i]
		confirmations, ok := external[row.TxID]
		if !ok || confirmations < s.threshold {
			summary.Skipped++
			continue
		}

		// CAS 赢家才执行 pending 回扣, 重复清扫在这里变成 no-op
		won, err := s.ledger.TryConfirm(ctx, row.TxID)
		if err != nil {
			return nil, err
		}
		if !won {
			summary.Skipped++
			continue
		}

		if row.IsDeposit() {
			applied, err := s.accounts.DecrementPending(ctx, username, row.BalanceChange)
			if err != nil {
				return nil, err
			}
			if !applied {
				// 回扣会击穿容差底线, 宁可留下多余的 pending 也不破坏数值
				logger.Warn("pending decrement skipped by epsilon floor",
					zap.String("txid", row.TxID),
					zap.String("owner", username),
					zap.String("amount", row.BalanceChange.String()),
				)
				if monitor.Business != nil {
					monitor.Business.PendingClampSkippedTotal.Inc()
				}
			}
		}

		summary.Confirmed++
		logger.Info("ledger row confirmed",
			zap.String("txid", row.TxID),
			zap.String("owner", username),
			zap.Int64("confirmations", confirmations),
		)
	}

	return summary, nil
}

// fetchExternal 拉取地址的收支两个方向的交易, 合并成 txid -> confirmations
// 同一 txid 两个方向都出现时取较大的确认数
func (s *SweeperService) fetchExternal(ctx context.Context, address string) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, direction := range []provider.Direction{provider.DirectionReceived, provider.DirectionSent} {
		txs, err := s.provider.ListTransactions(ctx, address, direction)
		if err != nil {
			return nil, err
		}
		for _, tx := range txs {
			if existing, ok := out[tx.TxID]; !ok || tx.Confirmations > existing {
				out[tx.TxID] = tx.Confirmations
			}
		}
	}
	return out, nil
}
