package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"custody-core/internal/model"
	"custody-core/internal/service/mq"
	"custody-core/internal/store"
	"custody-core/pkg/cache"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
)

// Operation 对账结果类别
type Operation string

const (
	OpCreated     Operation = "created"
	OpUpdated     Operation = "updated"
	OpNotModified Operation = "not-modified"
)

// ReconcileResult 通知方收到的处理摘要
type ReconcileResult struct {
	TxID      string    `json:"txid"`
	Operation Operation `json:"operation"`
}

// ReconcileService 账本与余额的状态机
// 通知通道是 at-least-once 的, 同一 txid 会被重复投递甚至并发投递;
// 入账副作用由 TrySettle 的 CAS 结果门控, 保证恰好执行一次
type ReconcileService struct {
	ledger     store.LedgerStore
	accounts   store.AccountStore
	ownerCache cache.Cache
	producer   mq.Producer // 可为 nil (不发布入账事件)
}

func NewReconcileService(ledger store.LedgerStore, accounts store.AccountStore, ownerCache cache.Cache, producer mq.Producer) *ReconcileService {
	return &ReconcileService{
		ledger:     ledger,
		accounts:   accounts,
		ownerCache: ownerCache,
		producer:   producer,
	}
}

// ProcessNotification 消费一条规范化通知
// 1. 按地址解析归属账户, 解析不到视为无主通知, 不落账本行
// 2. 账本行不存在则插入 (pending/未确认), 存在则原地更新可变字段
// 3. 入账一次: TrySettle 赢家才执行余额增加; 提现类 (<=0) 不加余额只标记完成
// 存储错误原样上抛, 由通知方按重试语义修复
func (s *ReconcileService) ProcessNotification(ctx context.Context, event *AddressEvent) (*ReconcileResult, error) {
	owner, err := s.resolveOwner(ctx, event.Address)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn("notification for unbound address",
			zap.String("txid", event.TxID),
			zap.String("address", event.Address),
		)
		return &ReconcileResult{TxID: event.TxID, Operation: OpNotModified}, nil
	}
	if err != nil {
		return nil, err
	}

	created, err := s.ledger.CreateIfAbsent(ctx, &model.Transaction{
		TxID:          event.TxID,
		Network:       event.Network,
		Address:       event.Address,
		Owner:         owner,
		BalanceChange: event.BalanceChange,
		Confirmations: event.Confirmations,
		Status:        model.TxStatusPending,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		return nil, err
	}

	op := OpCreated
	if !created {
		if err := s.ledger.UpdateObserved(ctx, event.TxID, event.BalanceChange, event.Confirmations); err != nil {
			return nil, err
		}
		op = OpUpdated
	}

	if err := s.settle(ctx, owner, event); err != nil {
		return nil, err
	}

	return &ReconcileResult{TxID: event.TxID, Operation: op}, nil
}

// settle 幂等入账: CAS 标记成功才允许动余额, 两者在失败时用补偿回退绑定
func (s *ReconcileService) settle(ctx context.Context, owner string, event *AddressEvent) error {
	won, err := s.ledger.TrySettle(ctx, event.TxID)
	if err != nil {
		return err
	}
	if !won {
		// 重复投递命中幂等保护, 属于正常情况
		if monitor.Business != nil {
			monitor.Business.DuplicateDeliveryTotal.Inc()
		}
		return nil
	}

	if !event.BalanceChange.IsPositive() {
		// 提现类事件: 发起时已同步扣款, 这里只记录完成
		logger.Info("withdrawal-originated ledger row settled",
			zap.String("txid", event.TxID),
			zap.String("owner", owner),
		)
		return nil
	}

	if err := s.accounts.Credit(ctx, owner, event.BalanceChange); err != nil {
		// 标记已写但余额没动, 退回 pending 让重投修复
		if revertErr := s.ledger.RevertSettle(ctx, event.TxID); revertErr != nil {
			logger.Error("settle revert failed, ledger row stuck completed",
				zap.String("txid", event.TxID),
				zap.Error(revertErr),
			)
		}
		return err
	}

	logger.Info("deposit settled",
		zap.String("txid", event.TxID),
		zap.String("owner", owner),
		zap.String("amount", event.BalanceChange.String()),
	)
	if monitor.Business != nil {
		monitor.Business.DepositSettledTotal.WithLabelValues(event.Network).Inc()
		amount, _ := event.BalanceChange.Float64()
		monitor.Business.DepositAmountTotal.WithLabelValues(event.Network).Add(amount)
	}

	s.publishSettlement(ctx, owner, event)
	return nil
}

// publishSettlement 发布入账事件, 触发消费侧的按需确认清扫
// 发布失败只记日志: 定时清扫会兜底, 不值得让整条通知失败重投
func (s *ReconcileService) publishSettlement(ctx context.Context, owner string, event *AddressEvent) {
	if s.producer == nil {
		return
	}

	payload, err := json.Marshal(mq.SettlementEvent{
		Username: owner,
		TxID:     event.TxID,
		Amount:   event.BalanceChange.String(),
		Network:  event.Network,
	})
	if err != nil {
		return
	}

	if err := s.producer.Publish(ctx, mq.TopicSettlement, owner, payload); err != nil {
		logger.Error("publish settlement event failed",
			zap.String("txid", event.TxID),
			zap.Error(err),
		)
	}
}

// resolveOwner 地址 -> 账户名, 带进程内缓存 (通知热路径)
func (s *ReconcileService) resolveOwner(ctx context.Context, address string) (string, error) {
	cacheKey := "custody:addr_owner:" + address
	if s.ownerCache != nil {
		var owner string
		if err := s.ownerCache.Get(ctx, cacheKey, &owner); err == nil && owner != "" {
			return owner, nil
		}
	}

	acc, err := s.accounts.GetByAddress(ctx, address)
	if err != nil {
		return "", err
	}

	if s.ownerCache != nil {
		// 地址与账户的绑定不可变, TTL 只是为了控制缓存体积
		_ = s.ownerCache.Set(ctx, cacheKey, acc.Username, 10*time.Minute)
	}
	return acc.Username, nil
}
