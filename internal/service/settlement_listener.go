package service

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"custody-core/internal/service/mq"
	"custody-core/pkg/errno"
	"custody-core/pkg/logger"
)

// SettlementListener 消费入账事件, 对刚入账的账户立即跑一轮确认清扫
// 大多数事件此时确认数还没达标, 清扫是 no-op; 达标的低延迟入账由它兜住,
// 其余交给 SweepScheduler 的周期扫
type SettlementListener struct {
	consumer mq.Consumer
	sweeper  *SweeperService
}

func NewSettlementListener(consumer mq.Consumer, sweeper *SweeperService) *SettlementListener {
	return &SettlementListener{
		consumer: consumer,
		sweeper:  sweeper,
	}
}

func (l *SettlementListener) Start(ctx context.Context) error {
	return l.consumer.Subscribe(ctx, mq.TopicSettlement, l.handle)
}

func (l *SettlementListener) handle(ctx context.Context, msg *mq.Message) error {
	var event mq.SettlementEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		// 格式错误的消息重投也救不回来, 丢弃
		logger.Warn("settlement event malformed", zap.String("id", msg.ID), zap.Error(err))
		return nil
	}

	// ctx 来自 Subscribe, 消费者停止时在途清扫一并取消
	_, err := l.sweeper.ConfirmPending(ctx, event.Username)
	if errors.Is(err, errno.ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		// 存储或服务商故障, 交回 MQ 按 at-least-once 重投
		return err
	}
	return nil
}
