package service

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
)

// RawNotification 服务商 webhook 的原始载荷
// 字段按来源协议命名; balance_change 缺失的旧版本事件带 amount_sent / amount_received
type RawNotification struct {
	Type string `json:"type"`
	Data struct {
		TxID           string           `json:"txid"`
		Address        string           `json:"address"`
		Network        string           `json:"network"`
		BalanceChange  *decimal.Decimal `json:"balance_change"`
		AmountSent     decimal.Decimal  `json:"amount_sent"`
		AmountReceived decimal.Decimal  `json:"amount_received"`
		Confirmations  int64            `json:"confirmations"`
		IsGreen        bool             `json:"is_green"`
	} `json:"data"`
}

// AddressEvent 规范化后的地址交易事件, 下游只认这个形状
type AddressEvent struct {
	TxID          string
	Address       string
	Network       string
	BalanceChange decimal.Decimal // 有符号净变动: 正数充值, 负数提现
	Confirmations int64
}

// ClassifyNotification 校验并规范化入站事件
// 只有携带 txid 和 address 的 address 类型通知有效; 其余一律丢弃 (记日志, 不报错),
// 通知通道不可信, 丢弃比上抛更安全
func ClassifyNotification(raw *RawNotification) (*AddressEvent, bool) {
	if raw == nil || raw.Type != "address" || raw.Data.TxID == "" || raw.Data.Address == "" {
		logger.Debug("dropping inapplicable notification",
			zap.String("type", typeOf(raw)),
		)
		if monitor.Business != nil {
			monitor.Business.NotificationDroppedTotal.Inc()
		}
		return nil, false
	}

	// 统一到有符号净变动模型; 旧事件由收支两个金额推导
	change := raw.Data.AmountReceived.Sub(raw.Data.AmountSent)
	if raw.Data.BalanceChange != nil {
		change = *raw.Data.BalanceChange
	}

	return &AddressEvent{
		TxID:          raw.Data.TxID,
		Address:       raw.Data.Address,
		Network:       raw.Data.Network,
		BalanceChange: change,
		Confirmations: raw.Data.Confirmations,
	}, true
}

func typeOf(raw *RawNotification) string {
	if raw == nil {
		return ""
	}
	return raw.Type
}
