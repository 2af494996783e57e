package provider

import (
	"context"

	"github.com/shopspring/decimal"
)

// Direction 交易列表查询方向
// 服务商的分页结果按方向拆分, 完整视图需要两次查询
type Direction string

const (
	DirectionReceived Direction = "received"
	DirectionSent     Direction = "sent"
)

// Address 服务商生成的充值地址
type Address struct {
	Address string `json:"address"`
	Label   string `json:"label"`
	Network string `json:"network"`
}

// FeeEstimate 提现费用估算结果
type FeeEstimate struct {
	NetworkFee decimal.Decimal `json:"network_fee"`
	ServiceFee decimal.Decimal `json:"service_fee"`
}

// Receipt 提现广播回执
type Receipt struct {
	TxID        string          `json:"txid"`
	Network     string          `json:"network"`
	AmountSent  decimal.Decimal `json:"amount_sent"`
	NetworkFee  decimal.Decimal `json:"network_fee"`
	BlockioFee  decimal.Decimal `json:"blockio_fee"`
	FromAddress string          `json:"from_address"`
	ToAddress   string          `json:"to_address"`
}

// Tx 服务商侧的链上交易记录
type Tx struct {
	TxID          string          `json:"txid"`
	Confirmations int64           `json:"confirmations"`
	Amount        decimal.Decimal `json:"amount"`
	Address       string          `json:"address"`
}

// Client 托管钱包服务商能力接口
// 密钥托管、费用计算、链上广播全部在服务商侧完成, 本服务只消费结果
// 注入接口便于测试替换 (见 service 包的测试)
type Client interface {
	CreateAddress(ctx context.Context, label string) (*Address, error)
	EstimateFee(ctx context.Context, amount decimal.Decimal, destination string) (*FeeEstimate, error)
	BroadcastWithdrawal(ctx context.Context, amount decimal.Decimal, fromAddress, destination string) (*Receipt, error)
	ListTransactions(ctx context.Context, address string, direction Direction) ([]Tx, error)
}
