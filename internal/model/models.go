package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 交易状态: Status 标记余额是否已入账, Confirmed 标记确认数是否达标
// 两个标记各自只允许发生一次跃迁 (pending -> completed, false -> true)
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
)

// Account 托管账户表
// ConfirmedBalance 为已入账余额, PendingBalance 为其中尚未达到确认阈值的部分
type Account struct {
	ID               uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Username         string          `gorm:"type:varchar(255);not null;unique" json:"username"`
	ConfirmedBalance decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"confirmed_balance"`
	PendingBalance   decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"pending_balance"`
	// 唯一性由迁移里的部分唯一索引保证 (未绑定地址的账户是空串, 不能直接上 uniqueIndex)
	DepositAddress   string          `gorm:"type:varchar(255);index" json:"deposit_address"`
	AddressLabel     string          `gorm:"type:varchar(255)" json:"address_label"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Transaction 账本表, txid 唯一 (同一笔链上交易至多一行)
type Transaction struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TxID          string          `gorm:"type:varchar(255);not null;uniqueIndex" json:"txid"`
	Network       string          `gorm:"type:varchar(20)" json:"network"`
	Address       string          `gorm:"type:varchar(255);not null;index" json:"address"`
	Owner         string          `gorm:"type:varchar(255);not null;index" json:"owner"`
	BalanceChange decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"balance_change"` // 正数充值, 负数提现
	Confirmations int64           `gorm:"not null;default:0" json:"confirmations"`
	Status        string          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Confirmed     bool            `gorm:"not null;default:false;index" json:"confirmed"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AvailableBalance 可提现余额 = 已入账余额 - 未确认部分
func (a *Account) AvailableBalance() decimal.Decimal {
	return a.ConfirmedBalance.Sub(a.PendingBalance)
}

// IsDeposit 是否为充值类账本行
func (t *Transaction) IsDeposit() bool {
	return t.BalanceChange.IsPositive()
}

func (Account) TableName() string {
	return "accounts"
}

func (Transaction) TableName() string {
	return "transactions"
}
