package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"custody-core/internal/model"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 唯一键冲突
	ErrDuplicate = errors.New("duplicate record")
)

// PendingEpsilon 未确认余额回扣的容差下限
// 回扣不允许把 pending_balance 压到 -1e-8 以下, 超出视为数据漂移, 跳过并告警
var PendingEpsilon = decimal.New(1, -8)

// LedgerStore 账本存储
// 幂等性通过单行条件更新表达: TrySettle / TryConfirm 只在状态跃迁真正发生时返回 true,
// 调用方用返回值决定是否执行对应的余额副作用
type LedgerStore interface {
	// CreateIfAbsent 以 txid 为键写入新账本行, 已存在时不做任何修改
	// 返回是否真正插入了新行
	CreateIfAbsent(ctx context.Context, tx *model.Transaction) (bool, error)

	GetByTxID(ctx context.Context, txid string) (*model.Transaction, error)

	// UpdateObserved 更新重复通知带来的可变字段 (确认数、金额修正)
	UpdateObserved(ctx context.Context, txid string, balanceChange decimal.Decimal, confirmations int64) error

	// TrySettle 将 status 从 pending 置为 completed, 仅第一次调用返回 true
	TrySettle(ctx context.Context, txid string) (bool, error)

	// RevertSettle 入账副作用失败时的补偿, 把 status 退回 pending 以便重投修复
	RevertSettle(ctx context.Context, txid string) error

	// TryConfirm 将 confirmed 从 false 置为 true, 仅第一次调用返回 true
	// 只对 status 为 completed 的行生效: 确认必须发生在入账之后
	TryConfirm(ctx context.Context, txid string) (bool, error)

	ListUnconfirmed(ctx context.Context, owner string) ([]model.Transaction, error)
	ListByOwner(ctx context.Context, owner string) ([]model.Transaction, error)

	// ListOwnersWithUnconfirmed 返回仍有未确认账本行的账户, 供定时清扫使用
	ListOwnersWithUnconfirmed(ctx context.Context) ([]string, error)
}

// AccountStore 账户存储, 所有余额变更都是单行原子增减
type AccountStore interface {
	Create(ctx context.Context, account *model.Account) error
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
	GetByAddress(ctx context.Context, address string) (*model.Account, error)

	// BindAddress 绑定充值地址, 每个账户至多一个, 已绑定时不覆盖
	BindAddress(ctx context.Context, username, address, label string) error

	// Credit 入账: confirmed_balance 与 pending_balance 同时原子加上 amount
	Credit(ctx context.Context, username string, amount decimal.Decimal) error

	// DebitConfirmed 提现扣款: confirmed_balance 原子减去 total, 返回扣款后的余额
	// 并发提现双双通过准入检查时余额可能为负, 由调用方根据返回值告警
	DebitConfirmed(ctx context.Context, username string, total decimal.Decimal) (decimal.Decimal, error)

	// DecrementPending 确认达标后回扣 pending_balance, 结果钳制在 0 以上
	// 当回扣会击穿 PendingEpsilon 底线时不执行, 返回 false
	DecrementPending(ctx context.Context, username string, amount decimal.Decimal) (bool, error)
}
