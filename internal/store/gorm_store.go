package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"custody-core/internal/model"
)

// GormLedgerStore 基于 PostgreSQL 的账本实现
// 所有状态跃迁都用条件 UPDATE 表达, RowsAffected 即是 CAS 结果
type GormLedgerStore struct {
	db *gorm.DB
}

func NewGormLedgerStore(db *gorm.DB) *GormLedgerStore {
	return &GormLedgerStore{db: db}
}

func (s *GormLedgerStore) CreateIfAbsent(ctx context.Context, tx *model.Transaction) (bool, error) {
	// ON CONFLICT (tx_id) DO NOTHING: 重复通知并发插入时只有一个赢家
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tx_id"}}, DoNothing: true}).
		Create(tx)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormLedgerStore) GetByTxID(ctx context.Context, txid string) (*model.Transaction, error) {
	var tx model.Transaction
	err := s.db.WithContext(ctx).Where("tx_id = ?", txid).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *GormLedgerStore) UpdateObserved(ctx context.Context, txid string, balanceChange decimal.Decimal, confirmations int64) error {
	return s.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("tx_id = ?", txid).
		Updates(map[string]interface{}{
			"balance_change": balanceChange,
			"confirmations":  confirmations,
		}).Error
}

func (s *GormLedgerStore) TrySettle(ctx context.Context, txid string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("tx_id = ? AND status = ?", txid, model.TxStatusPending).
		Update("status", model.TxStatusCompleted)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormLedgerStore) RevertSettle(ctx context.Context, txid string) error {
	return s.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("tx_id = ? AND status = ?", txid, model.TxStatusCompleted).
		Update("status", model.TxStatusPending).Error
}

func (s *GormLedgerStore) TryConfirm(ctx context.Context, txid string) (bool, error) {
	// status 条件保证确认永远发生在入账之后: 入账补偿回退中的行 (status=pending)
	// 如果先被确认, 之后的重投入账就再也没有机会回扣 pending 了
	res := s.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("tx_id = ? AND confirmed = ? AND status = ?", txid, false, model.TxStatusCompleted).
		Update("confirmed", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormLedgerStore) ListUnconfirmed(ctx context.Context, owner string) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := s.db.WithContext(ctx).
		Where("owner = ? AND confirmed = ?", owner, false).
		Order("created_at ASC").
		Find(&txs).Error
	return txs, err
}

func (s *GormLedgerStore) ListByOwner(ctx context.Context, owner string) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := s.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at DESC").
		Find(&txs).Error
	return txs, err
}

func (s *GormLedgerStore) ListOwnersWithUnconfirmed(ctx context.Context) ([]string, error) {
	var owners []string
	err := s.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("confirmed = ?", false).
		Distinct().
		Pluck("owner", &owners).Error
	return owners, err
}

// GormAccountStore 基于 PostgreSQL 的账户实现
type GormAccountStore struct {
	db *gorm.DB
}

func NewGormAccountStore(db *gorm.DB) *GormAccountStore {
	return &GormAccountStore{db: db}
}

func (s *GormAccountStore) Create(ctx context.Context, account *model.Account) error {
	err := s.db.WithContext(ctx).Create(account).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *GormAccountStore) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	var acc model.Account
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *GormAccountStore) GetByAddress(ctx context.Context, address string) (*model.Account, error) {
	var acc model.Account
	err := s.db.WithContext(ctx).Where("deposit_address = ?", address).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *GormAccountStore) BindAddress(ctx context.Context, username, address, label string) error {
	res := s.db.WithContext(ctx).Model(&model.Account{}).
		Where("username = ? AND (deposit_address IS NULL OR deposit_address = '')", username).
		Updates(map[string]interface{}{
			"deposit_address": address,
			"address_label":   label,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// 已绑定或账户不存在, 由调用方先查后绑, 这里不视为错误
		return nil
	}
	return nil
}

func (s *GormAccountStore) Credit(ctx context.Context, username string, amount decimal.Decimal) error {
	res := s.db.WithContext(ctx).Model(&model.Account{}).
		Where("username = ?", username).
		Updates(map[string]interface{}{
			"confirmed_balance": gorm.Expr("confirmed_balance + ?", amount),
			"pending_balance":   gorm.Expr("pending_balance + ?", amount),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormAccountStore) DebitConfirmed(ctx context.Context, username string, total decimal.Decimal) (decimal.Decimal, error) {
	// RETURNING 带回扣款后的余额, 调用方据此发现并发提现把余额打负
	var acc model.Account
	res := s.db.WithContext(ctx).Model(&acc).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "confirmed_balance"}}}).
		Where("username = ?", username).
		Update("confirmed_balance", gorm.Expr("confirmed_balance - ?", total))
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, ErrNotFound
	}
	return acc.ConfirmedBalance, nil
}

func (s *GormAccountStore) DecrementPending(ctx context.Context, username string, amount decimal.Decimal) (bool, error) {
	// 条件更新: 只有 pending_balance 不会被压穿 -1e-8 时才执行回扣
	// GREATEST 把微小的负漂移钳回 0
	floor := amount.Sub(PendingEpsilon)
	res := s.db.WithContext(ctx).Model(&model.Account{}).
		Where("username = ? AND pending_balance >= ?", username, floor).
		Update("pending_balance", gorm.Expr("GREATEST(pending_balance - ?, 0)", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
