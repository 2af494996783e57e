package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"custody-core/internal/model"
)

// MemoryStore 进程内实现, 同时充当 LedgerStore 和 AccountStore
// 供单元测试和无数据库的开发模式使用, 单把互斥锁保证与 SQL 实现一致的单行原子语义
type MemoryStore struct {
	mu       sync.Mutex
	nextID   uint64
	accounts map[string]*model.Account     // username -> account
	byAddr   map[string]string             // deposit address -> username
	txs      map[string]*model.Transaction // txid -> ledger row
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*model.Account),
		byAddr:   make(map[string]string),
		txs:      make(map[string]*model.Transaction),
	}
}

var (
	_ LedgerStore  = (*MemoryStore)(nil)
	_ AccountStore = (*MemoryStore)(nil)
)

func (s *MemoryStore) CreateIfAbsent(ctx context.Context, tx *model.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txs[tx.TxID]; ok {
		return false, nil
	}

	s.nextID++
	cp := *tx
	cp.ID = s.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.txs[cp.TxID] = &cp
	return true, nil
}

func (s *MemoryStore) GetByTxID(ctx context.Context, txid string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[txid]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (s *MemoryStore) UpdateObserved(ctx context.Context, txid string, balanceChange decimal.Decimal, confirmations int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[txid]
	if !ok {
		return ErrNotFound
	}
	tx.BalanceChange = balanceChange
	tx.Confirmations = confirmations
	tx.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) TrySettle(ctx context.Context, txid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[txid]
	if !ok || tx.Status != model.TxStatusPending {
		return false, nil
	}
	tx.Status = model.TxStatusCompleted
	tx.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) RevertSettle(ctx context.Context, txid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx, ok := s.txs[txid]; ok && tx.Status == model.TxStatusCompleted {
		tx.Status = model.TxStatusPending
	}
	return nil
}

func (s *MemoryStore) TryConfirm(ctx context.Context, txid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[txid]
	if !ok || tx.Confirmed || tx.Status != model.TxStatusCompleted {
		return false, nil
	}
	tx.Confirmed = true
	tx.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) ListUnconfirmed(ctx context.Context, owner string) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Transaction
	for _, tx := range s.txs {
		if tx.Owner == owner && !tx.Confirmed {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, owner string) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Transaction
	for _, tx := range s.txs {
		if tx.Owner == owner {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListOwnersWithUnconfirmed(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, tx := range s.txs {
		if !tx.Confirmed && !seen[tx.Owner] {
			seen[tx.Owner] = true
			out = append(out, tx.Owner)
		}
	}
	return out, nil
}

func (s *MemoryStore) Create(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.Username]; ok {
		return ErrDuplicate
	}

	s.nextID++
	cp := *account
	cp.ID = s.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.accounts[cp.Username] = &cp
	if cp.DepositAddress != "" {
		s.byAddr[cp.DepositAddress] = cp.Username
	}
	return nil
}

func (s *MemoryStore) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *MemoryStore) GetByAddress(ctx context.Context, address string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username, ok := s.byAddr[address]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.accounts[username]
	return &cp, nil
}

func (s *MemoryStore) BindAddress(ctx context.Context, username, address, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if !ok {
		return ErrNotFound
	}
	if acc.DepositAddress != "" {
		return nil // 已绑定, 不覆盖
	}
	acc.DepositAddress = address
	acc.AddressLabel = label
	acc.UpdatedAt = time.Now()
	s.byAddr[address] = username
	return nil
}

func (s *MemoryStore) Credit(ctx context.Context, username string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if !ok {
		return ErrNotFound
	}
	acc.ConfirmedBalance = acc.ConfirmedBalance.Add(amount)
	acc.PendingBalance = acc.PendingBalance.Add(amount)
	acc.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) DebitConfirmed(ctx context.Context, username string, total decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	acc.ConfirmedBalance = acc.ConfirmedBalance.Sub(total)
	acc.UpdatedAt = time.Now()
	return acc.ConfirmedBalance, nil
}

func (s *MemoryStore) DecrementPending(ctx context.Context, username string, amount decimal.Decimal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if !ok {
		return false, ErrNotFound
	}

	next := acc.PendingBalance.Sub(amount)
	if next.LessThan(PendingEpsilon.Neg()) {
		return false, nil
	}
	if next.IsNegative() {
		next = decimal.Zero // 钳制微小负漂移
	}
	acc.PendingBalance = next
	acc.UpdatedAt = time.Now()
	return true, nil
}
