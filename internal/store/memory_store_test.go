package store

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-core/internal/model"
)

func seedRow(t *testing.T, st *MemoryStore, txid string) {
	t.Helper()
	created, err := st.CreateIfAbsent(context.Background(), &model.Transaction{
		TxID:          txid,
		Network:       "BTCTEST",
		Address:       "addr-1",
		Owner:         "alice",
		BalanceChange: decimal.RequireFromString("0.005"),
		Status:        model.TxStatusPending,
	})
	require.NoError(t, err)
	require.True(t, created)
}

func TestCreateIfAbsent_SingleWinner(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	seedRow(t, st, "tx-1")

	created, err := st.CreateIfAbsent(ctx, &model.Transaction{TxID: "tx-1", Owner: "alice"})
	require.NoError(t, err)
	assert.False(t, created)

	// 原行未被第二次插入覆盖
	row, err := st.GetByTxID(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "addr-1", row.Address)
}

func TestTrySettle_ExactlyOnce(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seedRow(t, st, "tx-1")

	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := st.TrySettle(ctx, "tx-1")
			assert.NoError(t, err)
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestRevertSettle_ReopensRow(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seedRow(t, st, "tx-1")

	won, err := st.TrySettle(ctx, "tx-1")
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, st.RevertSettle(ctx, "tx-1"))

	// 补偿回退后下一次投递可以重新赢得入账
	won, err = st.TrySettle(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, won)
}

func TestTryConfirm_ExactlyOnce(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seedRow(t, st, "tx-1")

	// 入账尚未完成 (status 还是 pending) 时不可确认
	won, err := st.TryConfirm(ctx, "tx-1")
	require.NoError(t, err)
	assert.False(t, won)

	settled, err := st.TrySettle(ctx, "tx-1")
	require.NoError(t, err)
	require.True(t, settled)

	won, err = st.TryConfirm(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = st.TryConfirm(ctx, "tx-1")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestTryConfirm_RevertedRowNotConfirmable(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seedRow(t, st, "tx-1")

	settled, err := st.TrySettle(ctx, "tx-1")
	require.NoError(t, err)
	require.True(t, settled)

	// 入账副作用失败后补偿回退, 行退回 pending, 确认必须等重投把入账做完
	require.NoError(t, st.RevertSettle(ctx, "tx-1"))

	won, err := st.TryConfirm(ctx, "tx-1")
	require.NoError(t, err)
	assert.False(t, won)

	row, err := st.GetByTxID(ctx, "tx-1")
	require.NoError(t, err)
	assert.False(t, row.Confirmed)
}

func TestListUnconfirmedAndOwners(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seedRow(t, st, "tx-1")
	seedRow(t, st, "tx-2")

	rows, err := st.ListUnconfirmed(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	owners, err := st.ListOwnersWithUnconfirmed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, owners)

	for _, txid := range []string{"tx-1", "tx-2"} {
		settled, err := st.TrySettle(ctx, txid)
		require.NoError(t, err)
		require.True(t, settled)
		won, err := st.TryConfirm(ctx, txid)
		require.NoError(t, err)
		require.True(t, won)
	}

	rows, err = st.ListUnconfirmed(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rows)

	owners, err = st.ListOwnersWithUnconfirmed(ctx)
	require.NoError(t, err)
	assert.Empty(t, owners)
}

func TestDecrementPending_EpsilonFloor(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, &model.Account{
		Username:       "alice",
		PendingBalance: decimal.RequireFromString("0.005"),
	}))

	// 正常回扣
	applied, err := st.DecrementPending(ctx, "alice", decimal.RequireFromString("0.003"))
	require.NoError(t, err)
	assert.True(t, applied)

	// 会把 pending 压到 -0.003 以下, 拒绝
	applied, err = st.DecrementPending(ctx, "alice", decimal.RequireFromString("0.005"))
	require.NoError(t, err)
	assert.False(t, applied)

	acc, err := st.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, acc.PendingBalance.Equal(decimal.RequireFromString("0.002")))

	// 容差内的微小漂移允许, 且钳到 0
	applied, err = st.DecrementPending(ctx, "alice", decimal.RequireFromString("0.002000000005"))
	require.NoError(t, err)
	assert.True(t, applied)

	acc, err = st.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, acc.PendingBalance.IsZero())
}

func TestDebitConfirmed_ReturnsRemainingBalance(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, &model.Account{
		Username:         "alice",
		ConfirmedBalance: decimal.RequireFromString("0.005"),
	}))

	remaining, err := st.DebitConfirmed(ctx, "alice", decimal.RequireFromString("0.002"))
	require.NoError(t, err)
	assert.True(t, remaining.Equal(decimal.RequireFromString("0.003")))

	// 扣穿余额时返回负值, 让调用方能够告警
	remaining, err = st.DebitConfirmed(ctx, "alice", decimal.RequireFromString("0.004"))
	require.NoError(t, err)
	assert.True(t, remaining.Equal(decimal.RequireFromString("-0.001")))

	_, err = st.DebitConfirmed(ctx, "ghost", decimal.RequireFromString("0.001"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBindAddress_FirstWriterWins(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, &model.Account{Username: "alice"}))

	require.NoError(t, st.BindAddress(ctx, "alice", "addr-1", "alice-1"))
	require.NoError(t, st.BindAddress(ctx, "alice", "addr-2", "alice-2"))

	acc, err := st.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "addr-1", acc.DepositAddress)

	got, err := st.GetByAddress(ctx, "addr-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestCreate_DuplicateUsername(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, &model.Account{Username: "alice"}))

	err := st.Create(ctx, &model.Account{Username: "alice"})
	assert.ErrorIs(t, err, ErrDuplicate)
}
