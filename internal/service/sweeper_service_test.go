package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-core/internal/model"
	"custody-core/internal/service/provider"
	"custody-core/internal/store"
	"custody-core/pkg/errno"
)

func TestConfirmPending_DepositRoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	newFundedAccount(t, st, "alice", "addr-alice", "0", "0")
	reconcile := NewReconcileService(st, st, nil, nil)

	_, err := reconcile.ProcessNotification(context.Background(), depositEvent(t, "tx-1", "addr-alice", "0.005", 0))
	require.NoError(t, err)

	fp := &fakeProvider{
		received: []provider.Tx{{TxID: "tx-1", Confirmations: 3, Address: "addr-alice"}},
	}
	sweeper := NewSweeperService(st, st, fp, 1)

	summary, err := sweeper.ConfirmPending(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Confirmed)

	// 确认后 pending 回扣, 整趟净效果是 confirmed 可用
	acc, err := st.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, acc.ConfirmedBalance.Equal(dec(t, "0.005")))
	assert.True(t, acc.PendingBalance.IsZero())
	assert.True(t, acc.AvailableBalance().Equal(dec(t, "0.005")))

	row, err := st.GetByTxID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.True(t, row.Confirmed)
	assert.Equal(t, model.TxStatusCompleted, row.Status)
}

func TestConfirmPending_SecondSweepIsNoop(t *testing.T) {
	st := store.NewMemoryStore()
	newFundedAccount(t, st, "alice", "addr-alice", "0", "0")
	reconcile := NewReconcileService(st, st, nil, nil)

	_, err := reconcile.ProcessNotification(context.Background(), depositEvent(t, "tx-1", "addr-alice", "0.005", 0))
	require.NoError(t, err)

	fp := &fakeProvider{
		received: []provider.Tx{{TxID: "tx-1", Confirmations: 3, Address: "addr-alice"}},
	}
	sweeper := NewSweeperService(st, st, fp, 1)

	_, err = sweeper.ConfirmPending(context.Background(), "alice")
	require.NoError(t, err)

	// 已确认的行不再出现在未确认列表, 重复清扫不会二次回扣 pending
	summary, err := sweeper.ConfirmPending(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Checked)

	acc, err := st.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, acc.PendingBalance.IsZero())
	assert.True(t, acc.ConfirmedBalance.Equal(dec(t, "0.005")))
}

func TestConfirmPending_BelowThresholdSkipped(t *testing.T) {
	st := store.NewMemoryStore()
	newFundedAccount(t, st, "alice", "addr-alice", "0", "0")
	reconcile := NewReconcileService(st, st, nil, nil)

	_, err := reconcile.ProcessNotification(context.Background(), depositEvent(t, "tx-1", "addr-alice", "0.005", 0))
	require.NoError(t, err)

	fp := &fakeProvider{
		received: []provider.Tx{{TxID: "tx-1", Confirmations: 1, Address: "addr-alice"}},
	}
	sweeper := NewSweeperService(st, st, fp, 3)

	summary, err := sweeper.ConfirmPending(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Confirmed)
	assert.Equal(t, 1, summary.Skipped)

	acc, err := st.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, acc.PendingBalance.Equal(dec(t, "0.005")))
}

func TestConfirmPending_UnknownExternalTxSkipped(t *testing.T) {
	st := store.NewMemoryStore()
	newFundedAccount(t, st, "alice", "addr-alice", "0", "0")
	reconcile := NewReconcileService(st, st, nil, nil)

	_, err := reconcile.ProcessNotification(context.Background(), depositEvent(t, "tx-1", "addr-alice", "0.005", 0))
	require.NoError(t, err)

	// 服务商视图里还看不到这笔交易
	sweeper := NewSweeperService(st, st, &fakeProvider{}, 1)
	summary, err := sweeper.ConfirmPending(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Confirmed)
	assert.Equal(t, 1, summary.Skipped)
}

func TestConfirmPending_EpsilonFloorProtectsPending(t *testing.T) {
	st := store.NewMemoryStore()
	// pending 已经被压到比账本行金额低得多 (异常状态), 回扣会击穿底线
	newFundedAccount(t, st, "alice", "addr-alice", "0.005", "0.001")
	created, err := st.CreateIfAbsent(context.Background(), &model.Transaction{
		TxID:          "tx-1",
		Network:       "BTCTEST",
		Address:       "addr-alice",
		Owner:         "alice",
		BalanceChange: dec(t, "0.005"),
		Status:        model.TxStatusCompleted,
	})
	require.NoError(t, err)
	require.True(t, created)

	fp := &fakeProvider{
		received: []provider.Tx{{TxID: "tx-1", Confirmations: 3, Address: "addr-alice"}},
	}
	sweeper := NewSweeperService(st, st, fp, 1)

	summary, err := sweeper.ConfirmPending(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Confirmed, "row is still marked confirmed")

	// 回扣被跳过, pending 保持原值而不是变成负数
	acc, err := st.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, acc.PendingBalance.Equal(dec(t, "0.001")))
}

func TestConfirmPending_TinyDriftClampedToZero(t *testing.T) {
	st := store.NewMemoryStore()
	// pending 比回扣金额少 5e-9, 在容差之内, 结果钳到 0
	newFundedAccount(t, st, "alice", "addr-alice", "0.005", "0.004999995")
	created, err := st.CreateIfAbsent(context.Background(), &model.Transaction{
		TxID:          "tx-1",
		Network:       "BTCTEST",
		Address:       "addr-alice",
		Owner:         "alice",
		BalanceChange: dec(t, "0.005"),
		Status:        model.TxStatusCompleted,
	})
	require.NoError(t, err)
	require.True(t, created)

	fp := &fakeProvider{
		received: []provider.Tx{{TxID: "tx-1", Confirmations: 3, Address: "addr-alice"}},
	}
	sweeper := NewSweeperService(st, st, fp, 1)

	_, err = sweeper.ConfirmPending(context.Background(), "alice")
	require.NoError(t, err)

	acc, err := st.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, acc.PendingBalance.IsZero())
}

func TestConfirmPending_UnsettledRowWaitsForRedelivery(t *testing.T) {
	st := store.NewMemoryStore()
	newFundedAccount(t, st, "alice", "addr-alice", "0", "0")

	// 入账副作用失败后的补偿回退状态: 账本行存在但 status 仍是 pending, 余额没动
	created, err := st.CreateIfAbsent(context.Background(), &model.Transaction{
		TxID:          "tx-1",
		Network:       "BTCTEST",
		Address:       "addr-alice",
		Owner:         "alice",
		BalanceChange: dec(t, "0.005"),
		Status:        model.TxStatusPending,
	})
	require.NoError(t, err)
	require.True(t, created)

	fp := &fakeProvider{
		received: []provider.Tx{{TxID: "tx-1", Confirmations: 3, Address: "addr-alice"}},
	}
	sweeper := NewSweeperService(st, st, fp, 1)

	// 链上已达标, 但入账还没完成, 清扫不能抢先确认
	summary, err := sweeper.ConfirmPending(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Confirmed)
	assert.Equal(t, 1, summary.Skipped)

	row, err := st.GetByTxID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.False(t, row.Confirmed)

	// 重投完成入账后, 清扫才确认并回扣 pending
	reconcile := NewReconcileService(st, st, nil, nil)
	_, err = reconcile.ProcessNotification(context.Background(), depositEvent(t, "tx-1", "addr-alice", "0.005", 3))
	require.NoError(t, err)

	summary, err = sweeper.ConfirmPending(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Confirmed)

	acc, err := st.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, acc.ConfirmedBalance.Equal(dec(t, "0.005")))
	assert.True(t, acc.PendingBalance.IsZero())
	assert.True(t, acc.AvailableBalance().Equal(dec(t, "0.005")))
}

func TestConfirmPending_SentDirectionCounts(t *testing.T) {
	st := store.NewMemoryStore()
	newFundedAccount(t, st, "alice", "addr-alice", "0.01", "0")
	reconcile := NewReconcileService(st, st, nil, nil)

	// 提现类账本行的确认数来自 sent 方向的查询
	_, err := reconcile.ProcessNotification(context.Background(), depositEvent(t, "tx-out", "addr-alice", "-0.004", 0))
	require.NoError(t, err)

	fp := &fakeProvider{
		sent: []provider.Tx{{TxID: "tx-out", Confirmations: 2, Address: "addr-alice"}},
	}
	sweeper := NewSweeperService(st, st, fp, 1)

	summary, err := sweeper.ConfirmPending(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Confirmed)

	// 非充值行确认时不动 pending
	acc, err := st.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, acc.PendingBalance.IsZero())
	assert.True(t, acc.ConfirmedBalance.Equal(dec(t, "0.01")))
}

func TestConfirmPending_Errors(t *testing.T) {
	st := store.NewMemoryStore()
	sweeper := NewSweeperService(st, st, &fakeProvider{}, 1)

	_, err := sweeper.ConfirmPending(context.Background(), "ghost")
	assert.True(t, errno.ErrAccountNotFound.Is(err))

	newFundedAccount(t, st, "alice", "addr-alice", "0", "0")
	reconcile := NewReconcileService(st, st, nil, nil)
	_, err = reconcile.ProcessNotification(context.Background(), depositEvent(t, "tx-1", "addr-alice", "0.005", 0))
	require.NoError(t, err)

	broken := NewSweeperService(st, st, &fakeProvider{listErr: assert.AnError}, 1)
	_, err = broken.ConfirmPending(context.Background(), "alice")
	assert.True(t, errno.ErrProvider.Is(err))
}
