package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-core/internal/service/provider"
	"custody-core/internal/store"
	"custody-core/pkg/errno"
)

func TestCreateAccount(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewAccountService(st, st, &fakeProvider{})

	acc, err := svc.CreateAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)
	assert.True(t, acc.ConfirmedBalance.IsZero())
	assert.True(t, acc.PendingBalance.IsZero())
	assert.Empty(t, acc.DepositAddress)

	_, err = svc.CreateAccount(context.Background(), "alice")
	assert.True(t, errno.ErrUsernameTaken.Is(err))

	_, err = svc.CreateAccount(context.Background(), "")
	assert.True(t, errno.ErrUsernameRequired.Is(err))
}

func TestGetAccount_NotFound(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewAccountService(st, st, &fakeProvider{})

	_, err := svc.GetAccount(context.Background(), "ghost")
	assert.True(t, errno.ErrAccountNotFound.Is(err))
}

func TestGetDepositAddress_LazyBinding(t *testing.T) {
	st := store.NewMemoryStore()
	fp := &fakeProvider{address: &provider.Address{Address: "tb1q-alice", Network: "BTCTEST"}}
	svc := NewAccountService(st, st, fp)

	_, err := svc.CreateAccount(context.Background(), "alice")
	require.NoError(t, err)

	// 首次请求才向服务商申请
	addr, err := svc.GetDepositAddress(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "tb1q-alice", addr)
	assert.Equal(t, 1, fp.createCalls)

	// 之后直接命中已绑定地址
	addr, err = svc.GetDepositAddress(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "tb1q-alice", addr)
	assert.Equal(t, 1, fp.createCalls)

	// 绑定后可按地址反查归属
	acc, err := st.GetByAddress(context.Background(), "tb1q-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)
}

func TestGetDepositAddress_ProviderFailure(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewAccountService(st, st, &fakeProvider{addressErr: assert.AnError})

	_, err := svc.CreateAccount(context.Background(), "alice")
	require.NoError(t, err)

	_, err = svc.GetDepositAddress(context.Background(), "alice")
	assert.True(t, errno.ErrProvider.Is(err))

	// 失败不留半绑定状态
	acc, err := svc.GetAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, acc.DepositAddress)
}

func TestHistory(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewAccountService(st, st, &fakeProvider{})
	newFundedAccount(t, st, "alice", "addr-alice", "0", "0")

	reconcile := NewReconcileService(st, st, nil, nil)
	_, err := reconcile.ProcessNotification(context.Background(), depositEvent(t, "tx-1", "addr-alice", "0.005", 0))
	require.NoError(t, err)
	_, err = reconcile.ProcessNotification(context.Background(), depositEvent(t, "tx-2", "addr-alice", "0.003", 0))
	require.NoError(t, err)

	rows, err := svc.History(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = svc.History(context.Background(), "ghost")
	assert.True(t, errno.ErrAccountNotFound.Is(err))
}
