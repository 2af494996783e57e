package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"custody-core/internal/model"
	"custody-core/internal/service/provider"
	"custody-core/internal/store"
	"custody-core/pkg/logger"
)

func init() {
	logger.Init("test")
}

// fakeProvider 可编程的服务商替身
type fakeProvider struct {
	address      *provider.Address
	addressErr   error
	estimate     *provider.FeeEstimate
	estimateErr  error
	receipt      *provider.Receipt
	broadcastErr error
	received     []provider.Tx
	sent         []provider.Tx
	listErr      error

	createCalls    int
	broadcastCalls int
}

func (f *fakeProvider) CreateAddress(ctx context.Context, label string) (*provider.Address, error) {
	f.createCalls++
	if f.addressErr != nil {
		return nil, f.addressErr
	}
	if f.address != nil {
		return f.address, nil
	}
	return &provider.Address{Address: "tb1q-fake-" + label, Label: label, Network: "BTCTEST"}, nil
}

func (f *fakeProvider) EstimateFee(ctx context.Context, amount decimal.Decimal, destination string) (*provider.FeeEstimate, error) {
	if f.estimateErr != nil {
		return nil, f.estimateErr
	}
	if f.estimate != nil {
		return f.estimate, nil
	}
	return &provider.FeeEstimate{}, nil
}

func (f *fakeProvider) BroadcastWithdrawal(ctx context.Context, amount decimal.Decimal, fromAddress, destination string) (*provider.Receipt, error) {
	f.broadcastCalls++
	if f.broadcastErr != nil {
		return nil, f.broadcastErr
	}
	if f.receipt != nil {
		return f.receipt, nil
	}
	return &provider.Receipt{
		TxID:        "broadcast-txid",
		Network:     "BTCTEST",
		AmountSent:  amount,
		FromAddress: fromAddress,
		ToAddress:   destination,
	}, nil
}

func (f *fakeProvider) ListTransactions(ctx context.Context, address string, direction provider.Direction) ([]provider.Tx, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if direction == provider.DirectionReceived {
		return f.received, nil
	}
	return f.sent, nil
}

var _ provider.Client = (*fakeProvider)(nil)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// newFundedAccount 建一个已绑定地址的账户, 可选预置余额
func newFundedAccount(t *testing.T, st *store.MemoryStore, username, address, confirmed, pending string) {
	t.Helper()
	require.NoError(t, st.Create(context.Background(), &model.Account{
		Username:         username,
		ConfirmedBalance: dec(t, confirmed),
		PendingBalance:   dec(t, pending),
		DepositAddress:   address,
		CreatedAt:        time.Now(),
	}))
}
