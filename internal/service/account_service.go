package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"custody-core/internal/model"
	"custody-core/internal/service/provider"
	"custody-core/internal/store"
	"custody-core/pkg/errno"
	"custody-core/pkg/logger"
)

// AccountService 账户开户、充值地址绑定与流水查询
type AccountService struct {
	accounts store.AccountStore
	ledger   store.LedgerStore
	provider provider.Client
}

func NewAccountService(accounts store.AccountStore, ledger store.LedgerStore, client provider.Client) *AccountService {
	return &AccountService{
		accounts: accounts,
		ledger:   ledger,
		provider: client,
	}
}

// CreateAccount 开户, 余额从零开始; 用户名唯一
func (s *AccountService) CreateAccount(ctx context.Context, username string) (*model.Account, error) {
	if username == "" {
		return nil, errno.ErrUsernameRequired
	}

	if _, err := s.accounts.GetByUsername(ctx, username); err == nil {
		return nil, errno.ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	acc := &model.Account{
		Username:  username,
		CreatedAt: time.Now(),
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errno.ErrUsernameTaken
		}
		return nil, err
	}

	logger.Info("account created", zap.String("username", username))
	return acc, nil
}

// GetAccount 查询账户余额状态
func (s *AccountService) GetAccount(ctx context.Context, username string) (*model.Account, error) {
	acc, err := s.accounts.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errno.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// GetDepositAddress 懒加载充值地址: 首次调用时向服务商申请并绑定, 每个账户至多一个
// 并发首次调用可能各自申请到地址, 绑定只认第一个赢家, 以回读结果为准
func (s *AccountService) GetDepositAddress(ctx context.Context, username string) (string, error) {
	acc, err := s.GetAccount(ctx, username)
	if err != nil {
		return "", err
	}
	if acc.DepositAddress != "" {
		return acc.DepositAddress, nil
	}

	label := fmt.Sprintf("%s-%d", username, time.Now().UnixMilli())
	addr, err := s.provider.CreateAddress(ctx, label)
	if err != nil {
		return "", errno.ErrProvider.WithMessage("Address creation failed: %v", err)
	}

	if err := s.accounts.BindAddress(ctx, username, addr.Address, label); err != nil {
		return "", err
	}

	// 回读绑定结果, 并发竞争时返回真正生效的那个地址
	acc, err = s.GetAccount(ctx, username)
	if err != nil {
		return "", err
	}

	logger.Info("deposit address bound",
		zap.String("username", username),
		zap.String("address", acc.DepositAddress),
	)
	return acc.DepositAddress, nil
}

// History 账户的账本流水
func (s *AccountService) History(ctx context.Context, username string) ([]model.Transaction, error) {
	if _, err := s.GetAccount(ctx, username); err != nil {
		return nil, err
	}
	return s.ledger.ListByOwner(ctx, username)
}
