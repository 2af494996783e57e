package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"custody-core/internal/store"
	"custody-core/pkg/logger"
	"custody-core/pkg/utils/lock"
)

const sweepLockKey = "cron:confirm_sweep"

// SweepScheduler 周期性地对所有仍有未确认账本行的账户跑确认清扫
// 多实例部署时用分布式锁保证同一时刻只有一个节点在扫
type SweepScheduler struct {
	cron     *cron.Cron
	ledger   store.LedgerStore
	sweeper  *SweeperService
	distLock lock.DistributedLock
	spec     string
}

func NewSweepScheduler(ledger store.LedgerStore, sweeper *SweeperService, distLock lock.DistributedLock, spec string) *SweepScheduler {
	if spec == "" {
		spec = "@every 1m"
	}
	if distLock == nil {
		distLock = lock.NopLock{}
	}
	return &SweepScheduler{
		cron:     cron.New(),
		ledger:   ledger,
		sweeper:  sweeper,
		distLock: distLock,
		spec:     spec,
	}
}

func (s *SweepScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.Run); err != nil {
		return err
	}
	s.cron.Start()
	logger.Info("sweep scheduler started", zap.String("spec", s.spec))
	return nil
}

func (s *SweepScheduler) Stop() {
	s.cron.Stop()
	logger.Info("sweep scheduler stopped")
}

// Run 单轮清扫, 清扫本身幂等, 锁只是避免多实例做重复功
func (s *SweepScheduler) Run() {
	ctx := context.Background()

	locked, err := s.distLock.Acquire(ctx, sweepLockKey, 5*time.Minute)
	if err != nil || !locked {
		logger.Debug("sweep scheduler: another instance holds the lock")
		return
	}
	defer s.distLock.Release(ctx, sweepLockKey)

	owners, err := s.ledger.ListOwnersWithUnconfirmed(ctx)
	if err != nil {
		logger.Error("sweep scheduler: list owners failed", zap.Error(err))
		return
	}

	for _, owner := range owners {
		summary, err := s.sweeper.ConfirmPending(ctx, owner)
		if err != nil {
			// 单个账户失败不影响其他账户, 下一轮会重扫
			logger.Error("sweep scheduler: confirm pending failed",
				zap.String("owner", owner),
				zap.Error(err),
			)
			continue
		}
		if summary.Confirmed > 0 {
			logger.Info("sweep scheduler: confirmed deposits",
				zap.String("owner", owner),
				zap.Int("confirmed", summary.Confirmed),
			)
		}
	}
}
