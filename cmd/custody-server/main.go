package main

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"custody-core/internal/handler"
	"custody-core/internal/model"
	"custody-core/internal/server"
	"custody-core/internal/service"
	"custody-core/internal/service/mq"
	"custody-core/internal/service/provider"
	"custody-core/internal/store"
	"custody-core/pkg/cache"
	"custody-core/pkg/config"
	"custody-core/pkg/database"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
	"custody-core/pkg/utils/lock"
	"custody-core/pkg/validator"
)

// @title Custody Core API
// @version 1.0
// @description Custodial balance and withdrawal service over a hosted wallet provider
// @host localhost:8080
// @BasePath /api/v1
func main() {
	// 0. 初始化 Config / Logger / 校验器 / 指标
	config.Init()
	logger.Init(config.Global.App.Env)
	defer logger.Sync()
	validator.Init()
	monitor.Init()

	dev := config.Global.App.Env == "development"

	// 1. 连接数据库
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		config.Global.DB.Host,
		config.Global.DB.User,
		config.Global.DB.Password,
		config.Global.DB.Name,
		config.Global.DB.Port,
	)
	db, err := database.ConnectPostgres(dsn, dev)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}

	if dev {
		// 开发环境走 AutoMigrate, 生产环境用 cmd/migrate 管理 Schema
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("auto migrate failed", zap.Error(err))
		}
	}

	// 2. 连接 Redis (分布式锁 + Streams MQ)
	rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}

	// 3. 服务商客户端
	providerClient := provider.NewHTTPClient(
		config.Global.Provider.BaseURL,
		config.Global.Provider.APIKey,
		time.Duration(config.Global.Provider.TimeoutMS)*time.Millisecond,
	)

	netParams := &chaincfg.TestNet3Params
	if config.Global.Provider.Network == "mainnet" {
		netParams = &chaincfg.MainNetParams
	}

	// 4. 存储与缓存
	ledgerStore := store.NewGormLedgerStore(db)
	accountStore := store.NewGormAccountStore(db)
	ownerCache := cache.NewMemoryCache(10*time.Minute, 30*time.Minute)

	// 5. 消息队列
	var producer mq.Producer
	var consumer mq.Consumer
	if config.Global.Redis.MQType == "kafka" {
		brokers := config.Global.Kafka.Brokers
		producer = mq.NewKafkaProducer(brokers, mq.TopicSettlement)
		consumer = mq.NewKafkaConsumer(brokers, "custody_sweeper_group")
	} else {
		producer = mq.NewRedisProducer(rdb)
		consumer = mq.NewRedisConsumer(rdb, "custody_sweeper", "sweeper-0")
	}

	// 6. 业务参数
	minWithdraw, err := decimal.NewFromString(config.Global.Custody.MinWithdrawAmount)
	if err != nil {
		logger.Fatal("invalid custody.min_withdraw_amount", zap.Error(err))
	}
	serviceFee, err := decimal.NewFromString(config.Global.Custody.ServiceFee)
	if err != nil {
		logger.Fatal("invalid custody.service_fee", zap.Error(err))
	}

	// 7. 核心服务
	reconcileSvc := service.NewReconcileService(ledgerStore, accountStore, ownerCache, producer)
	sweeperSvc := service.NewSweeperService(ledgerStore, accountStore, providerClient, config.Global.Custody.ConfirmationThreshold)
	withdrawSvc := service.NewWithdrawService(accountStore, providerClient, minWithdraw, serviceFee, netParams)
	accountSvc := service.NewAccountService(accountStore, ledgerStore, providerClient)

	// 8. 后台任务: 入账事件触发的按需清扫 + 周期清扫
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := service.NewSettlementListener(consumer, sweeperSvc)
	if err := listener.Start(ctx); err != nil {
		logger.Error("settlement listener start failed", zap.Error(err))
	}

	scheduler := service.NewSweepScheduler(ledgerStore, sweeperSvc, lock.NewRedisLock(rdb), config.Global.Custody.SweepInterval)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("sweep scheduler start failed", zap.Error(err))
	}

	// 9. HTTP Server
	r := server.NewHTTPRouter(server.Handlers{
		Account:     handler.NewAccountHandler(accountSvc),
		Transaction: handler.NewTransactionHandler(accountSvc, sweeperSvc),
		Withdraw:    handler.NewWithdrawHandler(withdrawSvc),
		Webhook:     handler.NewWebhookHandler(reconcileSvc),
	}, config.Global.Custody.WebhookIPAllowlist)

	app := server.New(server.Config{HttpPort: config.Global.App.HttpPort}, r)

	// 运行 (阻塞)
	app.Run()

	// 10. 退出后资源清理
	scheduler.Stop()
	cancel()
	_ = consumer.Close()
	_ = producer.Close()
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	rdb.Close()
	logger.Info("custody-server exited")
}
