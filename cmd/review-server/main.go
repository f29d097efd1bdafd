package main

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/web3nomad/Rabby/internal/handler"
	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/internal/server"
	"github.com/web3nomad/Rabby/internal/service/approval"
	"github.com/web3nomad/Rabby/internal/service/chain"
	"github.com/web3nomad/Rabby/internal/service/gasselect"
	"github.com/web3nomad/Rabby/internal/service/mq"
	"github.com/web3nomad/Rabby/internal/service/nonce"
	"github.com/web3nomad/Rabby/internal/service/openapi"
	"github.com/web3nomad/Rabby/internal/service/pending"
	"github.com/web3nomad/Rabby/internal/service/reporter"
	"github.com/web3nomad/Rabby/pkg/cache"
	"github.com/web3nomad/Rabby/pkg/config"
	"github.com/web3nomad/Rabby/pkg/database"
	"github.com/web3nomad/Rabby/pkg/logger"
	"github.com/web3nomad/Rabby/pkg/utils/lock"
)

// @title Transaction Review API
// @version 1.0
// @description Gas, nonce and risk review of wallet transactions and typed-data signatures.

// @host localhost:8080
// @BasePath /
func main() {
	// 0. 初始化 Config
	config.Init()
	cfg := config.Global

	// 1. 初始化 Logger
	logger.Init(cfg.App.Env)
	defer logger.Sync()

	// 2. 连接 Redis (pending 队列, 缓存 L2, 事件流)
	rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 3. 连接数据库 (可选, 关闭时 gas 选择只保存在缓存中)
	var db *gorm.DB
	if cfg.DB.Enabled {
		dsn := database.PostgresDSN(cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name)
		db, err = database.ConnectPostgres(dsn, cfg.App.Env == "development")
		if err != nil {
			logger.Fatal("数据库连接失败", zap.Error(err))
		}
		// 开发环境自动建表, 生产环境使用 cmd/migrate
		if cfg.App.Env == "development" {
			if err := db.AutoMigrate(model.AllModels()...); err != nil {
				logger.Fatal("数据库自动迁移失败", zap.Error(err))
			}
		}
	} else {
		logger.Info("db.enabled=false, gas selections are cache-only")
	}

	// 4. 存储层
	selectionCache := cache.NewMultiLevelCache(
		cache.NewMemoryCache(cfg.Cache.GasSelectionTTL, 10*time.Minute),
		cache.NewRedisCache(rdb, "review"),
	)
	selections := gasselect.NewRepository(db, selectionCache, cfg.Cache.GasSelectionTTL)
	pendingStore := pending.NewRedisStore(rdb, cfg.Pending.KeyPrefix)

	// 5. 外部协作方
	chainClient := chain.NewClient(cfg.Chains)
	nonces := nonce.NewResolver(chainClient, pendingStore, chainClient)
	api := openapi.NewClient(cfg.OpenAPI, cfg.Chains)

	// 6. 事件上报 (Redis Streams 或 Kafka)
	producer := mq.NewProducer(cfg, rdb)
	events := reporter.New(producer, cfg.Kafka.Topic)

	svc := approval.NewService(approval.Deps{
		Chain:      chainClient,
		Nonce:      nonces,
		Pending:    pendingStore,
		Simulator:  api,
		History:    api,
		L1:         chainClient,
		Market:     api,
		Security:   api,
		Selections: selections,
		Reporter:   events,
	}, approval.OptionsFromConfig(cfg))
	sessions := approval.NewRegistry(cfg.Cache.SessionTTL)

	// 7. 后台清理已上链的 pending 交易
	ctx, cancel := context.WithCancel(context.Background())
	pruner := pending.NewPruner(pendingStore, chainClient, cfg.Pending.PruneInterval, cfg.Pending.PruneWorkers).
		WithLock(lock.NewRedisLock(rdb, cfg.Pending.KeyPrefix))
	pruner.Start(ctx)

	// 8. HTTP
	r := server.NewHTTPRouter(handler.NewReviewHandler(svc, sessions), handler.NewPendingHandler(pendingStore))
	app := server.New(server.Config{HttpPort: cfg.App.HttpPort}, r)

	app.OnShutdown(func() {
		cancel()
		pruner.Wait()
	})
	app.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			logger.Warn("producer close failed", zap.Error(err))
		}
		chainClient.Close()
	})
	app.OnShutdown(func() {
		if db != nil {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		rdb.Close()
	})

	// 运行 (阻塞)
	app.Run()
	logger.Info("系统已退出")
}
