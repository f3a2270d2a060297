// Package app 提供 venu-chain 服务的应用生命周期管理
//
// venu-chain 是 Venu 市场的链上服务, 负责:
// 1. 钱包托管 (Custody): 生成并信封加密保管用户私钥与助记词
// 2. 链上调和 (Reconciler): 轮询合约事件, 幂等落库订单与门票
// 3. 支付分账 (Allocator): 按商家聚合购物车并计算平台费
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/venu-market/venu-chain/internal/blockchain"
	"github.com/venu-market/venu-chain/internal/config"
	"github.com/venu-market/venu-chain/internal/contract"
	"github.com/venu-market/venu-chain/internal/handler"
	"github.com/venu-market/venu-chain/internal/kafka"
	"github.com/venu-market/venu-chain/internal/lock"
	"github.com/venu-market/venu-chain/internal/logger"
	"github.com/venu-market/venu-chain/internal/metrics"
	"github.com/venu-market/venu-chain/internal/middleware"
	"github.com/venu-market/venu-chain/internal/repository"
	"github.com/venu-market/venu-chain/internal/service"
)

// leaseKeyPrefix 分布式租约键前缀
const leaseKeyPrefix = "venu:lease:"

// App 应用
type App struct {
	cfg *config.Config

	// 基础设施
	db    *gorm.DB
	redis *redis.Client

	// 区块链
	chainClient *blockchain.Client
	logReader   *blockchain.LogReader
	marketplace *contract.Marketplace

	// 仓储
	walletRepo  repository.WalletRepository
	auditRepo   repository.AuditRepository
	cursorRepo  repository.CursorRepository
	orderRepo   repository.OrderRepository
	bookingRepo repository.BookingRepository
	vendorRepo  repository.VendorRepository
	userRepo    repository.UserRepository

	// 服务
	custodySvc    *service.CustodyService
	reconcilerSvc *service.ReconcilerService
	allocatorSvc  *service.AllocatorService

	// Kafka
	kafkaProducer  *kafka.Producer
	eventPublisher kafka.EventPublisher

	// HTTP
	httpServer    *http.Server
	healthHandler *handler.HealthHandler

	// 运行控制
	stopCh chan struct{}
}

// NewApp 创建应用
func NewApp(cfg *config.Config) (*App, error) {
	app := &App{
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}

	if err := app.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}

	if err := app.initBlockchain(); err != nil {
		return nil, fmt.Errorf("failed to init blockchain: %w", err)
	}

	app.initRepositories()

	if err := app.initKafka(); err != nil {
		return nil, fmt.Errorf("failed to init kafka: %w", err)
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// initInfrastructure 初始化基础设施
func (a *App) initInfrastructure() error {
	// PostgreSQL
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		a.cfg.Postgres.Host,
		a.cfg.Postgres.Port,
		a.cfg.Postgres.User,
		a.cfg.Postgres.Password,
		a.cfg.Postgres.Database,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(a.cfg.Postgres.MaxConnections)
	sqlDB.SetMaxIdleConns(a.cfg.Postgres.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(a.cfg.Postgres.ConnMaxLifetime) * time.Second)

	a.db = db
	logger.Info("database connected", zap.String("host", a.cfg.Postgres.Host))

	// 自动迁移
	if err := AutoMigrate(a.db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("database migrated")

	// Redis
	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
		PoolSize: a.cfg.Redis.PoolSize,
	})

	if err := a.redis.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}

	logger.Info("redis connected", zap.String("addr", a.cfg.Redis.Addr))

	return nil
}

// initBlockchain 初始化区块链客户端
func (a *App) initBlockchain() error {
	rpcURLs := append([]string{a.cfg.Blockchain.RPCURL}, a.cfg.Blockchain.BackupRPCURLs...)

	client, err := blockchain.NewClient(&blockchain.ClientConfig{
		ChainID:         a.cfg.Blockchain.ChainID,
		RPCURLs:         rpcURLs,
		MaxRetries:      a.cfg.Sync.MaxRetries,
		RetryInterval:   time.Duration(a.cfg.Sync.RetryBackoff) * time.Second,
		RequestTimeout:  time.Duration(a.cfg.Blockchain.RequestTimeout) * time.Second,
		HealthCheckFreq: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create blockchain client: %w", err)
	}

	a.chainClient = client
	a.logReader = blockchain.NewLogReader(client)

	marketplace, err := contract.NewMarketplace(
		common.HexToAddress(a.cfg.Blockchain.ContractAddress), client)
	if err != nil {
		return fmt.Errorf("failed to create marketplace binding: %w", err)
	}
	a.marketplace = marketplace

	// 配置了支付代币时, 用链上的小数位校验本地配置
	if a.cfg.Blockchain.TokenAddress != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tokenAddr := common.HexToAddress(a.cfg.Blockchain.TokenAddress)
		decimals, err := marketplace.TokenDecimals(ctx, tokenAddr)
		if err != nil {
			logger.Warn("failed to verify token decimals on chain", zap.Error(err))
		} else if int32(decimals) != a.cfg.Blockchain.TokenDecimals {
			logger.Warn("token decimals mismatch, using on-chain value",
				zap.Int32("configured", a.cfg.Blockchain.TokenDecimals),
				zap.Uint8("on_chain", decimals))
			a.cfg.Blockchain.TokenDecimals = int32(decimals)
		}
	}

	logger.Info("blockchain client initialized",
		zap.Int64("chain_id", a.cfg.Blockchain.ChainID),
		zap.String("contract", a.cfg.Blockchain.ContractAddress),
		zap.Int("rpc_endpoints", len(rpcURLs)))

	return nil
}

// initRepositories 初始化仓储
func (a *App) initRepositories() {
	a.walletRepo = repository.NewWalletRepository(a.db)
	a.auditRepo = repository.NewAuditRepository(a.db)
	a.cursorRepo = repository.NewCursorRepository(a.db)
	a.orderRepo = repository.NewOrderRepository(a.db)
	a.bookingRepo = repository.NewBookingRepository(a.db)
	a.vendorRepo = repository.NewVendorRepository(a.db)
	a.userRepo = repository.NewUserRepository(a.db)

	logger.Info("repositories initialized")
}

// initKafka 初始化 Kafka
func (a *App) initKafka() error {
	if !a.cfg.Kafka.Enabled {
		logger.Info("kafka disabled, events will not be published")
		return nil
	}

	producer, err := kafka.NewProducer(&kafka.ProducerConfig{
		Brokers:  a.cfg.Kafka.Brokers,
		ClientID: a.cfg.Kafka.ClientID,
	})
	if err != nil {
		return fmt.Errorf("failed to create kafka producer: %w", err)
	}
	a.kafkaProducer = producer
	a.eventPublisher = kafka.NewKafkaEventPublisher(producer)

	logger.Info("kafka initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return nil
}

// initServices 初始化服务
func (a *App) initServices() {
	a.custodySvc = service.NewCustodyService(a.walletRepo, a.auditRepo, a.eventPublisher)
	a.custodySvc.SetPaymentChannel(a.chainClient, a.marketplace)

	leaseManager := lock.NewLeaseManager(a.redis, leaseKeyPrefix,
		time.Duration(a.cfg.Sync.LeaseTTL)*time.Second)

	a.reconcilerSvc = service.NewReconcilerService(
		a.chainClient,
		a.logReader,
		a.orderRepo,
		a.bookingRepo,
		a.cursorRepo,
		a.userRepo,
		leaseManager,
		a.eventPublisher,
		&service.ReconcilerConfig{
			Contract:      common.HexToAddress(a.cfg.Blockchain.ContractAddress),
			TokenDecimals: a.cfg.Blockchain.TokenDecimals,
			MaxBlockSpan:  int64(a.cfg.Sync.MaxBlockSpan),
			StartBlock:    a.cfg.Sync.StartBlock,
			PollInterval:  time.Duration(a.cfg.Sync.PollInterval) * time.Second,
		},
	)

	a.allocatorSvc = service.NewAllocatorService(a.vendorRepo, &service.AllocatorConfig{
		PlatformFeeBps: a.cfg.Payment.PlatformFeeBps,
		TokenDecimals:  a.cfg.Blockchain.TokenDecimals,
	})

	logger.Info("services initialized")
}

// redisPinger 适配 go-redis 的 Ping 到健康检查接口
type redisPinger struct {
	client *redis.Client
}

func (p *redisPinger) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.client.Ping(ctx).Err()
}

// chainPinger 适配区块链客户端健康检查
type chainPinger struct {
	client *blockchain.Client
}

func (p *chainPinger) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.client.HealthCheck(ctx)
}

// initHTTP 初始化 HTTP 服务
func (a *App) initHTTP() {
	if a.cfg.Service.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())
	engine.Use(middleware.Metrics())

	// 健康检查
	sqlDB, _ := a.db.DB()
	a.healthHandler = handler.NewHealthHandler(&handler.HealthDeps{
		Postgres: sqlDB,
		Redis:    &redisPinger{client: a.redis},
		Chain:    &chainPinger{client: a.chainClient},
	})
	engine.GET("/health/live", a.healthHandler.Live)
	engine.GET("/health/ready", a.healthHandler.Ready)

	// Prometheus 指标
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	walletHandler := handler.NewWalletHandler(a.custodySvc)
	syncHandler := handler.NewSyncHandler(a.reconcilerSvc)
	allocationHandler := handler.NewAllocationHandler(a.allocatorSvc)

	v1 := engine.Group("/api/v1")
	{
		wallets := v1.Group("/wallets")
		{
			wallets.POST("", walletHandler.CreateWallet)
			wallets.POST("/export", walletHandler.ExportWallet)
			wallets.POST("/rekey", walletHandler.RekeyWallet)
			wallets.POST("/rotate", walletHandler.RotateLegacyWallet)
			wallets.POST("/pay", walletHandler.PayOrder)
			wallets.GET("/:user_id/security", walletHandler.AssessSecurity)
		}

		sync := v1.Group("/sync")
		{
			sync.POST("/trigger", syncHandler.TriggerSync)
			sync.GET("/status", syncHandler.SyncStatus)
		}

		payments := v1.Group("/payments")
		{
			payments.POST("/allocate", allocationHandler.Allocate)
		}
	}

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Service.HTTPPort),
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	logger.Info("http server initialized", zap.Int("port", a.cfg.Service.HTTPPort))
}

// Run 运行应用
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动链上调和
	if err := a.reconcilerSvc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reconciler: %w", err)
	}

	// 启动后台任务
	go a.runBackgroundTasks(ctx)

	// 启动 HTTP 服务器
	go func() {
		logger.Info("http server listening", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	a.healthHandler.SetReady(true)

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-a.stopCh:
		logger.Info("shutdown requested")
	}

	return a.shutdown()
}

// runBackgroundTasks 运行后台任务
func (a *App) runBackgroundTasks(ctx context.Context) {
	// 定时刷新遗留钱包数量指标
	legacyTicker := time.NewTicker(time.Minute)
	defer legacyTicker.Stop()

	a.refreshLegacyGauge(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		case <-legacyTicker.C:
			a.refreshLegacyGauge(ctx)
		}
	}
}

// refreshLegacyGauge 统计待迁移的遗留钱包
func (a *App) refreshLegacyGauge(ctx context.Context) {
	wallets, err := a.walletRepo.ListLegacy(ctx, 1000)
	if err != nil {
		logger.Error("failed to list legacy wallets", zap.Error(err))
		return
	}
	metrics.LegacyWalletsGauge.Set(float64(len(wallets)))

	if len(wallets) > 0 {
		logger.Warn("legacy wallets pending rotation", zap.Int("count", len(wallets)))
	}
}

// shutdown 关闭应用
func (a *App) shutdown() error {
	logger.Info("shutting down...")

	if a.healthHandler != nil {
		a.healthHandler.SetReady(false)
	}

	// 停止链上调和
	if a.reconcilerSvc != nil && a.reconcilerSvc.IsRunning() {
		if err := a.reconcilerSvc.Stop(); err != nil {
			logger.Error("failed to stop reconciler", zap.Error(err))
		}
	}

	// 关闭 HTTP 服务器
	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", zap.Error(err))
		}
	}

	// 关闭 Kafka 生产者
	if a.kafkaProducer != nil {
		a.kafkaProducer.Close()
	}

	// 关闭区块链客户端
	if a.chainClient != nil {
		a.chainClient.Close()
	}

	// 关闭 Redis
	if a.redis != nil {
		a.redis.Close()
	}

	// 关闭数据库
	if a.db != nil {
		sqlDB, _ := a.db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// Stop 停止应用
func (a *App) Stop() {
	close(a.stopCh)
}
