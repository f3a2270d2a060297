package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/venu-market/venu-chain/internal/kafka"
	"github.com/venu-market/venu-chain/internal/lock"
	"github.com/venu-market/venu-chain/internal/logger"
	"github.com/venu-market/venu-chain/internal/metrics"
	"github.com/venu-market/venu-chain/internal/model"
	"github.com/venu-market/venu-chain/internal/repository"
)

var (
	ErrReconcilerAlreadyRunning = errors.New("reconciler already running")
	ErrReconcilerNotRunning     = errors.New("reconciler not running")
	// ErrSyncSkipped 本轮同步被其他实例持有租约, 已跳过
	ErrSyncSkipped = errors.New("sync skipped, lease held by another instance")
)

// syncLeaseKey 同步租约键
const syncLeaseKey = "reconciler"

// HeadReader 链头读取
type HeadReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// EventSource 事件来源
type EventSource interface {
	FetchOrderCreated(ctx context.Context, contract common.Address, fromBlock, toBlock int64) ([]*model.OrderCreatedEvent, error)
	FetchTicketMinted(ctx context.Context, contract common.Address, fromBlock, toBlock int64) ([]*model.TicketMintedEvent, error)
}

// SyncSummary 单轮同步结果
type SyncSummary struct {
	FromBlock       int64 `json:"from_block"`
	ToBlock         int64 `json:"to_block"`
	OrdersCreated   int   `json:"orders_created"`
	OrdersSkipped   int   `json:"orders_skipped"`
	TicketsAttached int   `json:"tickets_attached"`
	TicketsSkipped  int   `json:"tickets_skipped"`
	DurationMs      int64 `json:"duration_ms"`
}

// ReconcilerService 链上事件调和服务
//
// 周期性将合约事件调和进订单/预订表。全流程幂等:
// 订单以合成交易哈希 contract_<orderId> 判重, 票据以 token 判重后附加到 pending 预订。
// 游标只在整批事件全部落库后推进, 失败批次下一轮整体重放。
type ReconcilerService struct {
	head        HeadReader
	events      EventSource
	orderRepo   repository.OrderRepository
	bookingRepo repository.BookingRepository
	cursorRepo  repository.CursorRepository
	userRepo    repository.UserRepository
	leases      *lock.LeaseManager
	publisher   kafka.EventPublisher

	// 配置
	contract      common.Address
	tokenDecimals int32
	maxBlockSpan  int64
	startBlock    int64
	pollInterval  time.Duration

	// 运行状态
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	lastSync *SyncSummary
	lastErr  string
}

// ReconcilerConfig 调和服务配置
type ReconcilerConfig struct {
	Contract      common.Address
	TokenDecimals int32
	MaxBlockSpan  int64
	StartBlock    int64
	PollInterval  time.Duration
}

// NewReconcilerService 创建调和服务
func NewReconcilerService(
	head HeadReader,
	events EventSource,
	orderRepo repository.OrderRepository,
	bookingRepo repository.BookingRepository,
	cursorRepo repository.CursorRepository,
	userRepo repository.UserRepository,
	leases *lock.LeaseManager,
	publisher kafka.EventPublisher,
	cfg *ReconcilerConfig,
) *ReconcilerService {
	maxBlockSpan := cfg.MaxBlockSpan
	if maxBlockSpan == 0 {
		maxBlockSpan = 5000
	}

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 15 * time.Second
	}

	return &ReconcilerService{
		head:          head,
		events:        events,
		orderRepo:     orderRepo,
		bookingRepo:   bookingRepo,
		cursorRepo:    cursorRepo,
		userRepo:      userRepo,
		leases:        leases,
		publisher:     publisher,
		contract:      cfg.Contract,
		tokenDecimals: cfg.TokenDecimals,
		maxBlockSpan:  maxBlockSpan,
		startBlock:    cfg.StartBlock,
		pollInterval:  pollInterval,
	}
}

// Start 启动周期同步
func (s *ReconcilerService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrReconcilerAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	logger.Info("reconciler starting",
		zap.String("contract", s.contract.Hex()),
		zap.Duration("poll_interval", s.pollInterval))

	go s.runLoop(ctx)

	return nil
}

// Stop 停止周期同步
func (s *ReconcilerService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrReconcilerNotRunning
	}

	close(s.stopCh)
	s.running = false

	logger.Info("reconciler stopped")

	return nil
}

// IsRunning 是否运行中
func (s *ReconcilerService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// LastSync 最近一轮同步结果
func (s *ReconcilerService) LastSync() (*SyncSummary, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync, s.lastErr
}

// runLoop 主循环
func (s *ReconcilerService) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := s.SyncOnce(ctx)

			switch {
			case errors.Is(err, ErrSyncSkipped):
				metrics.RecordSyncRound("skipped", 0)
				logger.Debug("sync round skipped, lease held elsewhere")
			case err != nil:
				metrics.RecordSyncRound("failed", 0)
				logger.Error("sync round failed", zap.Error(err))
			}
		}
	}
}

// SyncOnce 执行一轮同步
//
// 租约被其他实例持有时返回 ErrSyncSkipped。
// 周期触发和手动触发共用此入口, 状态查询两者都计入。
func (s *ReconcilerService) SyncOnce(ctx context.Context) (*SyncSummary, error) {
	var summary *SyncSummary

	err := s.leases.WithLease(ctx, syncLeaseKey+":"+s.contract.Hex(), func(ctx context.Context) error {
		var err error
		summary, err = s.syncBatch(ctx)
		return err
	})
	if errors.Is(err, lock.ErrLeaseHeld) {
		return nil, ErrSyncSkipped
	}

	s.mu.Lock()
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastSync = summary
		s.lastErr = ""
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return summary, nil
}

// syncBatch 同步一个区块批次
func (s *ReconcilerService) syncBatch(ctx context.Context) (*SyncSummary, error) {
	start := time.Now()

	fromBlock, err := s.nextFromBlock(ctx)
	if err != nil {
		return nil, err
	}

	head, err := s.head.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain head: %w", err)
	}

	toBlock := int64(head)
	if toBlock-fromBlock+1 > s.maxBlockSpan {
		toBlock = fromBlock + s.maxBlockSpan - 1
	}

	summary := &SyncSummary{FromBlock: fromBlock, ToBlock: toBlock}
	if fromBlock > toBlock {
		summary.ToBlock = fromBlock - 1
		summary.DurationMs = time.Since(start).Milliseconds()
		return summary, nil
	}

	// 取回失败视为暂时性故障, 整批下一轮重试; 畸形日志由读取器跳过
	orderEvents, err := s.events.FetchOrderCreated(ctx, s.contract, fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("fetch OrderCreated events: %w", err)
	}

	mintEvents, err := s.events.FetchTicketMinted(ctx, s.contract, fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("fetch TicketMinted events: %w", err)
	}

	// 先订单后铸票: 同批内铸票依赖订单已落库
	for _, event := range orderEvents {
		created, err := s.applyOrderCreated(ctx, event)
		if err != nil {
			return nil, fmt.Errorf("apply OrderCreated at block %d: %w", event.BlockNumber, err)
		}
		if created {
			summary.OrdersCreated++
		} else {
			summary.OrdersSkipped++
		}
		metrics.RecordEventApplied("order_created", created)
	}

	for _, event := range mintEvents {
		attached, err := s.applyTicketMinted(ctx, event)
		if err != nil {
			return nil, fmt.Errorf("apply TicketMinted at block %d: %w", event.BlockNumber, err)
		}
		if attached {
			summary.TicketsAttached++
		} else {
			summary.TicketsSkipped++
		}
		metrics.RecordEventApplied("ticket_minted", attached)
	}

	// 整批成功后才推进游标, 失败批次整体重放
	if err := s.cursorRepo.Advance(ctx, s.contract.Hex(), toBlock); err != nil {
		return nil, fmt.Errorf("advance cursor: %w", err)
	}

	summary.DurationMs = time.Since(start).Milliseconds()

	metrics.UpdateSyncProgress(toBlock, int64(head))
	result := "empty"
	if summary.OrdersCreated > 0 || summary.TicketsAttached > 0 {
		result = "applied"
	}
	metrics.RecordSyncRound(result, float64(summary.DurationMs)/1000)

	if summary.OrdersCreated > 0 || summary.TicketsAttached > 0 {
		logger.Info("sync batch applied",
			zap.Int64("from_block", fromBlock),
			zap.Int64("to_block", toBlock),
			zap.Int("orders_created", summary.OrdersCreated),
			zap.Int("tickets_attached", summary.TicketsAttached))
	}

	return summary, nil
}

// nextFromBlock 计算本批起始区块
func (s *ReconcilerService) nextFromBlock(ctx context.Context) (int64, error) {
	cursor, err := s.cursorRepo.GetByContract(ctx, s.contract.Hex())
	if err != nil {
		if errors.Is(err, repository.ErrCursorNotFound) {
			return s.startBlock, nil
		}
		return 0, fmt.Errorf("read sync cursor: %w", err)
	}
	return cursor.LastProcessedBlock + 1, nil
}

// applyOrderCreated 落库单个订单事件, 返回是否新建
func (s *ReconcilerService) applyOrderCreated(ctx context.Context, event *model.OrderCreatedEvent) (bool, error) {
	txHash := model.ChainOrderTxHash(event.OrderID)

	exists, err := s.orderRepo.ExistsByTxHash(ctx, txHash)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	// 买家地址必须能解析为平台用户, 解析不到的订单跳过并告警
	buyer, err := s.userRepo.GetByWalletAddress(ctx, event.Buyer)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logger.Warn("buyer address not resolvable, order skipped",
				zap.String("buyer", event.Buyer),
				zap.Uint64("on_chain_order_id", event.OrderID))
			return false, nil
		}
		return false, err
	}

	now := time.Now().UnixMilli()
	order := &model.Order{
		OrderID:          uuid.New().String(),
		UserID:           buyer.UserID,
		TransactionHash:  txHash,
		TotalAmount:      decimal.NewFromBigInt(event.TotalAmount, -s.tokenDecimals),
		PlatformFeeTotal: decimal.NewFromBigInt(event.PlatformFee, -s.tokenDecimals),
		Status:           model.OrderStatusConfirmed,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		// 并发调和器先落了同一事件
		if errors.Is(err, repository.ErrDuplicateOrder) {
			return false, nil
		}
		return false, err
	}

	s.publishOrderSynced(ctx, order, event, buyer.UserID)

	return true, nil
}

// applyTicketMinted 将票据附加到订单下第一个 pending 预订, 返回是否附加
func (s *ReconcilerService) applyTicketMinted(ctx context.Context, event *model.TicketMintedEvent) (bool, error) {
	order, err := s.orderRepo.GetByTxHash(ctx, model.ChainOrderTxHash(event.OrderID))
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			logger.Warn("ticket minted for unknown order, skipped",
				zap.Uint64("on_chain_order_id", event.OrderID),
				zap.String("token_id", event.TokenID.String()))
			return false, nil
		}
		return false, err
	}

	_, err = s.bookingRepo.ClaimFirstPending(ctx, order.OrderID, s.contract.Hex(), event.TokenID.String())
	if err != nil {
		// token 已附加过 (批次重放) 或没有 pending 预订可认领: 幂等跳过
		if errors.Is(err, repository.ErrTicketAlreadyAttached) ||
			errors.Is(err, repository.ErrNoPendingBooking) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// publishOrderSynced 发送订单落库确认, 失败只记日志
func (s *ReconcilerService) publishOrderSynced(ctx context.Context, order *model.Order, event *model.OrderCreatedEvent, buyerUserID string) {
	if s.publisher == nil {
		return
	}

	msg := &kafka.OrderSyncedMessage{
		OrderID:       order.OrderID,
		OnChainID:     event.OrderID,
		TxHash:        order.TransactionHash,
		BlockNumber:   event.BlockNumber,
		BuyerUserID:   buyerUserID,
		TotalAmount:   order.TotalAmount.String(),
		PlatformFee:   order.PlatformFeeTotal.String(),
		SyncedAtMilli: time.Now().UnixMilli(),
	}
	if err := s.publisher.PublishOrderSynced(ctx, msg); err != nil {
		logger.Warn("failed to publish order synced message",
			zap.String("order_id", order.OrderID),
			zap.Error(err))
	}
}
