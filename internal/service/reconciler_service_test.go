package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/venu-market/venu-chain/internal/lock"
	"github.com/venu-market/venu-chain/internal/model"
	"github.com/venu-market/venu-chain/internal/repository"
)

var testContract = common.HexToAddress("0x00000000000000000000000000000000000000AA")

// tokens n 个整 token 的定点表示 (18 位精度)
func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// halfToken 0.5 token 的定点表示
func halfToken() *big.Int {
	return new(big.Int).Mul(big.NewInt(5), new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil))
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

type reconcilerFixture struct {
	svc         *ReconcilerService
	head        *mockHeadReader
	events      *mockEventSource
	orderRepo   *mockOrderRepository
	bookingRepo *mockBookingRepository
	cursorRepo  *mockCursorRepository
	userRepo    *mockUserRepository
	publisher   *mockEventPublisher
	redis       *miniredis.Miniredis
}

func newReconcilerFixture(t *testing.T, cfg *ReconcilerConfig) *reconcilerFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	leases := lock.NewLeaseManager(rdb, "venu:lease:", 30*time.Second)

	f := &reconcilerFixture{
		head:        new(mockHeadReader),
		events:      new(mockEventSource),
		orderRepo:   new(mockOrderRepository),
		bookingRepo: new(mockBookingRepository),
		cursorRepo:  new(mockCursorRepository),
		userRepo:    new(mockUserRepository),
		publisher:   new(mockEventPublisher),
		redis:       mr,
	}

	if cfg == nil {
		cfg = &ReconcilerConfig{
			Contract:      testContract,
			TokenDecimals: 18,
			MaxBlockSpan:  5000,
		}
	}

	f.svc = NewReconcilerService(
		f.head, f.events,
		f.orderRepo, f.bookingRepo, f.cursorRepo, f.userRepo,
		leases, f.publisher, cfg,
	)
	return f
}

func orderCreatedFixture(orderID uint64, block int64) *model.OrderCreatedEvent {
	return &model.OrderCreatedEvent{
		EventMeta: model.EventMeta{
			BlockNumber: block,
			TxHash:      "0xdead",
			LogIndex:    0,
		},
		OrderID:     orderID,
		Buyer:       "0x1111111111111111111111111111111111111111",
		TotalAmount: tokens(100),
		PlatformFee: halfToken(),
	}
}

// TestReconcilerService_SyncOnce_OrderCreated 测试订单事件落库
func TestReconcilerService_SyncOnce_OrderCreated(t *testing.T) {
	f := newReconcilerFixture(t, nil)

	f.cursorRepo.On("GetByContract", mock.Anything, testContract.Hex()).
		Return(&model.SyncCursor{ContractAddress: testContract.Hex(), LastProcessedBlock: 99}, nil)
	f.head.On("BlockNumber", mock.Anything).Return(uint64(150), nil)
	f.events.On("FetchOrderCreated", mock.Anything, testContract, int64(100), int64(150)).
		Return([]*model.OrderCreatedEvent{orderCreatedFixture(7, 120)}, nil)
	f.events.On("FetchTicketMinted", mock.Anything, testContract, int64(100), int64(150)).
		Return([]*model.TicketMintedEvent{}, nil)

	f.orderRepo.On("ExistsByTxHash", mock.Anything, "contract_7").Return(false, nil)
	f.userRepo.On("GetByWalletAddress", mock.Anything, "0x1111111111111111111111111111111111111111").
		Return(&model.UserProfile{UserID: "user-1"}, nil)

	var created *model.Order
	f.orderRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Order")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*model.Order)
		}).Return(nil)
	f.publisher.On("PublishOrderSynced", mock.Anything, mock.Anything).Return(nil)
	f.cursorRepo.On("Advance", mock.Anything, testContract.Hex(), int64(150)).Return(nil)

	summary, err := f.svc.SyncOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.OrdersCreated)
	assert.Equal(t, int64(100), summary.FromBlock)
	assert.Equal(t, int64(150), summary.ToBlock)

	require.NotNil(t, created)
	assert.Equal(t, "contract_7", created.TransactionHash)
	assert.Equal(t, "user-1", created.UserID)
	assert.Equal(t, model.OrderStatusConfirmed, created.Status)
	assert.True(t, created.TotalAmount.Equal(decimalFromString(t, "100")))
	assert.True(t, created.PlatformFeeTotal.Equal(decimalFromString(t, "0.5")))

	f.cursorRepo.AssertExpectations(t)
}

// TestReconcilerService_SyncOnce_Idempotent 测试同批次重放为空操作
func TestReconcilerService_SyncOnce_Idempotent(t *testing.T) {
	f := newReconcilerFixture(t, nil)

	f.cursorRepo.On("GetByContract", mock.Anything, testContract.Hex()).
		Return(&model.SyncCursor{LastProcessedBlock: 99}, nil)
	f.head.On("BlockNumber", mock.Anything).Return(uint64(150), nil)
	f.events.On("FetchOrderCreated", mock.Anything, testContract, int64(100), int64(150)).
		Return([]*model.OrderCreatedEvent{orderCreatedFixture(7, 120)}, nil)
	f.events.On("FetchTicketMinted", mock.Anything, testContract, int64(100), int64(150)).
		Return([]*model.TicketMintedEvent{}, nil)

	// 订单已存在: 不再创建
	f.orderRepo.On("ExistsByTxHash", mock.Anything, "contract_7").Return(true, nil)
	f.cursorRepo.On("Advance", mock.Anything, testContract.Hex(), int64(150)).Return(nil)

	summary, err := f.svc.SyncOnce(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.OrdersCreated)
	assert.Equal(t, 1, summary.OrdersSkipped)
	f.orderRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// TestReconcilerService_SyncOnce_TicketMinted 测试铸票事件附加
func TestReconcilerService_SyncOnce_TicketMinted(t *testing.T) {
	f := newReconcilerFixture(t, nil)

	mint := &model.TicketMintedEvent{
		EventMeta: model.EventMeta{BlockNumber: 130},
		TokenID:   big.NewInt(42),
		OrderID:   7,
		Owner:     "0x1111111111111111111111111111111111111111",
	}

	f.cursorRepo.On("GetByContract", mock.Anything, testContract.Hex()).
		Return(&model.SyncCursor{LastProcessedBlock: 99}, nil)
	f.head.On("BlockNumber", mock.Anything).Return(uint64(150), nil)
	f.events.On("FetchOrderCreated", mock.Anything, testContract, int64(100), int64(150)).
		Return([]*model.OrderCreatedEvent{}, nil)
	f.events.On("FetchTicketMinted", mock.Anything, testContract, int64(100), int64(150)).
		Return([]*model.TicketMintedEvent{mint}, nil)

	f.orderRepo.On("GetByTxHash", mock.Anything, "contract_7").
		Return(&model.Order{OrderID: "ord-1"}, nil)
	f.bookingRepo.On("ClaimFirstPending", mock.Anything, "ord-1", testContract.Hex(), "42").
		Return(&model.Booking{BookingID: "bk-1", Status: model.BookingStatusConfirmed}, nil)
	f.cursorRepo.On("Advance", mock.Anything, testContract.Hex(), int64(150)).Return(nil)

	summary, err := f.svc.SyncOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TicketsAttached)
	f.bookingRepo.AssertExpectations(t)
}

// TestReconcilerService_SyncOnce_TicketReplay 测试铸票重放幂等
func TestReconcilerService_SyncOnce_TicketReplay(t *testing.T) {
	f := newReconcilerFixture(t, nil)

	mint := &model.TicketMintedEvent{
		EventMeta: model.EventMeta{BlockNumber: 130},
		TokenID:   big.NewInt(42),
		OrderID:   7,
	}

	f.cursorRepo.On("GetByContract", mock.Anything, testContract.Hex()).
		Return(&model.SyncCursor{LastProcessedBlock: 99}, nil)
	f.head.On("BlockNumber", mock.Anything).Return(uint64(150), nil)
	f.events.On("FetchOrderCreated", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.OrderCreatedEvent{}, nil)
	f.events.On("FetchTicketMinted", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.TicketMintedEvent{mint}, nil)

	f.orderRepo.On("GetByTxHash", mock.Anything, "contract_7").
		Return(&model.Order{OrderID: "ord-1"}, nil)
	// token 已附加过: 即使订单下还有别的 pending 预订也不得二次认领
	f.bookingRepo.On("ClaimFirstPending", mock.Anything, "ord-1", testContract.Hex(), "42").
		Return(nil, repository.ErrTicketAlreadyAttached)
	f.cursorRepo.On("Advance", mock.Anything, testContract.Hex(), int64(150)).Return(nil)

	summary, err := f.svc.SyncOnce(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.TicketsAttached)
	assert.Equal(t, 1, summary.TicketsSkipped)
}

// TestReconcilerService_SyncOnce_TicketAllConfirmed 测试所有预订已确认时铸票跳过
func TestReconcilerService_SyncOnce_TicketAllConfirmed(t *testing.T) {
	f := newReconcilerFixture(t, nil)

	mint := &model.TicketMintedEvent{
		EventMeta: model.EventMeta{BlockNumber: 130},
		TokenID:   big.NewInt(43),
		OrderID:   7,
	}

	f.cursorRepo.On("GetByContract", mock.Anything, testContract.Hex()).
		Return(&model.SyncCursor{LastProcessedBlock: 99}, nil)
	f.head.On("BlockNumber", mock.Anything).Return(uint64(150), nil)
	f.events.On("FetchOrderCreated", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.OrderCreatedEvent{}, nil)
	f.events.On("FetchTicketMinted", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.TicketMintedEvent{mint}, nil)

	f.orderRepo.On("GetByTxHash", mock.Anything, "contract_7").
		Return(&model.Order{OrderID: "ord-1"}, nil)
	f.bookingRepo.On("ClaimFirstPending", mock.Anything, "ord-1", testContract.Hex(), "43").
		Return(nil, repository.ErrNoPendingBooking)
	f.cursorRepo.On("Advance", mock.Anything, testContract.Hex(), int64(150)).Return(nil)

	summary, err := f.svc.SyncOnce(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.TicketsAttached)
	assert.Equal(t, 1, summary.TicketsSkipped)
}

// TestReconcilerService_SyncOnce_CursorSafety 测试失败批次不推进游标
func TestReconcilerService_SyncOnce_CursorSafety(t *testing.T) {
	f := newReconcilerFixture(t, nil)

	f.cursorRepo.On("GetByContract", mock.Anything, testContract.Hex()).
		Return(&model.SyncCursor{LastProcessedBlock: 99}, nil)
	f.head.On("BlockNumber", mock.Anything).Return(uint64(150), nil)
	f.events.On("FetchOrderCreated", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.OrderCreatedEvent{orderCreatedFixture(7, 120)}, nil)
	f.events.On("FetchTicketMinted", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.TicketMintedEvent{}, nil)

	f.orderRepo.On("ExistsByTxHash", mock.Anything, "contract_7").Return(false, nil)
	f.userRepo.On("GetByWalletAddress", mock.Anything, mock.Anything).
		Return(&model.UserProfile{UserID: "user-1"}, nil)
	f.orderRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := f.svc.SyncOnce(context.Background())
	require.Error(t, err)

	f.cursorRepo.AssertNotCalled(t, "Advance", mock.Anything, mock.Anything, mock.Anything)
}

// TestReconcilerService_SyncOnce_LeaseHeld 测试租约互斥
func TestReconcilerService_SyncOnce_LeaseHeld(t *testing.T) {
	f := newReconcilerFixture(t, nil)

	// 预先占住租约
	require.NoError(t, f.redis.Set("venu:lease:reconciler:"+testContract.Hex(), "other-instance"))

	_, err := f.svc.SyncOnce(context.Background())
	assert.ErrorIs(t, err, ErrSyncSkipped)
	f.head.AssertNotCalled(t, "BlockNumber", mock.Anything)
}

// TestReconcilerService_SyncOnce_MaxBlockSpan 测试批次区块上限
func TestReconcilerService_SyncOnce_MaxBlockSpan(t *testing.T) {
	f := newReconcilerFixture(t, &ReconcilerConfig{
		Contract:      testContract,
		TokenDecimals: 18,
		MaxBlockSpan:  100,
	})

	f.cursorRepo.On("GetByContract", mock.Anything, testContract.Hex()).
		Return(&model.SyncCursor{LastProcessedBlock: 0}, nil)
	f.head.On("BlockNumber", mock.Anything).Return(uint64(10000), nil)
	f.events.On("FetchOrderCreated", mock.Anything, testContract, int64(1), int64(100)).
		Return([]*model.OrderCreatedEvent{}, nil)
	f.events.On("FetchTicketMinted", mock.Anything, testContract, int64(1), int64(100)).
		Return([]*model.TicketMintedEvent{}, nil)
	f.cursorRepo.On("Advance", mock.Anything, testContract.Hex(), int64(100)).Return(nil)

	summary, err := f.svc.SyncOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.FromBlock)
	assert.Equal(t, int64(100), summary.ToBlock)
	f.events.AssertExpectations(t)
}

// TestReconcilerService_SyncOnce_NothingNew 测试无新区块
func TestReconcilerService_SyncOnce_NothingNew(t *testing.T) {
	f := newReconcilerFixture(t, nil)

	f.cursorRepo.On("GetByContract", mock.Anything, testContract.Hex()).
		Return(&model.SyncCursor{LastProcessedBlock: 150}, nil)
	f.head.On("BlockNumber", mock.Anything).Return(uint64(150), nil)

	summary, err := f.svc.SyncOnce(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.OrdersCreated)
	f.events.AssertNotCalled(t, "FetchOrderCreated", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.cursorRepo.AssertNotCalled(t, "Advance", mock.Anything, mock.Anything, mock.Anything)
}

// TestReconcilerService_SyncOnce_MissingCursor 测试首次同步从起始区块开始
func TestReconcilerService_SyncOnce_MissingCursor(t *testing.T) {
	f := newReconcilerFixture(t, &ReconcilerConfig{
		Contract:      testContract,
		TokenDecimals: 18,
		MaxBlockSpan:  5000,
		StartBlock:    500,
	})

	f.cursorRepo.On("GetByContract", mock.Anything, testContract.Hex()).
		Return(nil, repository.ErrCursorNotFound)
	f.head.On("BlockNumber", mock.Anything).Return(uint64(600), nil)
	f.events.On("FetchOrderCreated", mock.Anything, testContract, int64(500), int64(600)).
		Return([]*model.OrderCreatedEvent{}, nil)
	f.events.On("FetchTicketMinted", mock.Anything, testContract, int64(500), int64(600)).
		Return([]*model.TicketMintedEvent{}, nil)
	f.cursorRepo.On("Advance", mock.Anything, testContract.Hex(), int64(600)).Return(nil)

	_, err := f.svc.SyncOnce(context.Background())
	require.NoError(t, err)
	f.events.AssertExpectations(t)
}

// TestReconcilerService_SyncOnce_UnresolvableBuyer 测试买家地址无法解析
func TestReconcilerService_SyncOnce_UnresolvableBuyer(t *testing.T) {
	f := newReconcilerFixture(t, nil)

	f.cursorRepo.On("GetByContract", mock.Anything, testContract.Hex()).
		Return(&model.SyncCursor{LastProcessedBlock: 99}, nil)
	f.head.On("BlockNumber", mock.Anything).Return(uint64(150), nil)
	f.events.On("FetchOrderCreated", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.OrderCreatedEvent{orderCreatedFixture(7, 120)}, nil)
	f.events.On("FetchTicketMinted", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.TicketMintedEvent{}, nil)

	f.orderRepo.On("ExistsByTxHash", mock.Anything, "contract_7").Return(false, nil)
	f.userRepo.On("GetByWalletAddress", mock.Anything, mock.Anything).
		Return(nil, repository.ErrUserNotFound)
	f.cursorRepo.On("Advance", mock.Anything, testContract.Hex(), int64(150)).Return(nil)

	summary, err := f.svc.SyncOnce(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.OrdersCreated)
	assert.Equal(t, 1, summary.OrdersSkipped)
	f.orderRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// TestReconcilerService_StartStop 测试启动停止
func TestReconcilerService_StartStop(t *testing.T) {
	f := newReconcilerFixture(t, &ReconcilerConfig{
		Contract:     testContract,
		PollInterval: time.Hour,
	})

	require.NoError(t, f.svc.Start(context.Background()))
	assert.True(t, f.svc.IsRunning())
	assert.ErrorIs(t, f.svc.Start(context.Background()), ErrReconcilerAlreadyRunning)

	require.NoError(t, f.svc.Stop())
	assert.False(t, f.svc.IsRunning())
	assert.ErrorIs(t, f.svc.Stop(), ErrReconcilerNotRunning)
}

// TestReconcilerService_SyncOnce_RecordsStatus 测试手动触发也计入状态查询
func TestReconcilerService_SyncOnce_RecordsStatus(t *testing.T) {
	f := newReconcilerFixture(t, nil)

	f.cursorRepo.On("GetByContract", mock.Anything, testContract.Hex()).
		Return(&model.SyncCursor{LastProcessedBlock: 99}, nil)
	f.head.On("BlockNumber", mock.Anything).Return(uint64(150), nil)
	f.events.On("FetchOrderCreated", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.OrderCreatedEvent{}, nil)
	f.events.On("FetchTicketMinted", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*model.TicketMintedEvent{}, nil)
	f.cursorRepo.On("Advance", mock.Anything, testContract.Hex(), int64(150)).Return(nil)

	summary, err := f.svc.SyncOnce(context.Background())
	require.NoError(t, err)

	lastSync, lastErr := f.svc.LastSync()
	assert.Equal(t, summary, lastSync)
	assert.Empty(t, lastErr)
}

// TestReconcilerService_SyncOnce_RecordsFailure 测试失败轮次记入状态查询
func TestReconcilerService_SyncOnce_RecordsFailure(t *testing.T) {
	f := newReconcilerFixture(t, nil)

	f.cursorRepo.On("GetByContract", mock.Anything, testContract.Hex()).
		Return(nil, errors.New("db down"))

	_, err := f.svc.SyncOnce(context.Background())
	require.Error(t, err)

	lastSync, lastErr := f.svc.LastSync()
	assert.Nil(t, lastSync)
	assert.Contains(t, lastErr, "db down")
}
