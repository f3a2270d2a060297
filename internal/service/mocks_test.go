package service

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"

	"github.com/venu-market/venu-chain/internal/kafka"
	"github.com/venu-market/venu-chain/internal/model"
	"github.com/venu-market/venu-chain/internal/repository"
)

// mockWalletRepository 模拟托管钱包仓储
type mockWalletRepository struct {
	mock.Mock
}

func (m *mockWalletRepository) Create(ctx context.Context, wallet *model.CustodialWallet) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}

func (m *mockWalletRepository) GetByUserID(ctx context.Context, userID string) (*model.CustodialWallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CustodialWallet), args.Error(1)
}

func (m *mockWalletRepository) GetByAddress(ctx context.Context, address string) (*model.CustodialWallet, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CustodialWallet), args.Error(1)
}

func (m *mockWalletRepository) ExistsByAddress(ctx context.Context, address string) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

func (m *mockWalletRepository) ReplaceEncryption(ctx context.Context, wallet *model.CustodialWallet) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}

func (m *mockWalletRepository) ListLegacy(ctx context.Context, limit int) ([]*model.CustodialWallet, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.CustodialWallet), args.Error(1)
}

// mockAuditRepository 模拟审计日志仓储
type mockAuditRepository struct {
	mock.Mock
}

func (m *mockAuditRepository) Create(ctx context.Context, entry *model.WalletAuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockAuditRepository) ListByUser(ctx context.Context, userID string, page *repository.Pagination) ([]*model.WalletAuditLog, error) {
	args := m.Called(ctx, userID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.WalletAuditLog), args.Error(1)
}

// mockOrderRepository 模拟订单仓储
type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) CreateWithItems(ctx context.Context, order *model.Order, items []*model.OrderItem) error {
	args := m.Called(ctx, order, items)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *mockOrderRepository) GetByTxHash(ctx context.Context, txHash string) (*model.Order, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID string, page *repository.Pagination) ([]*model.Order, error) {
	args := m.Called(ctx, userID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Order), args.Error(1)
}

func (m *mockOrderRepository) ExistsByTxHash(ctx context.Context, txHash string) (bool, error) {
	args := m.Called(ctx, txHash)
	return args.Bool(0), args.Error(1)
}

// mockBookingRepository 模拟预订仓储
type mockBookingRepository struct {
	mock.Mock
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *mockBookingRepository) GetByBookingID(ctx context.Context, bookingID string) (*model.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *mockBookingRepository) ListByOrder(ctx context.Context, orderID string) ([]*model.Booking, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Booking), args.Error(1)
}

func (m *mockBookingRepository) ClaimFirstPending(ctx context.Context, orderID, nftContract, nftTokenID string) (*model.Booking, error) {
	args := m.Called(ctx, orderID, nftContract, nftTokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

// mockCursorRepository 模拟同步游标仓储
type mockCursorRepository struct {
	mock.Mock
}

func (m *mockCursorRepository) GetByContract(ctx context.Context, contractAddress string) (*model.SyncCursor, error) {
	args := m.Called(ctx, contractAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SyncCursor), args.Error(1)
}

func (m *mockCursorRepository) Advance(ctx context.Context, contractAddress string, blockNumber int64) error {
	args := m.Called(ctx, contractAddress, blockNumber)
	return args.Error(0)
}

// mockUserRepository 模拟用户档案仓储
type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) GetByUserID(ctx context.Context, userID string) (*model.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserProfile), args.Error(1)
}

func (m *mockUserRepository) GetByWalletAddress(ctx context.Context, address string) (*model.UserProfile, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserProfile), args.Error(1)
}

// mockVendorRepository 模拟商家仓储
type mockVendorRepository struct {
	mock.Mock
}

func (m *mockVendorRepository) GetByVendorID(ctx context.Context, vendorID string) (*model.Vendor, error) {
	args := m.Called(ctx, vendorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Vendor), args.Error(1)
}

func (m *mockVendorRepository) GetByVendorIDs(ctx context.Context, vendorIDs []string) (map[string]*model.Vendor, error) {
	args := m.Called(ctx, vendorIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*model.Vendor), args.Error(1)
}

// mockEventPublisher 模拟事件发布器
type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishWalletAudit(ctx context.Context, msg *kafka.WalletAuditMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishOrderSynced(ctx context.Context, msg *kafka.OrderSyncedMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// mockHeadReader 模拟链头读取
type mockHeadReader struct {
	mock.Mock
}

func (m *mockHeadReader) BlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

// mockEventSource 模拟事件来源
type mockEventSource struct {
	mock.Mock
}

func (m *mockEventSource) FetchOrderCreated(ctx context.Context, contract common.Address, fromBlock, toBlock int64) ([]*model.OrderCreatedEvent, error) {
	args := m.Called(ctx, contract, fromBlock, toBlock)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.OrderCreatedEvent), args.Error(1)
}

func (m *mockEventSource) FetchTicketMinted(ctx context.Context, contract common.Address, fromBlock, toBlock int64) ([]*model.TicketMintedEvent, error) {
	args := m.Called(ctx, contract, fromBlock, toBlock)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.TicketMintedEvent), args.Error(1)
}

// mockChainSender 模拟链上支付提交
type mockChainSender struct {
	mock.Mock
}

func (m *mockChainSender) SendPayment(ctx context.Context, key *ecdsa.PrivateKey, from, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	args := m.Called(ctx, key, from, to, value, data)
	return args.Get(0).(common.Hash), args.Error(1)
}
