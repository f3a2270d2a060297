package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/venu-market/venu-chain/internal/metrics"
	"github.com/venu-market/venu-chain/internal/model"
	"github.com/venu-market/venu-chain/internal/repository"
)

var (
	// ErrEmptyCart 购物车为空
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidAmount 金额非正
	ErrInvalidAmount = errors.New("cart item amount must be positive")
	// ErrVendorIneligible 商家不满足收款条件
	ErrVendorIneligible = errors.New("vendor not eligible for payment")
)

// AllocatorService 多商家支付分账服务
//
// 结算前逐单计算, 不落库。任一商家不合格则整单失败,
// 绝不生成部分可支付的指令集。
type AllocatorService struct {
	vendorRepo repository.VendorRepository

	feeBps        int64
	tokenDecimals int32
}

// AllocatorConfig 分账服务配置
type AllocatorConfig struct {
	PlatformFeeBps int64
	TokenDecimals  int32
}

// NewAllocatorService 创建分账服务
func NewAllocatorService(vendorRepo repository.VendorRepository, cfg *AllocatorConfig) *AllocatorService {
	tokenDecimals := cfg.TokenDecimals
	if tokenDecimals == 0 {
		tokenDecimals = 18
	}

	return &AllocatorService{
		vendorRepo:    vendorRepo,
		feeBps:        cfg.PlatformFeeBps,
		tokenDecimals: tokenDecimals,
	}
}

// Allocate 计算购物车的商家分账与平台费
//
// 每个商家通过三重检查: 已认证、收款地址格式合法、
// 调用方断言的地址与档案地址一致。平台费按 bps 计算并向下取整,
// 买家承担: total = subtotal + fee。
func (s *AllocatorService) Allocate(ctx context.Context, items []model.CartItem) (*model.Allocation, error) {
	if len(items) == 0 {
		metrics.RecordAllocation("invalid_input", 0)
		return nil, ErrEmptyCart
	}

	// 按商家聚合, 保持首次出现顺序
	var vendorOrder []string
	grouped := make(map[string]*model.VendorInstruction)
	asserted := make(map[string]string)
	subtotal := decimal.Zero

	for _, item := range items {
		if !item.Amount.IsPositive() {
			metrics.RecordAllocation("invalid_input", 0)
			return nil, fmt.Errorf("%w: listing %s", ErrInvalidAmount, item.ListingID)
		}

		instruction, ok := grouped[item.VendorID]
		if !ok {
			instruction = &model.VendorInstruction{
				VendorID: item.VendorID,
				Amount:   decimal.Zero,
			}
			grouped[item.VendorID] = instruction
			asserted[item.VendorID] = item.VendorAddress
			vendorOrder = append(vendorOrder, item.VendorID)
		}

		instruction.Amount = instruction.Amount.Add(item.Amount)
		if item.BookingID != "" {
			instruction.BookingIDs = append(instruction.BookingIDs, item.BookingID)
		}
		subtotal = subtotal.Add(item.Amount)
	}

	vendors, err := s.vendorRepo.GetByVendorIDs(ctx, vendorOrder)
	if err != nil {
		return nil, err
	}

	for _, vendorID := range vendorOrder {
		vendor, ok := vendors[vendorID]
		if !ok {
			metrics.RecordAllocation("vendor_ineligible", 0)
			return nil, fmt.Errorf("%w: vendor %s not found", ErrVendorIneligible, vendorID)
		}
		if err := s.checkVendor(vendor, asserted[vendorID]); err != nil {
			metrics.RecordAllocation("vendor_ineligible", 0)
			return nil, err
		}
		grouped[vendorID].VendorAddress = vendor.WalletAddress
	}

	instructions := make([]model.VendorInstruction, 0, len(vendorOrder))
	for _, vendorID := range vendorOrder {
		instructions = append(instructions, *grouped[vendorID])
	}

	fee := s.platformFee(subtotal)

	metrics.RecordAllocation("success", len(vendorOrder))

	return &model.Allocation{
		Instructions: instructions,
		Subtotal:     subtotal,
		PlatformFee:  fee,
		Total:        subtotal.Add(fee),
		FeeBps:       s.feeBps,
	}, nil
}

// checkVendor 商家三重收款检查
func (s *AllocatorService) checkVendor(vendor *model.Vendor, assertedAddress string) error {
	if !vendor.Verified {
		return fmt.Errorf("%w: vendor %s is not verified", ErrVendorIneligible, vendor.VendorID)
	}
	if !common.IsHexAddress(vendor.WalletAddress) {
		return fmt.Errorf("%w: vendor %s has no valid wallet address", ErrVendorIneligible, vendor.VendorID)
	}
	if !strings.EqualFold(vendor.WalletAddress, assertedAddress) {
		return fmt.Errorf("%w: vendor %s address mismatch", ErrVendorIneligible, vendor.VendorID)
	}
	return nil
}

// platformFee 平台费 = floor(subtotal * bps / 10000), 在 token 精度内向下取整
// 除以 10000 用 Shift(-4) 精确表示, Div 的默认精度会在第 16 位提前舍入
func (s *AllocatorService) platformFee(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.
		Mul(decimal.NewFromInt(s.feeBps)).
		Shift(-4).
		RoundFloor(s.tokenDecimals)
}
