package dto

import "github.com/shopspring/decimal"

// CreateWalletRequest 创建托管钱包请求
type CreateWalletRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	IdentityAttr string `json:"identity_attr" binding:"required"`
	Mnemonic     string `json:"mnemonic"`
}

// ExportWalletRequest 导出钱包请求
type ExportWalletRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	IdentityAttr string `json:"identity_attr" binding:"required"`
}

// RekeyWalletRequest 身份属性变更重加密请求
type RekeyWalletRequest struct {
	UserID          string `json:"user_id" binding:"required"`
	OldIdentityAttr string `json:"old_identity_attr" binding:"required"`
	NewIdentityAttr string `json:"new_identity_attr" binding:"required"`
}

// PayOrderRequest 链上订单支付请求
type PayOrderRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	IdentityAttr string `json:"identity_attr" binding:"required"`
	OrderID      uint64 `json:"order_id" binding:"required"`
	AmountWei    string `json:"amount_wei" binding:"required"` // 最小单位十进制字符串
}

// AllocateItem 分账请求中的购物车项
type AllocateItem struct {
	ListingID     string          `json:"listing_id" binding:"required"`
	VendorID      string          `json:"vendor_id" binding:"required"`
	VendorAddress string          `json:"vendor_address" binding:"required"`
	BookingID     string          `json:"booking_id"`
	Quantity      int             `json:"quantity"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
}

// AllocateRequest 分账请求
type AllocateRequest struct {
	Items []AllocateItem `json:"items" binding:"required,dive"`
}
