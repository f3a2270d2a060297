package model

import "github.com/shopspring/decimal"

// CartItem 购物车项 (结算时逐单计算, 不落库)
type CartItem struct {
	ListingID     string          `json:"listing_id"`
	VendorID      string          `json:"vendor_id"`
	VendorAddress string          `json:"vendor_address"` // 调用方断言的收款地址
	BookingID     string          `json:"booking_id"`
	Quantity      int             `json:"quantity"`
	Amount        decimal.Decimal `json:"amount"`
}

// VendorInstruction 单个商家的支付指令
type VendorInstruction struct {
	VendorID      string          `json:"vendor_id"`
	VendorAddress string          `json:"vendor_address"`
	Amount        decimal.Decimal `json:"amount"`
	BookingIDs    []string        `json:"booking_ids"`
}

// Allocation 购物车分账结果
type Allocation struct {
	Instructions []VendorInstruction `json:"instructions"`
	Subtotal     decimal.Decimal     `json:"subtotal"`
	PlatformFee  decimal.Decimal     `json:"platform_fee"`
	Total        decimal.Decimal     `json:"total"`
	FeeBps       int64               `json:"fee_bps"`
}
