package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusFailed    OrderStatus = "failed"
)

// ChainTxHashPrefix 链上派生订单的合成交易哈希前缀
const ChainTxHashPrefix = "contract_"

// ChainOrderTxHash 计算链上订单的合成幂等键 contract_<onChainOrderID>
func ChainOrderTxHash(onChainOrderID uint64) string {
	return fmt.Sprintf("%s%d", ChainTxHashPrefix, onChainOrderID)
}

// Order 订单
//
// 链上派生订单的 transaction_hash 为合成键 contract_<orderId>, 作为幂等键使用。
type Order struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID          string          `gorm:"column:order_id;type:varchar(64);uniqueIndex;not null" json:"order_id"`
	UserID           string          `gorm:"column:user_id;type:varchar(64);index;not null" json:"user_id"`
	TransactionHash  string          `gorm:"column:transaction_hash;type:varchar(80);uniqueIndex;not null" json:"transaction_hash"`
	TotalAmount      decimal.Decimal `gorm:"column:total_amount;type:decimal(36,18);not null" json:"total_amount"`
	PlatformFeeTotal decimal.Decimal `gorm:"column:platform_fee_total;type:decimal(36,18);not null" json:"platform_fee_total"`
	Status           OrderStatus     `gorm:"column:status;type:varchar(20);index;not null;default:'pending'" json:"status"`
	CreatedAt        int64           `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt        int64           `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (Order) TableName() string {
	return "orders"
}

// OrderItem 订单项
type OrderItem struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   string          `gorm:"column:order_id;type:varchar(64);index;not null" json:"order_id"`
	VendorID  string          `gorm:"column:vendor_id;type:varchar(64);index;not null" json:"vendor_id"`
	ListingID string          `gorm:"column:listing_id;type:varchar(64);not null" json:"listing_id"`
	Quantity  int             `gorm:"column:quantity;type:int;not null;default:1" json:"quantity"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(36,18);not null" json:"amount"`
	CreatedAt int64           `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
}

// TableName 返回表名
func (OrderItem) TableName() string {
	return "order_items"
}

// BookingStatus 预订状态
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking 预订
//
// NFT 票据字段只由铸造事件填充一次, 且仅作用于 pending 状态的预订。
// booking_seq 为订单内创建顺序, 铸造事件按该顺序关联。
type Booking struct {
	ID                 int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID          string        `gorm:"column:booking_id;type:varchar(64);uniqueIndex;not null" json:"booking_id"`
	OrderID            string        `gorm:"column:order_id;type:varchar(64);index;not null" json:"order_id"`
	VendorID           string        `gorm:"column:vendor_id;type:varchar(64);index;not null" json:"vendor_id"`
	BookingSeq         int           `gorm:"column:booking_seq;type:int;not null;default:0" json:"booking_seq"`
	Status             BookingStatus `gorm:"column:status;type:varchar(20);index;not null;default:'pending'" json:"status"`
	NFTContractAddress string        `gorm:"column:nft_contract_address;type:varchar(42)" json:"nft_contract_address"`
	NFTTokenID         string        `gorm:"column:nft_token_id;type:varchar(78)" json:"nft_token_id"`
	CreatedAt          int64         `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt          int64         `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (Booking) TableName() string {
	return "bookings"
}
