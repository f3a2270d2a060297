package model

import "math/big"

// ChainEventKind 链上事件类型
type ChainEventKind string

const (
	ChainEventKindOrderCreated ChainEventKind = "OrderCreated"
	ChainEventKindTicketMinted ChainEventKind = "TicketMinted"
)

// EventMeta 事件元信息 (来源区块与交易)
type EventMeta struct {
	BlockNumber int64  `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    int    `json:"log_index"`
}

// OrderCreatedEvent OrderCreated(orderId, buyer, totalAmount, platformFee)
//
// 金额为合约定点整数表示, 由调和器按 token 精度转换为 decimal。
type OrderCreatedEvent struct {
	EventMeta
	OrderID     uint64   `json:"order_id"`
	Buyer       string   `json:"buyer"`
	TotalAmount *big.Int `json:"total_amount"`
	PlatformFee *big.Int `json:"platform_fee"`
}

// Kind 返回事件类型
func (OrderCreatedEvent) Kind() ChainEventKind { return ChainEventKindOrderCreated }

// TicketMintedEvent TicketMinted(tokenId, orderId, owner)
type TicketMintedEvent struct {
	EventMeta
	TokenID *big.Int `json:"token_id"`
	OrderID uint64   `json:"order_id"`
	Owner   string   `json:"owner"`
}

// Kind 返回事件类型
func (TicketMintedEvent) Kind() ChainEventKind { return ChainEventKindTicketMinted }
