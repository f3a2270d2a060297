// Package contract 提供市场合约与 ERC20 的 ABI 编解码
package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrEmptyResult = errors.New("empty contract call result")
)

// MarketplaceABI 市场合约的最小 ABI
//
// 事件签名与链上日志解码保持一致, payOrder 用于买家支付。
const MarketplaceABI = `[
	{
		"type": "function",
		"name": "payOrder",
		"inputs": [{"name": "orderId", "type": "uint256"}],
		"outputs": [],
		"stateMutability": "payable"
	},
	{
		"type": "event",
		"name": "OrderCreated",
		"inputs": [
			{"name": "orderId", "type": "uint256", "indexed": true},
			{"name": "buyer", "type": "address", "indexed": true},
			{"name": "totalAmount", "type": "uint256", "indexed": false},
			{"name": "platformFee", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "TicketMinted",
		"inputs": [
			{"name": "tokenId", "type": "uint256", "indexed": true},
			{"name": "orderId", "type": "uint256", "indexed": true},
			{"name": "owner", "type": "address", "indexed": true}
		]
	}
]`

// ERC20ABI ERC20 只读查询的最小 ABI
const ERC20ABI = `[
	{
		"type": "function",
		"name": "decimals",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint8"}],
		"stateMutability": "view"
	},
	{
		"type": "function",
		"name": "symbol",
		"inputs": [],
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view"
	}
]`

// Caller 合约只读调用方
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Marketplace 市场合约绑定
type Marketplace struct {
	address common.Address
	abi     abi.ABI
	erc20   abi.ABI
	caller  Caller
}

// NewMarketplace 创建市场合约绑定
func NewMarketplace(address common.Address, caller Caller) (*Marketplace, error) {
	parsed, err := abi.JSON(strings.NewReader(MarketplaceABI))
	if err != nil {
		return nil, fmt.Errorf("parse marketplace abi: %w", err)
	}

	erc20, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	return &Marketplace{
		address: address,
		abi:     parsed,
		erc20:   erc20,
		caller:  caller,
	}, nil
}

// Address 返回合约地址
func (m *Marketplace) Address() common.Address {
	return m.address
}

// PayOrderData 构造 payOrder 调用数据
func (m *Marketplace) PayOrderData(orderID uint64) ([]byte, error) {
	return m.abi.Pack("payOrder", new(big.Int).SetUint64(orderID))
}

// TokenDecimals 读取支付代币的小数位
func (m *Marketplace) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	input, err := m.erc20.Pack("decimals")
	if err != nil {
		return 0, err
	}

	output, err := m.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return 0, fmt.Errorf("call decimals: %w", err)
	}
	if len(output) == 0 {
		return 0, ErrEmptyResult
	}

	results, err := m.erc20.Unpack("decimals", output)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}

	decimals, ok := results[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", results[0])
	}
	return decimals, nil
}

// TokenSymbol 读取支付代币的符号
func (m *Marketplace) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	input, err := m.erc20.Pack("symbol")
	if err != nil {
		return "", err
	}

	output, err := m.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return "", fmt.Errorf("call symbol: %w", err)
	}
	if len(output) == 0 {
		return "", ErrEmptyResult
	}

	results, err := m.erc20.Unpack("symbol", output)
	if err != nil {
		return "", fmt.Errorf("unpack symbol: %w", err)
	}

	symbol, ok := results[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected symbol type %T", results[0])
	}
	return symbol, nil
}
