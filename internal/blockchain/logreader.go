package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/venu-market/venu-chain/internal/logger"
	"github.com/venu-market/venu-chain/internal/metrics"
	"github.com/venu-market/venu-chain/internal/model"
)

// 合约事件签名
const (
	orderCreatedSignature = "OrderCreated(uint256,address,uint256,uint256)"
	ticketMintedSignature = "TicketMinted(uint256,uint256,address)"
)

var (
	// OrderCreatedTopic OrderCreated(orderId indexed, buyer indexed, totalAmount, platformFee)
	OrderCreatedTopic = crypto.Keccak256Hash([]byte(orderCreatedSignature))
	// TicketMintedTopic TicketMinted(tokenId indexed, orderId indexed, owner indexed)
	TicketMintedTopic = crypto.Keccak256Hash([]byte(ticketMintedSignature))
)

// DecodeError 事件日志形状与声明的 ABI 不符 (重试不会消失)
type DecodeError struct {
	Event    model.ChainEventKind
	TxHash   string
	LogIndex int
	Reason   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s event failed at tx %s log %d: %s", e.Event, e.TxHash, e.LogIndex, e.Reason)
}

// LogSource 日志来源 (由 Client 实现)
type LogSource interface {
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
}

// LogReader 无状态事件日志读取器
// 按区块范围取回指定合约的事件并解码为带标签的具体事件类型。
// 畸形日志告警后跳过, 不拖垮同批的合法事件 (形状错误重试不会消失,
// 阻塞整批只会把同步管线永久卡在同一区间)
type LogReader struct {
	source LogSource
}

// NewLogReader 创建日志读取器
func NewLogReader(source LogSource) *LogReader {
	return &LogReader{source: source}
}

// FetchOrderCreated 取回 [fromBlock, toBlock] 内的 OrderCreated 事件
// fromBlock > toBlock 为合法的空结果 (刚部署或空转一轮), 不是错误
func (r *LogReader) FetchOrderCreated(ctx context.Context, contract common.Address, fromBlock, toBlock int64) ([]*model.OrderCreatedEvent, error) {
	logs, err := r.fetchLogs(ctx, contract, OrderCreatedTopic, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}

	events := make([]*model.OrderCreatedEvent, 0, len(logs))
	for _, lg := range logs {
		event, err := decodeOrderCreated(lg)
		if err != nil {
			skipMalformedLog(err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// FetchTicketMinted 取回 [fromBlock, toBlock] 内的 TicketMinted 事件
func (r *LogReader) FetchTicketMinted(ctx context.Context, contract common.Address, fromBlock, toBlock int64) ([]*model.TicketMintedEvent, error) {
	logs, err := r.fetchLogs(ctx, contract, TicketMintedTopic, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}

	events := make([]*model.TicketMintedEvent, 0, len(logs))
	for _, lg := range logs {
		event, err := decodeTicketMinted(lg)
		if err != nil {
			skipMalformedLog(err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// skipMalformedLog 畸形日志计数并告警, 需要人工介入
func skipMalformedLog(err error) {
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		return
	}
	metrics.RecordDecodeFailure(string(decodeErr.Event))
	logger.Error("malformed contract log skipped, manual intervention required",
		zap.String("event", string(decodeErr.Event)),
		zap.String("tx_hash", decodeErr.TxHash),
		zap.Int("log_index", decodeErr.LogIndex),
		zap.String("reason", decodeErr.Reason))
}

func (r *LogReader) fetchLogs(ctx context.Context, contract common.Address, topic common.Hash, fromBlock, toBlock int64) ([]types.Log, error) {
	if fromBlock > toBlock {
		return nil, nil
	}

	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(fromBlock),
		ToBlock:   big.NewInt(toBlock),
		Addresses: []common.Address{contract},
		Topics:    [][]common.Hash{{topic}},
	}
	return r.source.FilterLogs(ctx, query)
}

// decodeOrderCreated 解码 OrderCreated 日志
// 形状: topics = [signature, orderId, buyer], data = totalAmount || platformFee
func decodeOrderCreated(lg types.Log) (*model.OrderCreatedEvent, error) {
	if len(lg.Topics) != 3 {
		return nil, &DecodeError{
			Event:    model.ChainEventKindOrderCreated,
			TxHash:   lg.TxHash.Hex(),
			LogIndex: int(lg.Index),
			Reason:   fmt.Sprintf("expected 3 topics, got %d", len(lg.Topics)),
		}
	}
	if len(lg.Data) != 64 {
		return nil, &DecodeError{
			Event:    model.ChainEventKindOrderCreated,
			TxHash:   lg.TxHash.Hex(),
			LogIndex: int(lg.Index),
			Reason:   fmt.Sprintf("expected 64 data bytes, got %d", len(lg.Data)),
		}
	}

	orderID := new(big.Int).SetBytes(lg.Topics[1].Bytes())
	if !orderID.IsUint64() {
		return nil, &DecodeError{
			Event:    model.ChainEventKindOrderCreated,
			TxHash:   lg.TxHash.Hex(),
			LogIndex: int(lg.Index),
			Reason:   "order id exceeds uint64",
		}
	}

	return &model.OrderCreatedEvent{
		EventMeta: model.EventMeta{
			BlockNumber: int64(lg.BlockNumber),
			TxHash:      lg.TxHash.Hex(),
			LogIndex:    int(lg.Index),
		},
		OrderID:     orderID.Uint64(),
		Buyer:       common.BytesToAddress(lg.Topics[2].Bytes()).Hex(),
		TotalAmount: new(big.Int).SetBytes(lg.Data[:32]),
		PlatformFee: new(big.Int).SetBytes(lg.Data[32:64]),
	}, nil
}

// decodeTicketMinted 解码 TicketMinted 日志
// 形状: topics = [signature, tokenId, orderId, owner], data 为空
func decodeTicketMinted(lg types.Log) (*model.TicketMintedEvent, error) {
	if len(lg.Topics) != 4 {
		return nil, &DecodeError{
			Event:    model.ChainEventKindTicketMinted,
			TxHash:   lg.TxHash.Hex(),
			LogIndex: int(lg.Index),
			Reason:   fmt.Sprintf("expected 4 topics, got %d", len(lg.Topics)),
		}
	}
	if len(lg.Data) != 0 {
		return nil, &DecodeError{
			Event:    model.ChainEventKindTicketMinted,
			TxHash:   lg.TxHash.Hex(),
			LogIndex: int(lg.Index),
			Reason:   fmt.Sprintf("expected empty data, got %d bytes", len(lg.Data)),
		}
	}

	orderID := new(big.Int).SetBytes(lg.Topics[2].Bytes())
	if !orderID.IsUint64() {
		return nil, &DecodeError{
			Event:    model.ChainEventKindTicketMinted,
			TxHash:   lg.TxHash.Hex(),
			LogIndex: int(lg.Index),
			Reason:   "order id exceeds uint64",
		}
	}

	return &model.TicketMintedEvent{
		EventMeta: model.EventMeta{
			BlockNumber: int64(lg.BlockNumber),
			TxHash:      lg.TxHash.Hex(),
			LogIndex:    int(lg.Index),
		},
		TokenID: new(big.Int).SetBytes(lg.Topics[1].Bytes()),
		OrderID: orderID.Uint64(),
		Owner:   common.BytesToAddress(lg.Topics[3].Bytes()).Hex(),
	}, nil
}
