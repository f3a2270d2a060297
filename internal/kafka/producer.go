// Package kafka 提供 Kafka 生产者功能
//
// 本服务发送的 Topic:
//
//  1. Topic: wallet-audit
//     消费者: venu-risk (风控审计归档)
//     消息内容: WalletAuditMessage (托管钱包敏感操作)
//     Partition Key: user_id
//
//  2. Topic: orders-synced
//     消费者: venu-notify (下游通知)
//     消息内容: OrderSyncedMessage (链上订单落库确认)
//     Partition Key: tx_hash
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/venu-market/venu-chain/internal/logger"
	"github.com/venu-market/venu-chain/internal/metrics"
)

// Kafka 生产者发送的 Topic
const (
	// TopicWalletAudit 钱包敏感操作审计 Topic
	TopicWalletAudit = "wallet-audit"

	// TopicOrdersSynced 链上订单落库确认 Topic
	TopicOrdersSynced = "orders-synced"
)

// WalletAuditMessage 钱包审计消息
type WalletAuditMessage struct {
	UserID    string `json:"user_id"`
	Action    string `json:"action"`
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"`
}

// OrderSyncedMessage 订单落库确认消息
type OrderSyncedMessage struct {
	OrderID       string `json:"order_id"`
	OnChainID     uint64 `json:"on_chain_id"`
	TxHash        string `json:"tx_hash"`
	BlockNumber   int64  `json:"block_number"`
	BuyerUserID   string `json:"buyer_user_id"`
	TotalAmount   string `json:"total_amount"`
	PlatformFee   string `json:"platform_fee"`
	SyncedAtMilli int64  `json:"synced_at_milli"`
}

// Producer Kafka 生产者
type Producer struct {
	producer sarama.SyncProducer
	mu       sync.RWMutex
	closed   bool
}

// ProducerConfig 生产者配置
type ProducerConfig struct {
	Brokers      []string
	ClientID     string
	RequiredAcks sarama.RequiredAcks
	MaxRetries   int
	RetryBackoff time.Duration
}

// NewProducer 创建生产者
func NewProducer(cfg *ProducerConfig) (*Producer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.ClientID = cfg.ClientID
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	requiredAcks := cfg.RequiredAcks
	if requiredAcks == 0 {
		requiredAcks = sarama.WaitForAll
	}
	config.Producer.RequiredAcks = requiredAcks

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	config.Producer.Retry.Max = maxRetries

	retryBackoff := cfg.RetryBackoff
	if retryBackoff == 0 {
		retryBackoff = 100 * time.Millisecond
	}
	config.Producer.Retry.Backoff = retryBackoff

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, err
	}

	return &Producer{
		producer: producer,
	}, nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	return p.producer.Close()
}

// send 发送消息
func (p *Producer) send(topic string, key string, value []byte) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return errors.New("producer is closed")
	}
	p.mu.RUnlock()

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		logger.Error("failed to send kafka message",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err))
		return err
	}

	metrics.RecordKafkaMessage(topic)

	logger.Debug("kafka message sent",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))

	return nil
}

// SendWalletAudit 发送钱包审计消息
func (p *Producer) SendWalletAudit(ctx context.Context, msg *WalletAuditMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.send(TopicWalletAudit, msg.UserID, data)
}

// SendOrderSynced 发送订单落库确认消息
func (p *Producer) SendOrderSynced(ctx context.Context, msg *OrderSyncedMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.send(TopicOrdersSynced, msg.TxHash, data)
}

// EventPublisher 事件发布器接口
//
// 发布失败不阻断主流程, 由调用方记录日志后继续。
type EventPublisher interface {
	PublishWalletAudit(ctx context.Context, msg *WalletAuditMessage) error
	PublishOrderSynced(ctx context.Context, msg *OrderSyncedMessage) error
}

// KafkaEventPublisher Kafka 事件发布器
type KafkaEventPublisher struct {
	producer *Producer
}

// NewKafkaEventPublisher 创建 Kafka 事件发布器
func NewKafkaEventPublisher(producer *Producer) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		producer: producer,
	}
}

func (p *KafkaEventPublisher) PublishWalletAudit(ctx context.Context, msg *WalletAuditMessage) error {
	return p.producer.SendWalletAudit(ctx, msg)
}

func (p *KafkaEventPublisher) PublishOrderSynced(ctx context.Context, msg *OrderSyncedMessage) error {
	return p.producer.SendOrderSynced(ctx, msg)
}
