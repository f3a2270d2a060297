// Package metrics 提供 venu-chain 服务的 Prometheus 监控指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "venu_chain"

// 链上同步指标
var (
	// SyncRoundsTotal 同步轮次总数
	SyncRoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_rounds_total",
			Help:      "同步轮次总数",
		},
		[]string{"result"}, // applied, empty, skipped, failed
	)

	// SyncRoundDuration 单轮同步耗时
	SyncRoundDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_round_duration_seconds",
			Help:      "单轮同步耗时(秒)",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// EventsAppliedTotal 已落库事件总数
	EventsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_applied_total",
			Help:      "已落库链上事件总数",
		},
		[]string{"event_type"}, // order_created, ticket_minted
	)

	// EventsSkippedTotal 幂等跳过的事件总数
	EventsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_skipped_total",
			Help:      "幂等跳过的链上事件总数",
		},
		[]string{"event_type"},
	)

	// DecodeFailuresTotal 事件解码失败总数
	DecodeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "链上事件解码失败总数",
		},
		[]string{"event_type"},
	)

	// CursorBlockGauge 游标区块高度
	CursorBlockGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cursor_block",
			Help:      "同步游标区块高度",
		},
	)

	// ChainHeadGauge 链上最新区块高度
	ChainHeadGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_head_block",
			Help:      "链上最新区块高度",
		},
	)

	// SyncLagGauge 同步延迟 (落后链头的区块数)
	SyncLagGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_lag_blocks",
			Help:      "同步延迟 (落后链头的区块数)",
		},
	)
)

// 托管钱包指标
var (
	// WalletOpsTotal 钱包操作总数
	WalletOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_ops_total",
			Help:      "托管钱包操作总数",
		},
		[]string{"action", "result"}, // action: create/unlock/export/rekey/rotate, result: success/failed
	)

	// WalletUnlockDuration 解锁耗时 (含密钥派生)
	WalletUnlockDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wallet_unlock_duration_seconds",
			Help:      "钱包解锁耗时(秒), 含密钥派生",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	// LegacyWalletsGauge 遗留钱包数量
	LegacyWalletsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "legacy_wallets_total",
			Help:      "待轮换的遗留钱包数量",
		},
	)
)

// 分账指标
var (
	// AllocationsTotal 分账计算总数
	AllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocations_total",
			Help:      "购物车分账计算总数",
		},
		[]string{"result"}, // success, vendor_ineligible, invalid_input
	)

	// AllocationVendors 单次分账涉及的商家数
	AllocationVendors = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "allocation_vendors",
			Help:      "单次分账涉及的商家数量",
			Buckets:   []float64{1, 2, 3, 5, 10, 20},
		},
	)
)

// RPC 指标
var (
	// RPCRequestsTotal RPC 请求总数
	RPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "区块链 RPC 请求总数",
		},
		[]string{"method", "result"},
	)

	// RPCRequestDuration RPC 请求耗时
	RPCRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_request_duration_seconds",
			Help:      "区块链 RPC 请求耗时(秒)",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"method"},
	)
)

// HTTP 服务指标
var (
	// HTTPRequestsTotal HTTP 请求总数
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP 请求总数",
		},
		[]string{"method", "path", "code"},
	)

	// HTTPRequestDuration HTTP 请求耗时
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP 请求耗时(秒)",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "path"},
	)
)

// Kafka 指标
var (
	// KafkaMessagesProduced Kafka 生产消息数
	KafkaMessagesProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_messages_produced_total",
			Help:      "Kafka 生产消息总数",
		},
		[]string{"topic"},
	)
)

// Helper functions

// RecordSyncRound 记录一轮同步
func RecordSyncRound(result string, durationSeconds float64) {
	SyncRoundsTotal.WithLabelValues(result).Inc()
	if durationSeconds > 0 {
		SyncRoundDuration.Observe(durationSeconds)
	}
}

// RecordEventApplied 记录事件落库
func RecordEventApplied(eventType string, applied bool) {
	if applied {
		EventsAppliedTotal.WithLabelValues(eventType).Inc()
	} else {
		EventsSkippedTotal.WithLabelValues(eventType).Inc()
	}
}

// RecordDecodeFailure 记录解码失败
func RecordDecodeFailure(eventType string) {
	DecodeFailuresTotal.WithLabelValues(eventType).Inc()
}

// UpdateSyncProgress 更新同步进度
func UpdateSyncProgress(cursorBlock, chainHead int64) {
	CursorBlockGauge.Set(float64(cursorBlock))
	ChainHeadGauge.Set(float64(chainHead))
	if chainHead >= cursorBlock {
		SyncLagGauge.Set(float64(chainHead - cursorBlock))
	}
}

// RecordWalletOp 记录钱包操作
func RecordWalletOp(action string, success bool) {
	result := "success"
	if !success {
		result = "failed"
	}
	WalletOpsTotal.WithLabelValues(action, result).Inc()
}

// RecordAllocation 记录分账计算
func RecordAllocation(result string, vendorCount int) {
	AllocationsTotal.WithLabelValues(result).Inc()
	if vendorCount > 0 {
		AllocationVendors.Observe(float64(vendorCount))
	}
}

// RecordRPCRequest 记录 RPC 请求
func RecordRPCRequest(method, result string, durationSeconds float64) {
	RPCRequestsTotal.WithLabelValues(method, result).Inc()
	RPCRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordHTTPRequest 记录 HTTP 请求
func RecordHTTPRequest(method, path, code string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

// RecordKafkaMessage 记录 Kafka 消息
func RecordKafkaMessage(topic string) {
	KafkaMessagesProduced.WithLabelValues(topic).Inc()
}
