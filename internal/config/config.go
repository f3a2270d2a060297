package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 配置
type Config struct {
	Service    ServiceConfig    `yaml:"service" json:"service"`
	Postgres   PostgresConfig   `yaml:"postgres" json:"postgres"`
	Redis      RedisConfig      `yaml:"redis" json:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka" json:"kafka"`
	Blockchain BlockchainConfig `yaml:"blockchain" json:"blockchain"`
	Sync       SyncConfig       `yaml:"sync" json:"sync"`
	Payment    PaymentConfig    `yaml:"payment" json:"payment"`
	Log        LogConfig        `yaml:"log" json:"log"`
}

// ServiceConfig 服务配置
type ServiceConfig struct {
	Name     string `yaml:"name" json:"name"`
	HTTPPort int    `yaml:"http_port" json:"http_port"`
	Env      string `yaml:"env" json:"env"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port"`
	Database        string `yaml:"database" json:"database"`
	User            string `yaml:"user" json:"user"`
	Password        string `yaml:"password" json:"password"`
	MaxConnections  int    `yaml:"max_connections" json:"max_connections"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers" json:"brokers"`
	ClientID string   `yaml:"client_id" json:"client_id"`
	Enabled  bool     `yaml:"enabled" json:"enabled"`
}

// BlockchainConfig 区块链配置
type BlockchainConfig struct {
	RPCURL          string   `yaml:"rpc_url" json:"rpc_url"`
	BackupRPCURLs   []string `yaml:"backup_rpc_urls" json:"backup_rpc_urls"`
	ChainID         int64    `yaml:"chain_id" json:"chain_id"`
	ContractAddress string   `yaml:"contract_address" json:"contract_address"`
	TokenAddress    string   `yaml:"token_address" json:"token_address"` // 支付代币, 留空则跳过链上校验
	TokenDecimals   int32    `yaml:"token_decimals" json:"token_decimals"`
	RequestTimeout  int      `yaml:"request_timeout" json:"request_timeout"` // 秒
}

// SyncConfig 链上同步配置
type SyncConfig struct {
	PollInterval int   `yaml:"poll_interval" json:"poll_interval"`   // 秒
	MaxBlockSpan int   `yaml:"max_block_span" json:"max_block_span"` // 单次同步最大区块数
	MaxRetries   int   `yaml:"max_retries" json:"max_retries"`       // RPC 重试次数
	RetryBackoff int   `yaml:"retry_backoff" json:"retry_backoff"`   // 秒
	LeaseTTL     int   `yaml:"lease_ttl" json:"lease_ttl"`           // 秒, 同步任务租约
	StartBlock   int64 `yaml:"start_block" json:"start_block"`       // 无游标时的起始区块 (合约部署高度)
}

// PaymentConfig 支付配置
type PaymentConfig struct {
	PlatformFeeBps int64 `yaml:"platform_fee_bps" json:"platform_fee_bps"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// 环境变量替换
	content := string(data)
	content = expandEnvVars(content)

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, err
	}

	// 设置默认值
	setDefaults(&cfg)

	return &cfg, nil
}

// expandEnvVars 展开环境变量 ${VAR:default}
func expandEnvVars(s string) string {
	result := s
	for {
		start := strings.Index(result, "${")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}")
		if end == -1 {
			break
		}
		end += start

		expr := result[start+2 : end]
		parts := strings.SplitN(expr, ":", 2)
		varName := parts[0]
		defaultVal := ""
		if len(parts) > 1 {
			defaultVal = parts[1]
		}

		value := os.Getenv(varName)
		if value == "" {
			value = defaultVal
		}

		result = result[:start] + value + result[end+1:]
	}
	return result
}

// setDefaults 设置默认值
func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "venu-chain"
	}
	if cfg.Service.HTTPPort == 0 {
		cfg.Service.HTTPPort = 8084
	}
	if cfg.Service.Env == "" {
		cfg.Service.Env = "dev"
	}

	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.MaxConnections == 0 {
		cfg.Postgres.MaxConnections = 50
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 10
	}
	if cfg.Postgres.ConnMaxLifetime == 0 {
		cfg.Postgres.ConnMaxLifetime = 3600
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 50
	}

	if cfg.Blockchain.ChainID == 0 {
		cfg.Blockchain.ChainID = 31337 // 本地开发
	}
	if cfg.Blockchain.TokenDecimals == 0 {
		cfg.Blockchain.TokenDecimals = 18
	}
	if cfg.Blockchain.RequestTimeout == 0 {
		cfg.Blockchain.RequestTimeout = 10
	}

	if cfg.Sync.PollInterval == 0 {
		cfg.Sync.PollInterval = 15
	}
	if cfg.Sync.MaxBlockSpan == 0 {
		cfg.Sync.MaxBlockSpan = 5000
	}
	if cfg.Sync.MaxRetries == 0 {
		cfg.Sync.MaxRetries = 3
	}
	if cfg.Sync.RetryBackoff == 0 {
		cfg.Sync.RetryBackoff = 2
	}
	if cfg.Sync.LeaseTTL == 0 {
		cfg.Sync.LeaseTTL = 60
	}

	if cfg.Payment.PlatformFeeBps == 0 {
		cfg.Payment.PlatformFeeBps = 50 // 0.5%
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// GetEnvInt 获取环境变量整数值
func GetEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetEnvString 获取环境变量字符串值
func GetEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
