package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExpandEnvVars 测试环境变量展开
func TestExpandEnvVars(t *testing.T) {
	t.Run("simple variable", func(t *testing.T) {
		os.Setenv("TEST_VAR", "hello")
		defer os.Unsetenv("TEST_VAR")

		result := expandEnvVars("value is ${TEST_VAR}")
		assert.Equal(t, "value is hello", result)
	})

	t.Run("variable with default", func(t *testing.T) {
		// 不设置环境变量，使用默认值
		result := expandEnvVars("value is ${NOT_EXISTS:default_value}")
		assert.Equal(t, "value is default_value", result)
	})

	t.Run("variable with default overridden", func(t *testing.T) {
		os.Setenv("MY_VAR", "actual_value")
		defer os.Unsetenv("MY_VAR")

		result := expandEnvVars("value is ${MY_VAR:default_value}")
		assert.Equal(t, "value is actual_value", result)
	})

	t.Run("multiple variables", func(t *testing.T) {
		os.Setenv("VAR1", "first")
		os.Setenv("VAR2", "second")
		defer os.Unsetenv("VAR1")
		defer os.Unsetenv("VAR2")

		result := expandEnvVars("${VAR1} and ${VAR2}")
		assert.Equal(t, "first and second", result)
	})

	t.Run("no variables", func(t *testing.T) {
		result := expandEnvVars("no variables here")
		assert.Equal(t, "no variables here", result)
	})
}

// TestLoad 测试配置加载
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
service:
  name: venu-chain
  http_port: 9090
  env: test
postgres:
  host: localhost
  database: venu_chain
  user: venu
  password: ${VENU_PG_PASSWORD:secret}
blockchain:
  rpc_url: http://localhost:8545
  chain_id: 31337
  contract_address: "0x0000000000000000000000000000000000000001"
sync:
  poll_interval: 5
payment:
  platform_fee_bps: 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "venu-chain", cfg.Service.Name)
	assert.Equal(t, 9090, cfg.Service.HTTPPort)
	assert.Equal(t, "test", cfg.Service.Env)
	assert.Equal(t, "secret", cfg.Postgres.Password)
	assert.Equal(t, 5, cfg.Sync.PollInterval)
	assert.Equal(t, int64(50), cfg.Payment.PlatformFeeBps)
}

// TestLoad_Defaults 测试默认值
func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service:\n  name: venu-chain\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8084, cfg.Service.HTTPPort)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, int64(31337), cfg.Blockchain.ChainID)
	assert.Equal(t, int32(18), cfg.Blockchain.TokenDecimals)
	assert.Equal(t, 15, cfg.Sync.PollInterval)
	assert.Equal(t, 5000, cfg.Sync.MaxBlockSpan)
	assert.Equal(t, 60, cfg.Sync.LeaseTTL)
	assert.Equal(t, int64(50), cfg.Payment.PlatformFeeBps)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

// TestLoad_FileNotFound 测试配置文件不存在
func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/not/exists/config.yaml")
	assert.Error(t, err)
}

// TestGetEnvInt 测试环境变量整数读取
func TestGetEnvInt(t *testing.T) {
	os.Setenv("TEST_INT", "42")
	defer os.Unsetenv("TEST_INT")

	assert.Equal(t, 42, GetEnvInt("TEST_INT", 0))
	assert.Equal(t, 7, GetEnvInt("TEST_INT_MISSING", 7))

	os.Setenv("TEST_INT_BAD", "abc")
	defer os.Unsetenv("TEST_INT_BAD")
	assert.Equal(t, 7, GetEnvInt("TEST_INT_BAD", 7))
}
