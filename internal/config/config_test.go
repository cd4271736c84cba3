package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
account:
  initial_assets: "300000"
storage:
  backend: redis
  redis:
    host: localhost
    port: 6379
    db: 0
    key_prefix: "stockledger:"
quote:
  timeout_seconds: 5
monitor:
  refresh_interval_seconds: 0
system:
  log_level: INFO
  log_dir: ./logs
`

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, validYAML)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "300000", cfg.Account.InitialAssets)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "localhost", cfg.Storage.Redis.Host)
	assert.Equal(t, 6379, cfg.Storage.Redis.Port)
	assert.Equal(t, "stockledger:", cfg.Storage.Redis.KeyPrefix)
	assert.Equal(t, 5, cfg.Quote.TimeoutSeconds)
	assert.Equal(t, "INFO", cfg.System.LogLevel)

	initialAssets, err := cfg.InitialAssetsDecimal()
	require.NoError(t, err)
	assert.Equal(t, "300000", initialAssets.String())
}

func TestLoadConfig_RedisPasswordFromEnv(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "secret-from-env")
	path := writeConfigFile(t, validYAML)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Storage.Redis.Password)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{"默认配置有效", func(cfg *Config) {}, false},
		{"内存后端无需Redis配置", func(cfg *Config) {
			cfg.Storage.Backend = "memory"
			cfg.Storage.Redis = Redis{}
		}, false},
		{"初始资金必须为正", func(cfg *Config) { cfg.Account.InitialAssets = "0" }, true},
		{"初始资金必须可解析", func(cfg *Config) { cfg.Account.InitialAssets = "三十万" }, true},
		{"不支持的存储后端", func(cfg *Config) { cfg.Storage.Backend = "mysql" }, true},
		{"Redis主机不能为空", func(cfg *Config) { cfg.Storage.Redis.Host = "" }, true},
		{"Redis端口必须合法", func(cfg *Config) { cfg.Storage.Redis.Port = 70000 }, true},
		{"行情超时不能为负", func(cfg *Config) { cfg.Quote.TimeoutSeconds = -1 }, true},
		{"刷新间隔不能为负", func(cfg *Config) { cfg.Monitor.RefreshIntervalSeconds = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
