package config

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config 应用配置结构
type Config struct {
	Account Account `mapstructure:"account"`
	Storage Storage `mapstructure:"storage"`
	Quote   Quote   `mapstructure:"quote"`
	Monitor Monitor `mapstructure:"monitor"`
	System  System  `mapstructure:"system"`
}

// Account 账户配置
type Account struct {
	InitialAssets string `mapstructure:"initial_assets"` // 初始资金，首次启动时建账使用
}

// Storage 存储配置
type Storage struct {
	Backend string `mapstructure:"backend"` // redis 或 memory
	Redis   Redis  `mapstructure:"redis"`
}

// Redis Redis配置
type Redis struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"` // 从配置文件或环境变量中读取
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Quote 行情源配置
type Quote struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Monitor 股价更新器配置
type Monitor struct {
	RefreshIntervalSeconds int `mapstructure:"refresh_interval_seconds"` // 0表示按交易时段自动调整
}

// System 系统配置
type System struct {
	LogLevel string `mapstructure:"log_level"`
	LogDir   string `mapstructure:"log_dir"`
}

// InitialAssetsDecimal 解析初始资金
func (c *Config) InitialAssetsDecimal() (decimal.Decimal, error) {
	value, err := decimal.NewFromString(c.Account.InitialAssets)
	if err != nil {
		return decimal.Zero, fmt.Errorf("解析初始资金失败: %w", err)
	}
	return value, nil
}

// LoadConfig 从文件加载配置
func LoadConfig(filePath string) (*Config, error) {
	// 使用Viper读取配置
	v := viper.New()
	v.SetConfigFile(filePath)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 绑定环境变量，如STOCKLEDGER_SYSTEM_LOG_LEVEL
	v.AutomaticEnv()
	v.SetEnvPrefix("STOCKLEDGER")

	// 特定环境变量映射，存在时优先使用
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		v.Set("storage.redis.password", redisPassword)
	}

	// 解析配置到结构体
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 验证配置有效性
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// LoadConfigFromYAML 直接从YAML加载配置，备用加载路径
func LoadConfigFromYAML(filePath string) (*Config, error) {
	yamlFile, err := ioutil.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// validateConfig 验证配置有效性
func validateConfig(config *Config) error {
	initialAssets, err := config.InitialAssetsDecimal()
	if err != nil {
		return err
	}
	if !initialAssets.IsPositive() {
		return fmt.Errorf("初始资金必须大于0")
	}

	switch config.Storage.Backend {
	case "redis":
		if config.Storage.Redis.Host == "" {
			return fmt.Errorf("Redis主机不能为空")
		}
		if config.Storage.Redis.Port <= 0 || config.Storage.Redis.Port > 65535 {
			return fmt.Errorf("无效的Redis端口")
		}
	case "memory":
		// 内存后端无需额外配置
	default:
		return fmt.Errorf("不支持的存储后端: %s", config.Storage.Backend)
	}

	if config.Quote.TimeoutSeconds < 0 {
		return fmt.Errorf("行情超时时间不能为负数")
	}
	if config.Monitor.RefreshIntervalSeconds < 0 {
		return fmt.Errorf("刷新间隔不能为负数")
	}

	return nil
}

// GetDefaultConfig 获取默认配置（用于生成示例配置）
func GetDefaultConfig() *Config {
	return &Config{
		Account: Account{
			InitialAssets: "300000",
		},
		Storage: Storage{
			Backend: "redis",
			Redis: Redis{
				Host:      "localhost",
				Port:      6379,
				Password:  "",
				DB:        0,
				KeyPrefix: "stockledger:",
			},
		},
		Quote: Quote{
			TimeoutSeconds: 5,
		},
		Monitor: Monitor{
			RefreshIntervalSeconds: 0,
		},
		System: System{
			LogLevel: "INFO",
			LogDir:   "./logs",
		},
	}
}
