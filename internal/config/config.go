package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config 描述了 dustmited 在启动阶段需要加载的核心配置。
type Config struct {
	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	LLM      LLMConfig      `json:"llm"`
	Web3     Web3Config     `json:"web3"`
	Circle   CircleConfig   `json:"circle"`
	Market   MarketConfig   `json:"market"`
	Treasury TreasuryConfig `json:"treasury"`
	Events   EventsConfig   `json:"events"`
	Alerting AlertingConfig `json:"alerting"`
	Logging  LoggingConfig  `json:"logging"`
	Runtime  RuntimeConfig  `json:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address        string `json:"address"`
	MetricsAddress string `json:"metrics_address"`
	AdminAPIKey    string `json:"admin_api_key"`
	AdminAPIKeyEnv string `json:"admin_api_key_env"`
}

// StorageConfig 统一描述审计日志与钱包记录的持久化后端。
type StorageConfig struct {
	AuditStore AuditStoreConfig `json:"audit_store"`
}

// AuditStoreConfig 支持 memory（本地 JSONL 文件）与 mysql 两种驱动。
type AuditStoreConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds"`
}

// LLMConfig 用于配置大模型推理的调用方式。
type LLMConfig struct {
	Provider string       `json:"provider"`
	OpenAI   OpenAIConfig `json:"openai"`
	Gemini   GeminiConfig `json:"gemini"`
}

// OpenAIConfig 描述 OpenAI Chat Completions 的访问参数。
type OpenAIConfig struct {
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回调用超时时间。
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GeminiConfig 描述 Google Gemini generateContent 的访问参数。
type GeminiConfig struct {
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回调用超时时间。
func (c GeminiConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Web3Config 包含访问区块链节点所需的 RPC 地址与链注册表。
type Web3Config struct {
	RPCURL       string `json:"rpc_url"`
	ChainConfig  string `json:"chain_config"`
	DefaultChain string `json:"default_chain"`
}

// CircleConfig 描述托管钱包服务商（Circle）的访问参数。
type CircleConfig struct {
	APIKey                    string `json:"api_key"`
	APIKeyEnv                 string `json:"api_key_env"`
	EntitySecretCiphertext    string `json:"entity_secret_ciphertext"`
	EntitySecretCiphertextEnv string `json:"entity_secret_ciphertext_env"`
	BaseURL                   string `json:"base_url"`
	WalletSetID               string `json:"wallet_set_id"`
	Blockchain                string `json:"blockchain"`
	TimeoutSeconds            int    `json:"timeout_seconds"`
}

// Timeout 返回调用超时时间。
func (c CircleConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MarketConfig 控制收益率行情的来源。
type MarketConfig struct {
	Mode       string  `json:"mode"`
	MockMinAPY float64 `json:"mock_min_apy"`
	MockMaxAPY float64 `json:"mock_max_apy"`
	StaticAPY  float64 `json:"static_apy"`
}

// TreasuryConfig 描述决策周期的业务参数。
type TreasuryConfig struct {
	CycleIntervalSeconds int      `json:"cycle_interval_seconds"`
	DustThreshold        float64  `json:"dust_threshold"`
	GasCostEstimateUSD   float64  `json:"gas_cost_estimate_usd"`
	TokenAddress         string   `json:"token_address"`
	TokenDecimals        int      `json:"token_decimals"`
	YieldTokenAddress    string   `json:"yield_token_address"`
	PolicySource         string   `json:"policy_source"`
	PolicyTopics         []string `json:"policy_topics"`
	PolicyMaxResults     int      `json:"policy_max_results"`
}

// CycleInterval 返回定时周期的时间间隔。
func (c TreasuryConfig) CycleInterval() time.Duration {
	if c.CycleIntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.CycleIntervalSeconds) * time.Second
}

// EventsConfig 控制周期结果事件的对外发布方式。
type EventsConfig struct {
	Driver   string              `json:"driver"`
	Redis    RedisEventsConfig   `json:"redis"`
	RabbitMQ RabbitMQEventConfig `json:"rabbitmq"`
}

// RedisEventsConfig 描述 Redis 事件流的连接参数。
type RedisEventsConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	List     string `json:"list"`
}

// RabbitMQEventConfig 描述 RabbitMQ 事件队列的连接参数。
type RabbitMQEventConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// AlertingConfig 配置运维告警渠道。
type AlertingConfig struct {
	WebhookURL string `json:"webhook_url"`
}

// LoggingConfig 控制结构化日志输出。
type LoggingConfig struct {
	Level       string         `json:"level"`
	Format      string         `json:"format"`
	OutputPaths []string       `json:"output_paths"`
	Audit       AuditLogConfig `json:"audit"`
}

// AuditLogConfig 控制审计日志文件的滚动策略。
type AuditLogConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// ResolveSecret 优先使用明文配置，否则从环境变量读取。
func ResolveSecret(value, envKey string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	if envKey == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(envKey))
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Storage.AuditStore.Driver == "" {
		c.Storage.AuditStore.Driver = "memory"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "gemini"
	}
	if c.LLM.Gemini.Model == "" {
		c.LLM.Gemini.Model = "gemini-2.0-flash"
	}
	if c.LLM.Gemini.APIKeyEnv == "" {
		c.LLM.Gemini.APIKeyEnv = "GEMINI_API_KEY"
	}
	if c.LLM.OpenAI.APIKeyEnv == "" {
		c.LLM.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}

	if c.Circle.BaseURL == "" {
		c.Circle.BaseURL = "https://api.circle.com"
	}
	if c.Circle.Blockchain == "" {
		c.Circle.Blockchain = "ETH-SEPOLIA"
	}
	if c.Circle.APIKeyEnv == "" {
		c.Circle.APIKeyEnv = "CIRCLE_API_KEY"
	}
	if c.Circle.EntitySecretCiphertextEnv == "" {
		c.Circle.EntitySecretCiphertextEnv = "CIRCLE_ENTITY_SECRET_CIPHERTEXT"
	}

	if c.Market.Mode == "" {
		c.Market.Mode = "mock"
	}
	if c.Market.MockMinAPY == 0 {
		c.Market.MockMinAPY = 3.5
	}
	if c.Market.MockMaxAPY == 0 {
		c.Market.MockMaxAPY = 8.5
	}
	if c.Market.StaticAPY == 0 {
		c.Market.StaticAPY = 4.5
	}

	if c.Treasury.CycleIntervalSeconds <= 0 {
		c.Treasury.CycleIntervalSeconds = 300
	}
	if c.Treasury.DustThreshold <= 0 {
		c.Treasury.DustThreshold = 1.0
	}
	if c.Treasury.GasCostEstimateUSD <= 0 {
		c.Treasury.GasCostEstimateUSD = 0.05
	}
	if c.Treasury.TokenDecimals <= 0 {
		c.Treasury.TokenDecimals = 6
	}
	if c.Treasury.PolicyMaxResults <= 0 {
		c.Treasury.PolicyMaxResults = 3
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}

	if c.Web3.ChainConfig != "" && !filepath.IsAbs(c.Web3.ChainConfig) {
		c.Web3.ChainConfig = filepath.Join(baseDir, c.Web3.ChainConfig)
	}
	if c.Treasury.PolicySource != "" && !filepath.IsAbs(c.Treasury.PolicySource) {
		c.Treasury.PolicySource = filepath.Join(baseDir, c.Treasury.PolicySource)
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
}
