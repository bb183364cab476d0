package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"AgentKit-Chain/internal/llm/openai"
	"AgentKit-Chain/pkg/logger"
	"AgentKit-Chain/pkg/plugin"
)

// EnvPrefix 是环境变量覆盖配置时使用的前缀，例如 AGENTKIT_AGENT_SIGN_ONLY。
const EnvPrefix = "AGENTKIT"

// Config 描述了 AgentKit 在启动阶段需要加载的全部配置。
type Config struct {
	Server    ServerConfig         `mapstructure:"server"`
	Log       logger.Config        `mapstructure:"log"`
	Agent     AgentConfig          `mapstructure:"agent"`
	Wallet    WalletConfig         `mapstructure:"wallet"`
	Web3      Web3Config           `mapstructure:"web3"`
	Plugins   plugin.ManagerConfig `mapstructure:"plugins"`
	Storage   StorageConfig        `mapstructure:"storage"`
	TaskQueue QueueConfig          `mapstructure:"task_queue"`
	LLM       LLMConfig            `mapstructure:"llm"`
	Bridge    BridgeConfig         `mapstructure:"bridge"`
	Swap      SwapConfig           `mapstructure:"swap"`
	Alerting  AlertingConfig       `mapstructure:"alerting"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address       string     `mapstructure:"address"`
	EnableMetrics bool       `mapstructure:"enable_metrics"`
	Workers       int        `mapstructure:"workers"`
	Auth          AuthConfig `mapstructure:"auth"`
}

// AuthConfig 配置 API 的静态访问令牌。Tokens 为空时关闭认证。
type AuthConfig struct {
	Tokens []TokenConfig `mapstructure:"tokens"`
}

// TokenConfig 描述一个访问令牌及其权限范围（read、invoke）。
type TokenConfig struct {
	Name   string   `mapstructure:"name"`
	Token  string   `mapstructure:"token"`
	Scopes []string `mapstructure:"scopes"`
}

// AgentConfig 对应 Agent 的运行参数。
type AgentConfig struct {
	SignOnly   bool              `mapstructure:"sign_only"`
	FeeTier    string            `mapstructure:"fee_tier"`
	Commitment string            `mapstructure:"commitment"`
	MaxSteps   int               `mapstructure:"max_steps"`
	LLMTimeout time.Duration     `mapstructure:"llm_timeout"`
	APIKeys    map[string]string `mapstructure:"api_keys"`
	// Builtins 为空时加载全部内置插件。
	Builtins []string `mapstructure:"builtins"`
}

// WalletConfig 描述钱包来源：本地密钥或远程签名服务。
type WalletConfig struct {
	Kind        string        `mapstructure:"kind"`
	KeypairPath string        `mapstructure:"keypair_path"`
	KeypairEnv  string        `mapstructure:"keypair_env"`
	Remote      RemoteWallet  `mapstructure:"remote"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RemoteWallet 是远程签名服务的连接信息。
type RemoteWallet struct {
	Endpoint  string `mapstructure:"endpoint"`
	PublicKey string `mapstructure:"public_key"`
	APIKey    string `mapstructure:"api_key"`
	CanSend   bool   `mapstructure:"can_send"`
}

// Web3Config 包含访问区块链节点所需的信息。
type Web3Config struct {
	ChainConfig  string `mapstructure:"chain_config"`
	DefaultChain string `mapstructure:"default_chain"`
	RPCURL       string `mapstructure:"rpc_url"`
	Commitment   string `mapstructure:"commitment"`
}

// StorageConfig 统一描述任务存储后端。
type StorageConfig struct {
	TaskStore TaskStoreConfig `mapstructure:"task_store"`
}

// TaskStoreConfig 支持 memory 与 mysql 两种驱动。
type TaskStoreConfig struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// QueueConfig 选择任务队列实现：memory、redis 或 rabbitmq。
type QueueConfig struct {
	Driver   string        `mapstructure:"driver"`
	Size     int           `mapstructure:"size"`
	Redis    RedisConfig   `mapstructure:"redis"`
	RabbitMQ RabbitConfig  `mapstructure:"rabbitmq"`
	Wait     time.Duration `mapstructure:"wait"`
	// ExecutionTimeout 限制单个任务一次执行的时长，0 表示不限制。
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout"`
}

// RedisConfig 描述 Redis 连接参数。
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Queue    string `mapstructure:"queue"`
}

// RabbitConfig 描述 RabbitMQ 连接参数。
type RabbitConfig struct {
	URL      string `mapstructure:"url"`
	Queue    string `mapstructure:"queue"`
	Prefetch int    `mapstructure:"prefetch"`
	Durable  bool   `mapstructure:"durable"`
}

// LLMConfig 用于配置大模型推理的调用方式。
type LLMConfig struct {
	Provider string        `mapstructure:"provider"`
	OpenAI   openai.Config `mapstructure:"openai"`
}

// BridgeConfig 配置跨链证明服务。
type BridgeConfig struct {
	Attestation AttestationConfig `mapstructure:"attestation"`
}

// AttestationConfig 控制证明轮询的地址、次数与间隔。
type AttestationConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Interval    time.Duration `mapstructure:"interval"`
}

// SwapConfig 配置兑换聚合器。
type SwapConfig struct {
	Jupiter JupiterConfig `mapstructure:"jupiter"`
}

// JupiterConfig 是 Jupiter 报价与兑换接口的地址。
type JupiterConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	SlippageBps int    `mapstructure:"slippage_bps"`
}

// AlertingConfig 配置告警 Webhook。
type AlertingConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig 描述告警推送地址。
type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// defaults 中的每个键都会被 viper 识别，从而可以被环境变量覆盖。
var defaults = map[string]any{
	"server.address":                  ":8080",
	"server.enable_metrics":           true,
	"server.workers":                  4,
	"log.level":                       "info",
	"log.format":                      "json",
	"log.audit.enabled":               false,
	"log.audit.path":                  "",
	"agent.sign_only":                 false,
	"agent.fee_tier":                  "mid",
	"agent.commitment":                "confirmed",
	"agent.max_steps":                 8,
	"agent.llm_timeout":               "60s",
	"wallet.kind":                     "keypair",
	"wallet.keypair_path":             "",
	"wallet.keypair_env":              "AGENTKIT_WALLET_SECRET",
	"wallet.remote.endpoint":          "",
	"wallet.remote.public_key":        "",
	"wallet.remote.api_key":           "",
	"wallet.remote.can_send":          false,
	"wallet.timeout":                  "30s",
	"web3.chain_config":               "",
	"web3.default_chain":              "",
	"web3.rpc_url":                    "",
	"web3.commitment":                 "confirmed",
	"plugins.plugin_dir":              "",
	"storage.task_store.driver":       "memory",
	"storage.task_store.dsn":          "",
	"storage.task_store.max_retries":  3,
	"task_queue.driver":               "memory",
	"task_queue.size":                 1024,
	"task_queue.wait":                 "5s",
	"task_queue.execution_timeout":    "10m",
	"task_queue.redis.address":        "",
	"task_queue.redis.password":       "",
	"task_queue.redis.queue":          "agentkit:tasks",
	"task_queue.rabbitmq.url":         "",
	"task_queue.rabbitmq.queue":       "agentkit.tasks",
	"task_queue.rabbitmq.durable":     true,
	"llm.provider":                    "openai",
	"llm.openai.api_key":              "",
	"llm.openai.base_url":             "",
	"llm.openai.model":                "",
	"bridge.attestation.base_url":     "https://iris-api.circle.com",
	"bridge.attestation.max_attempts": 30,
	"bridge.attestation.interval":     "5s",
	"swap.jupiter.base_url":           "https://quote-api.jup.ag/v6",
	"swap.jupiter.slippage_bps":       50,
	"alerting.webhook.url":            "",
	"alerting.webhook.timeout":        "5s",
}

// NewViper 创建带默认值与环境变量映射的 viper 实例。
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load 解析指定路径的配置文件（JSON 或 YAML），路径为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	return LoadWith(NewViper(), path)
}

// LoadWith 使用调用方提供的 viper 实例加载配置，便于与命令行参数绑定。
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		return nil, errors.New("viper 实例为空")
	}
	baseDir := "."
	if path = strings.TrimSpace(path); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("打开配置文件失败: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		baseDir = filepath.Dir(path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.applyDefaults(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults 补齐默认值，并把相对路径解析为相对配置文件所在目录。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Workers <= 0 {
		c.Server.Workers = 1
	}
	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = 8
	}
	if c.Agent.APIKeys == nil {
		c.Agent.APIKeys = map[string]string{}
	}
	if c.Storage.TaskStore.MaxRetries <= 0 {
		c.Storage.TaskStore.MaxRetries = 3
	}
	if c.Bridge.Attestation.MaxAttempts <= 0 {
		c.Bridge.Attestation.MaxAttempts = 30
	}
	if c.Bridge.Attestation.Interval <= 0 {
		c.Bridge.Attestation.Interval = 5 * time.Second
	}
	c.Wallet.KeypairPath = resolve(baseDir, c.Wallet.KeypairPath)
	c.Web3.ChainConfig = resolve(baseDir, c.Web3.ChainConfig)
	c.Plugins.PluginDir = resolve(baseDir, c.Plugins.PluginDir)
	// 设置了 plugin_dir 时插件路径相对于该目录，由插件管理器拼接。
	if c.Plugins.PluginDir == "" {
		for id, pc := range c.Plugins.Plugins {
			pc.Path = resolve(baseDir, pc.Path)
			c.Plugins.Plugins[id] = pc
		}
	}
	if c.Log.Audit.Enabled {
		c.Log.Audit.Path = resolve(baseDir, c.Log.Audit.Path)
	}
}

// Validate 校验取值范围。
func (c *Config) Validate() error {
	switch c.Wallet.Kind {
	case "keypair", "remote":
	default:
		return fmt.Errorf("不支持的钱包类型: %s", c.Wallet.Kind)
	}
	if c.Wallet.Kind == "remote" && strings.TrimSpace(c.Wallet.Remote.Endpoint) == "" {
		return errors.New("远程钱包需要配置 wallet.remote.endpoint")
	}
	switch c.Storage.TaskStore.Driver {
	case "memory", "mysql":
	default:
		return fmt.Errorf("不支持的任务存储驱动: %s", c.Storage.TaskStore.Driver)
	}
	switch c.TaskQueue.Driver {
	case "memory", "redis", "rabbitmq":
	default:
		return fmt.Errorf("不支持的任务队列: %s", c.TaskQueue.Driver)
	}
	for i, token := range c.Server.Auth.Tokens {
		if strings.TrimSpace(token.Token) == "" {
			return fmt.Errorf("server.auth.tokens[%d] 缺少 token", i)
		}
		for _, scope := range token.Scopes {
			switch scope {
			case "read", "invoke":
			default:
				return fmt.Errorf("server.auth.tokens[%d] 包含未知权限: %s", i, scope)
			}
		}
	}
	return c.Plugins.Validate()
}

func resolve(baseDir, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
