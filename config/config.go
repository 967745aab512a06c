package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Chain       ChainConfig    `mapstructure:"chain"`
	Rewards     RewardsConfig  `mapstructure:"rewards"`
	Gasless     GaslessConfig  `mapstructure:"gasless"`
	Pricing     PricingConfig  `mapstructure:"pricing"`
	Alerts      AlertsConfig   `mapstructure:"alerts"`
	NATS        NATSConfig     `mapstructure:"nats"`
	Logging     LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Name     string `mapstructure:"name"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type AuthConfig struct {
	// CronSecret is the bearer token for /cron routes
	CronSecret string `mapstructure:"cron_secret"`
	// JWTSecret verifies HS256 user session tokens
	JWTSecret string `mapstructure:"jwt_secret"`
}

type ChainConfig struct {
	RPCURL              string        `mapstructure:"rpc_url"`
	ChainID             int64         `mapstructure:"chain_id"`
	OperatorPrivateKey  string        `mapstructure:"operator_private_key"`
	RewardPoolAddress   string        `mapstructure:"reward_pool_address"`
	TokenAddress        string        `mapstructure:"token_address"`
	MintContractAddress string        `mapstructure:"mint_contract_address"`
	TxTimeout           time.Duration `mapstructure:"tx_timeout"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
}

type RewardsConfig struct {
	// AnnualPoolTokens is the yearly emission in whole tokens
	AnnualPoolTokens  string        `mapstructure:"annual_pool_tokens"`
	MerkleCacheTTL    time.Duration `mapstructure:"merkle_cache_ttl"`
	RollbackRetryBase time.Duration `mapstructure:"rollback_retry_base"`
}

type GaslessConfig struct {
	// MinimumBalanceWei is the provider minimum a balance must reach even when it covers the cost
	MinimumBalanceWei  string `mapstructure:"minimum_balance_wei"`
	ReconcileBatchSize int    `mapstructure:"reconcile_batch_size"`
}

type PricingConfig struct {
	FeedURL          string        `mapstructure:"feed_url"`
	TokenID          string        `mapstructure:"token_id"`
	NativeID         string        `mapstructure:"native_id"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	RefreshPerMinute int           `mapstructure:"refresh_per_minute"`
}

type AlertsConfig struct {
	DiscordWebhookURL string `mapstructure:"discord_webhook_url"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IsTest reports whether validation of external endpoints is relaxed
func (c *Config) IsTest() bool {
	return c.Environment == "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance.
// CONFIG_FILE optionally points at a YAML file; environment variables win over it.
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = Load(os.Getenv("CONFIG_FILE"))
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 150*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("auth.cron_secret", "")
	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.chain_id", 0)
	v.SetDefault("chain.operator_private_key", "")
	v.SetDefault("chain.reward_pool_address", "")
	v.SetDefault("chain.token_address", "")
	v.SetDefault("chain.mint_contract_address", "")
	v.SetDefault("chain.tx_timeout", 120*time.Second)
	v.SetDefault("chain.receipt_poll_interval", 2*time.Second)

	v.SetDefault("rewards.annual_pool_tokens", "31500000")
	v.SetDefault("rewards.merkle_cache_ttl", 5*time.Minute)
	v.SetDefault("rewards.rollback_retry_base", time.Second)

	v.SetDefault("gasless.minimum_balance_wei", "0")
	v.SetDefault("gasless.reconcile_batch_size", 50)

	v.SetDefault("pricing.feed_url", "https://api.coingecko.com/api/v3/simple/price")
	v.SetDefault("pricing.token_id", "time26")
	v.SetDefault("pricing.native_id", "ethereum")
	v.SetDefault("pricing.cache_ttl", 5*time.Minute)
	v.SetDefault("pricing.request_timeout", 10*time.Second)
	v.SetDefault("pricing.refresh_per_minute", 6)

	v.SetDefault("alerts.discord_webhook_url", "")
	v.SetDefault("nats.url", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads configuration from an optional file and the environment.
// Nested keys map to env vars with underscores, e.g. chain.rpc_url -> CHAIN_RPC_URL.
func Load(configPath string) (*Config, error) {
	cfg, err := read(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads configuration requiring only the database settings.
// Used by commands that never touch the chain, such as migrations.
func LoadDatabase(configPath string) (*Config, error) {
	cfg, err := read(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func read(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Chain.TxTimeout <= 0 {
		return fmt.Errorf("chain.tx_timeout must be positive")
	}
	if c.Rewards.MerkleCacheTTL <= 0 {
		return fmt.Errorf("rewards.merkle_cache_ttl must be positive")
	}

	if c.IsTest() {
		return nil
	}

	for _, req := range []struct{ key, value string }{
		{"DATABASE_URL", c.Database.URL},
		{"AUTH_CRON_SECRET", c.Auth.CronSecret},
		{"AUTH_JWT_SECRET", c.Auth.JWTSecret},
		{"CHAIN_RPC_URL", c.Chain.RPCURL},
		{"CHAIN_OPERATOR_PRIVATE_KEY", c.Chain.OperatorPrivateKey},
		{"CHAIN_REWARD_POOL_ADDRESS", c.Chain.RewardPoolAddress},
		{"CHAIN_TOKEN_ADDRESS", c.Chain.TokenAddress},
		{"CHAIN_MINT_CONTRACT_ADDRESS", c.Chain.MintContractAddress},
	} {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.key)
		}
	}
	return nil
}
