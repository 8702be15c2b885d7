// Package config loads gateway configuration from file and
// environment variables via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration, per spec.md §6.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

// ChainConfig carries every on-chain / relayer key recognized by
// spec.md §6.
type ChainConfig struct {
	RPCURL                 string        `mapstructure:"rpc_url"`
	ChainID                int64         `mapstructure:"chain_id"`
	RelayerPrivateKey       string        `mapstructure:"relayer_private_key"`
	PaymentProcessorAddress string        `mapstructure:"payment_processor_address"`
	EscrowAddress           string        `mapstructure:"escrow_address"`
	ServiceRegistryAddress  string        `mapstructure:"service_registry_address"`
	TokenAddress            string        `mapstructure:"token_address"`
	TokenName               string        `mapstructure:"token_name"`
	TokenSymbol             string        `mapstructure:"token_symbol"`
	TokenDecimals           uint8         `mapstructure:"token_decimals"`
	PlatformFeePercent      float64       `mapstructure:"platform_fee_percent"`
	OptimisticSettlement    bool          `mapstructure:"optimistic_settlement"`
	ConfirmationTimeout     time.Duration `mapstructure:"confirmation_timeout"`
	RPCTimeout              time.Duration `mapstructure:"rpc_timeout"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: X402GW_.
// Nested keys use underscores, e.g. X402GW_CHAIN_RPC_URL.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("chain.token_name", "USD Coin")
	v.SetDefault("chain.token_symbol", "USDC")
	v.SetDefault("chain.token_decimals", 6)
	v.SetDefault("chain.platform_fee_percent", 0.05)
	v.SetDefault("chain.optimistic_settlement", false)
	v.SetDefault("chain.confirmation_timeout", "30s")
	v.SetDefault("chain.rpc_timeout", "10s")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("X402GW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows, so keys with no
	// default are bound explicitly to be readable from the environment.
	for _, key := range []string{"chain.rpc_url", "chain.chain_id", "chain.relayer_private_key", "chain.payment_processor_address", "chain.escrow_address", "chain.service_registry_address", "chain.token_address", "database.url", "redis.password"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects a configuration that is missing a required key (RPC
// URL, chain id, relayer key, contract addresses). It does not compare
// chain_id with the RPC endpoint's chain; contracts.DialBackend does
// that when it connects.
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required")
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("chain.chain_id is required")
	}
	if c.Chain.RelayerPrivateKey == "" {
		return fmt.Errorf("chain.relayer_private_key is required")
	}
	if c.Chain.PaymentProcessorAddress == "" {
		return fmt.Errorf("chain.payment_processor_address is required")
	}
	if c.Chain.EscrowAddress == "" {
		return fmt.Errorf("chain.escrow_address is required")
	}
	if c.Chain.ServiceRegistryAddress == "" {
		return fmt.Errorf("chain.service_registry_address is required")
	}
	if c.Chain.TokenAddress == "" {
		return fmt.Errorf("chain.token_address is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	return nil
}
