package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
	"github.com/nft-bridge/bridge_client/pkg/retry"
	"github.com/nft-bridge/bridge_client/pkg/tracing"
)

// Config holds all configuration for the bridge client
type Config struct {
	Environment    string                      `mapstructure:"environment"`
	LogLevel       string                      `mapstructure:"log_level"`
	DefaultNetwork string                      `mapstructure:"default_network"`
	Networks       map[string]entities.Network `mapstructure:"networks"`
	// Pairs lists bridge pairs as [primary, secondary]
	Pairs        [][]string         `mapstructure:"pairs"`
	Signer       SignerConfig       `mapstructure:"signer"`
	Chain        ChainConfig        `mapstructure:"chain"`
	Relay        RelayConfig        `mapstructure:"relay"`
	Discovery    DiscoveryConfig    `mapstructure:"discovery"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Tracing      tracing.Config     `mapstructure:"tracing"`
}

// SignerConfig holds the key that signs lock transactions. Empty when the
// presentation layer supplies its own transactor.
type SignerConfig struct {
	PrivateKey string `mapstructure:"private_key"`
}

type ChainConfig struct {
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
}

type RelayConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	AuthSecret        string        `mapstructure:"auth_secret"`
	AuthIssuer        string        `mapstructure:"auth_issuer"`
	Methods           RelayMethods  `mapstructure:"methods"`
}

// RelayMethods names the relay entry points. Monitor and release methods
// exist once per direction.
type RelayMethods struct {
	SubmitProof    string `mapstructure:"submit_proof"`
	MonitorForward string `mapstructure:"monitor_forward"`
	MonitorReverse string `mapstructure:"monitor_reverse"`
	ReleaseForward string `mapstructure:"release_forward"`
	ReleaseReverse string `mapstructure:"release_reverse"`
}

type DiscoveryConfig struct {
	MaxProbe        int           `mapstructure:"max_probe"`
	Concurrency     int           `mapstructure:"concurrency"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	FreshnessWindow time.Duration `mapstructure:"freshness_window"`
	RefreshSchedule string        `mapstructure:"refresh_schedule"`
	// Store selects the cache backend: "memory" or "redis"
	Store string `mapstructure:"store"`
}

type OrchestratorConfig struct {
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	ProofMaxRetries     int           `mapstructure:"proof_max_retries"`
	ProofInitialBackoff time.Duration `mapstructure:"proof_initial_backoff"`
	ProofMaxBackoff     time.Duration `mapstructure:"proof_max_backoff"`
	RequireOwnership    bool          `mapstructure:"require_ownership"`
}

// ProofRetryPolicy is the backoff applied while the relay reports busy
func (o OrchestratorConfig) ProofRetryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:   o.ProofMaxRetries,
		InitialDelay: o.ProofInitialBackoff,
		MaxDelay:     o.ProofMaxBackoff,
		Multiplier:   2,
	}
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

type DatabaseConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for id, n := range config.Networks {
		if n.ID == "" {
			n.ID = id
		}
		if rpc := os.Getenv(strings.ToUpper(id) + "_RPC_URL"); rpc != "" {
			n.RPCURL = rpc
		}
		config.Networks[id] = n
	}
	config.Tracing.Environment = config.Environment

	if config.Database.Enabled && config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// NetworkPairs converts the configured pairs into entities
func (c *Config) NetworkPairs() []entities.NetworkPair {
	pairs := make([]entities.NetworkPair, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		if len(p) == 2 {
			pairs = append(pairs, entities.NetworkPair{Primary: p[0], Secondary: p[1]})
		}
	}
	return pairs
}

// RedisAddr returns host:port of the Redis server
func (r RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("default_network", "sepolia")

	v.SetDefault("networks", map[string]interface{}{
		"sepolia": map[string]interface{}{
			"display_name":     "Sepolia",
			"chain_id":         11155111,
			"rpc_url":          "https://ethereum-sepolia-rpc.publicnode.com",
			"contract_address": "0x800e11fb1f4c9b33eab0dd7aae19c2ae741be30c",
			"explorer_url":     "https://sepolia.etherscan.io",
			"decimals":         18,
		},
		"holesky": map[string]interface{}{
			"display_name":     "Holesky",
			"chain_id":         17000,
			"rpc_url":          "https://ethereum-holesky-rpc.publicnode.com",
			"contract_address": "0x027315bad2c06b0ab2a4f31c6b4b162f798a3b31",
			"explorer_url":     "https://holesky.etherscan.io",
			"decimals":         18,
		},
	})
	v.SetDefault("pairs", [][]string{{"sepolia", "holesky"}})

	v.SetDefault("chain.confirmation_timeout", 5*time.Minute)
	v.SetDefault("chain.receipt_poll_interval", 2*time.Second)
	v.SetDefault("chain.dial_timeout", 10*time.Second)

	v.SetDefault("relay.base_url", "http://localhost:4943")
	v.SetDefault("relay.timeout", 30*time.Second)
	v.SetDefault("relay.requests_per_second", 5.0)
	v.SetDefault("relay.auth_issuer", "nft-bridge-client")
	v.SetDefault("relay.methods.submit_proof", "update_block_number")
	v.SetDefault("relay.methods.monitor_forward", "monitor_evm_nft")
	v.SetDefault("relay.methods.monitor_reverse", "monitor_evm_nft_reverse")
	v.SetDefault("relay.methods.release_forward", "holesky_txn")
	v.SetDefault("relay.methods.release_reverse", "sepolia_txn")

	v.SetDefault("discovery.max_probe", 100)
	v.SetDefault("discovery.concurrency", 100)
	v.SetDefault("discovery.probe_timeout", 30*time.Second)
	v.SetDefault("discovery.freshness_window", entities.DefaultFreshnessWindow)
	v.SetDefault("discovery.refresh_schedule", "@every 30s")
	v.SetDefault("discovery.store", "memory")

	v.SetDefault("orchestrator.poll_interval", 3*time.Second)
	v.SetDefault("orchestrator.proof_max_retries", 5)
	v.SetDefault("orchestrator.proof_initial_backoff", 2*time.Second)
	v.SetDefault("orchestrator.proof_max_backoff", 30*time.Second)
	v.SetDefault("orchestrator.require_ownership", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "nft_bridge")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 3600)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.collector_url", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 0.1)
}

func overrideFromEnv(v *viper.Viper) {
	if key := os.Getenv("BRIDGE_SIGNER_KEY"); key != "" {
		v.Set("signer.private_key", key)
	}
	if relayURL := os.Getenv("RELAY_BASE_URL"); relayURL != "" {
		v.Set("relay.base_url", relayURL)
	}
	if secret := os.Getenv("RELAY_AUTH_SECRET"); secret != "" {
		v.Set("relay.auth_secret", secret)
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		v.Set("database.url", dbURL)
		v.Set("database.enabled", true)
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		v.Set("redis.password", redisPassword)
	}
	if network := os.Getenv("BRIDGE_DEFAULT_NETWORK"); network != "" {
		v.Set("default_network", network)
	}
}

func validate(config *Config) error {
	if len(config.Pairs) == 0 {
		return fmt.Errorf("at least one network pair is required")
	}

	seen := make(map[string]bool)
	for _, pair := range config.Pairs {
		if len(pair) != 2 {
			return fmt.Errorf("network pair %v must have exactly two members", pair)
		}
		if pair[0] == pair[1] {
			return fmt.Errorf("network pair %v pairs a network with itself", pair)
		}
		for _, id := range pair {
			n, ok := config.Networks[id]
			if !ok {
				return fmt.Errorf("network %q in pairs is not configured", id)
			}
			if seen[id] {
				return fmt.Errorf("network %q belongs to more than one pair", id)
			}
			seen[id] = true
			if !common.IsHexAddress(n.ContractAddress) {
				return fmt.Errorf("network %q has invalid contract address %q", id, n.ContractAddress)
			}
			if n.ChainID == 0 {
				return fmt.Errorf("network %q is missing a chain id", id)
			}
		}
	}

	if !seen[config.DefaultNetwork] {
		return fmt.Errorf("default network %q is not part of any pair", config.DefaultNetwork)
	}

	if config.Discovery.MaxProbe < 1 {
		return fmt.Errorf("discovery max probe must be positive")
	}
	if config.Discovery.Store != "memory" && config.Discovery.Store != "redis" {
		return fmt.Errorf("unknown discovery store %q", config.Discovery.Store)
	}
	if config.Orchestrator.PollInterval <= 0 {
		return fmt.Errorf("orchestrator poll interval must be positive")
	}
	if err := config.Orchestrator.ProofRetryPolicy().Validate(); err != nil {
		return fmt.Errorf("orchestrator proof retry: %w", err)
	}
	if config.Relay.BaseURL == "" {
		return fmt.Errorf("relay base url is required")
	}

	return nil
}
