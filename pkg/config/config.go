package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Chains   []ChainConfig  `mapstructure:"chains"`
	Gas      GasConfig      `mapstructure:"gas"`
	OpenAPI  OpenAPIConfig  `mapstructure:"openapi"`
	Security SecurityConfig `mapstructure:"security"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Pending  PendingConfig  `mapstructure:"pending"`
}

type AppConfig struct {
	Env            string `mapstructure:"env"`
	HttpPort       string `mapstructure:"http_port"`
	InternalOrigin string `mapstructure:"internal_origin"` // 钱包自身发起的请求 origin
}

type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// ChainConfig describes one EVM network the reviewer can talk to.
type ChainConfig struct {
	ID       int64  `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	ServerID string `mapstructure:"server_id"`
	RpcUrl   string `mapstructure:"rpc_url"`
	EIP1559  bool   `mapstructure:"eip1559"`
	L1Fee    bool   `mapstructure:"l1_fee"` // OP stack: 额外收取 L1 data fee
}

type GasConfig struct {
	MinGasLimit       uint64            `mapstructure:"min_gas_limit"`
	FallbackGas       uint64            `mapstructure:"fallback_gas"`
	DefaultRatio      float64           `mapstructure:"default_ratio"`
	ChainRatios       map[int64]float64 `mapstructure:"chain_ratios"`
	PriorityFeeChains []int64           `mapstructure:"priority_fee_chains"`
	CustomGasDebounce time.Duration     `mapstructure:"custom_gas_debounce"`
}

type OpenAPIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SecurityConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	GasSelectionTTL time.Duration `mapstructure:"gas_selection_ttl"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
}

// PendingConfig controls the locally pending transaction queue.
type PendingConfig struct {
	KeyPrefix     string        `mapstructure:"key_prefix"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
	PruneWorkers  int           `mapstructure:"prune_workers"`
}

var Global Config

func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 环境变量设置, 例如 REDIS_ADDR 覆盖 redis.addr
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s, chains: %d", Global.App.Env, len(Global.Chains))
}

// Chain looks up a configured chain by id.
func (c Config) Chain(id int64) (ChainConfig, bool) {
	for _, ch := range c.Chains {
		if ch.ID == id {
			return ch, true
		}
	}
	return ChainConfig{}, false
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")
	viper.SetDefault("app.internal_origin", "https://rabby.io")

	viper.SetDefault("db.enabled", false)
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "review_user")
	viper.SetDefault("db.password", "review_password")
	viper.SetDefault("db.name", "review_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "review_events")

	viper.SetDefault("chains", []map[string]interface{}{
		{"id": 1, "name": "Ethereum", "server_id": "eth", "rpc_url": "https://eth.llamarpc.com", "eip1559": true},
		{"id": 10, "name": "OP", "server_id": "op", "rpc_url": "https://mainnet.optimism.io", "eip1559": true, "l1_fee": true},
		{"id": 56, "name": "BNB Chain", "server_id": "bsc", "rpc_url": "https://bsc-dataseed.binance.org"},
		{"id": 1284, "name": "Moonbeam", "server_id": "mobm", "rpc_url": "https://rpc.api.moonbeam.network", "eip1559": true},
	})

	viper.SetDefault("gas.min_gas_limit", 21000)
	viper.SetDefault("gas.fallback_gas", 1000000)
	viper.SetDefault("gas.default_ratio", 1.5)
	viper.SetDefault("gas.chain_ratios", map[string]float64{"1284": 4, "1285": 4, "1287": 4})
	viper.SetDefault("gas.priority_fee_chains", []int64{1})
	viper.SetDefault("gas.custom_gas_debounce", "500ms")

	viper.SetDefault("openapi.base_url", "https://api.rabby.io")
	viper.SetDefault("openapi.timeout", "10s")
	viper.SetDefault("security.timeout", "8s")

	viper.SetDefault("cache.gas_selection_ttl", "720h")
	viper.SetDefault("cache.session_ttl", "30m")

	viper.SetDefault("pending.key_prefix", "review:pending")
	viper.SetDefault("pending.prune_interval", "30s")
	viper.SetDefault("pending.prune_workers", 4)
}
