package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Indexer    IndexerConfig    `mapstructure:"indexer"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Binance    BinanceConfig    `mapstructure:"binance"`
	Sui        SuiConfig        `mapstructure:"sui"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Claim      ClaimConfig      `mapstructure:"claim"`
	Airdrop    AirdropConfig    `mapstructure:"airdrop"`
	App        AppConfig        `mapstructure:"app"`
}

type ServerConfig struct {
	Addr         string `mapstructure:"addr"`
	AdminToken   string `mapstructure:"admin_token"` // bearer token for POST /api/rewards/claim
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type IndexerConfig struct {
	GraphQLURL     string  `mapstructure:"graphql_url"`
	APIKey         string  `mapstructure:"api_key"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec"`
	Burst          int     `mapstructure:"burst"`
	RequestTimeout int     `mapstructure:"request_timeout"`
}

type OracleConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type BinanceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Symbol  string `mapstructure:"symbol"`
	BaseURL string `mapstructure:"base_url"`
}

type SuiConfig struct {
	RPCURL         string  `mapstructure:"rpc_url"`
	MaxRetries     int     `mapstructure:"max_retries"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec"`
	GasBudget      int64   `mapstructure:"gas_budget"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"` // empty: in-process cache
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"` // empty: in-memory journals
}

type ClickHouseConfig struct {
	DSN string `mapstructure:"dsn"` // empty: in-memory snapshots
}

type TelegramConfig struct {
	BotToken         string  `mapstructure:"bot_token"`
	ChatID           int64   `mapstructure:"chat_id"`
	MinTradeSUI      float64 `mapstructure:"min_trade_sui"`
	HotSwapsCount    int     `mapstructure:"hot_swaps_count"`
	HotMinAddresses  int     `mapstructure:"hot_min_addresses"`
	HotCooldownMins  int     `mapstructure:"hot_cooldown_mins"`
	CheckIntervalSec int     `mapstructure:"check_interval"`
}

type ClaimConfig struct {
	WalletsFile    string `mapstructure:"wallets_file"`
	MergeBatchSize int    `mapstructure:"merge_batch_size"`
}

type AirdropConfig struct {
	SenderKey string `mapstructure:"sender_key"`
	BatchSize int    `mapstructure:"batch_size"`
}

type AppConfig struct {
	DataDir           string `mapstructure:"data_dir"`
	OutDir            string `mapstructure:"out_dir"`
	RefreshInterval   int    `mapstructure:"refresh_interval"`
	PortfolioInterval int    `mapstructure:"portfolio_interval"`
}

func (c AppConfig) RefreshEvery() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Second
}

func (c AppConfig) PortfolioEvery() time.Duration {
	return time.Duration(c.PortfolioInterval) * time.Second
}

// LoadConfig layers sources in this order, later wins:
// 1. defaults
// 2. config.yaml
// 3. .env file
// 4. environment
// 5. command line flags
func LoadConfig() (*Config, error) {
	godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.ReadInConfig() // optional

	v.SetConfigType("env")
	v.SetConfigFile(".env")
	v.MergeInConfig() // optional

	v.AutomaticEnv()
	setupEnvAliases(v)
	setupFlags(v)

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setupEnvAliases(v *viper.Viper) {
	v.BindEnv("server.addr", "MEMEZ_SERVER_ADDR", "PORT")
	v.BindEnv("server.admin_token", "MEMEZ_ADMIN_TOKEN")

	v.BindEnv("indexer.graphql_url", "INDEXER_GRAPHQL_URL")
	v.BindEnv("indexer.api_key", "INDEXER_API_KEY")
	v.BindEnv("indexer.requests_per_sec", "INDEXER_RPS")

	v.BindEnv("oracle.base_url", "PRICE_ORACLE_URL")
	v.BindEnv("oracle.api_key", "PRICE_ORACLE_API_KEY")

	v.BindEnv("binance.enabled", "BINANCE_FALLBACK")
	v.BindEnv("binance.symbol", "BINANCE_SYMBOL")

	v.BindEnv("sui.rpc_url", "SUI_RPC_URL")
	v.BindEnv("sui.max_retries", "SUI_MAX_RETRIES")
	v.BindEnv("sui.gas_budget", "SUI_GAS_BUDGET")

	v.BindEnv("redis.url", "REDIS_URL")
	v.BindEnv("postgres.dsn", "DATABASE_URL")
	v.BindEnv("clickhouse.dsn", "CLICKHOUSE_DSN")

	v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.chat_id", "TELEGRAM_CHAT_ID")
	v.BindEnv("telegram.min_trade_sui", "MIN_TRADE_SUI")

	v.BindEnv("claim.wallets_file", "MEMEZ_WALLETS_FILE")
	v.BindEnv("claim.merge_batch_size", "MERGE_BATCH_SIZE")

	v.BindEnv("airdrop.sender_key", "AIRDROP_SENDER_KEY")
	v.BindEnv("airdrop.batch_size", "AIRDROP_BATCH_SIZE")

	v.BindEnv("app.data_dir", "MEMEZ_DATA_DIR")
	v.BindEnv("app.out_dir", "MEMEZ_OUT_DIR")
	v.BindEnv("app.refresh_interval", "MEMEZ_REFRESH_INTERVAL")
	v.BindEnv("app.portfolio_interval", "MEMEZ_PORTFOLIO_INTERVAL")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("indexer.graphql_url", "")
	v.SetDefault("indexer.requests_per_sec", 10.0)
	v.SetDefault("indexer.burst", 20)
	v.SetDefault("indexer.request_timeout", 15)

	v.SetDefault("oracle.base_url", "")

	v.SetDefault("binance.enabled", true)
	v.SetDefault("binance.symbol", "SUIUSDT")

	v.SetDefault("sui.rpc_url", "https://fullnode.mainnet.sui.io:443")
	v.SetDefault("sui.max_retries", 3)
	v.SetDefault("sui.requests_per_sec", 20.0)
	v.SetDefault("sui.gas_budget", 50_000_000)

	v.SetDefault("telegram.min_trade_sui", 100.0)
	v.SetDefault("telegram.hot_swaps_count", 6)
	v.SetDefault("telegram.hot_min_addresses", 3)
	v.SetDefault("telegram.hot_cooldown_mins", 60)
	v.SetDefault("telegram.check_interval", 30)

	v.SetDefault("claim.wallets_file", "data_in/memez_wallets.json")
	v.SetDefault("claim.merge_batch_size", 200)

	v.SetDefault("airdrop.batch_size", 100)

	v.SetDefault("app.data_dir", "data_in")
	v.SetDefault("app.out_dir", "data_out")
	v.SetDefault("app.refresh_interval", 15)
	v.SetDefault("app.portfolio_interval", 30)
}

func setupFlags(v *viper.Viper) {
	fs := pflag.NewFlagSet("memez", pflag.ContinueOnError)
	fs.String("server.addr", ":8080", "HTTP listen address (env: MEMEZ_SERVER_ADDR)")
	fs.String("indexer.graphql_url", "", "GraphQL indexer endpoint (env: INDEXER_GRAPHQL_URL)")
	fs.String("oracle.base_url", "", "Price oracle base URL (env: PRICE_ORACLE_URL)")
	fs.String("sui.rpc_url", "https://fullnode.mainnet.sui.io:443", "Sui fullnode JSON-RPC URL (env: SUI_RPC_URL)")
	fs.String("redis.url", "", "Redis URL, empty for in-process cache (env: REDIS_URL)")
	fs.String("postgres.dsn", "", "Postgres DSN, empty for in-memory journals (env: DATABASE_URL)")
	fs.String("clickhouse.dsn", "", "ClickHouse DSN, empty for in-memory snapshots (env: CLICKHOUSE_DSN)")
	fs.Int("claim.merge_batch_size", 200, "Coins merged per transaction (env: MERGE_BATCH_SIZE)")
	fs.String("app.data_dir", "data_in", "Input data directory (env: MEMEZ_DATA_DIR)")

	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Parse(os.Args[1:])
	// only flags the user actually passed override lower layers
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			v.BindPFlag(f.Name, f)
		}
	})
}

func Validate(cfg *Config) error {
	if cfg.Indexer.GraphQLURL == "" {
		return fmt.Errorf("indexer.graphql_url is required")
	}
	if cfg.Sui.RPCURL == "" {
		return fmt.Errorf("sui.rpc_url is required")
	}
	if cfg.Claim.MergeBatchSize <= 0 {
		return fmt.Errorf("claim.merge_batch_size must be positive, got %d", cfg.Claim.MergeBatchSize)
	}
	if cfg.Airdrop.BatchSize <= 0 {
		return fmt.Errorf("airdrop.batch_size must be positive, got %d", cfg.Airdrop.BatchSize)
	}
	if cfg.App.RefreshInterval <= 0 || cfg.App.PortfolioInterval <= 0 {
		return fmt.Errorf("app intervals must be positive")
	}
	return nil
}
