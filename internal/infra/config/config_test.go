package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAndEnvAliases(t *testing.T) {
	t.Setenv("INDEXER_GRAPHQL_URL", "https://indexer.example/graphql")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("MERGE_BATCH_SIZE", "50")

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	setupEnvAliases(v)

	cfg, err := decode(v)
	require.NoError(t, err)

	assert.Equal(t, "https://indexer.example/graphql", cfg.Indexer.GraphQLURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 50, cfg.Claim.MergeBatchSize)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "SUIUSDT", cfg.Binance.Symbol)
	assert.Equal(t, 6, cfg.Telegram.HotSwapsCount)
	assert.Equal(t, 3, cfg.Telegram.HotMinAddresses)
	assert.Equal(t, 30, cfg.App.PortfolioInterval)
	assert.Equal(t, int64(50_000_000), cfg.Sui.GasBudget)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Indexer: IndexerConfig{GraphQLURL: "https://x"},
			Sui:     SuiConfig{RPCURL: "https://rpc"},
			Claim:   ClaimConfig{MergeBatchSize: 200},
			Airdrop: AirdropConfig{BatchSize: 100},
			App:     AppConfig{RefreshInterval: 15, PortfolioInterval: 30},
		}
	}

	require.NoError(t, Validate(valid()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing indexer", func(c *Config) { c.Indexer.GraphQLURL = "" }},
		{"missing rpc", func(c *Config) { c.Sui.RPCURL = "" }},
		{"zero merge batch", func(c *Config) { c.Claim.MergeBatchSize = 0 }},
		{"negative airdrop batch", func(c *Config) { c.Airdrop.BatchSize = -1 }},
		{"zero interval", func(c *Config) { c.App.RefreshInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, Validate(c))
		})
	}
}
