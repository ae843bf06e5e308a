//go:build integration

package tests

import (
	"context"
	"os"
	"testing"
	"time"

	"memez-terminal/internal/clients_api/indexer"
	"memez-terminal/internal/clients_api/oracle"
	"memez-terminal/internal/clients_api/suirpc"
	"memez-terminal/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Live checks against real endpoints. Each test skips when its endpoint is
// not configured in the environment.

func liveCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestIntegration_SuiRPC(t *testing.T) {
	url := os.Getenv("SUI_RPC_URL")
	if url == "" {
		t.Skip("SUI_RPC_URL is not set")
	}
	c := suirpc.NewClient(url)
	ctx := liveCtx(t)

	gas, err := c.GetReferenceGasPrice(ctx)
	require.NoError(t, err)
	assert.Positive(t, gas)

	meta, err := c.GetCoinMetadata(ctx, domain.SUICoinType)
	require.NoError(t, err)
	assert.Equal(t, domain.SUIDecimals, meta.Decimals)
	assert.Equal(t, "SUI", meta.Symbol)

	supply, err := c.GetTotalSupply(ctx, domain.SUICoinType)
	require.NoError(t, err)
	assert.True(t, supply.IsPositive())
}

func TestIntegration_Indexer(t *testing.T) {
	url := os.Getenv("INDEXER_GRAPHQL_URL")
	if url == "" {
		t.Skip("INDEXER_GRAPHQL_URL is not set")
	}
	c := indexer.NewClient(url, indexer.WithAPIKey(os.Getenv("INDEXER_API_KEY")))
	ctx := liveCtx(t)

	page, err := c.Pools(ctx, indexer.PoolQuery{Limit: 1})
	require.NoError(t, err)
	require.NotNil(t, page)
	if len(page.Items) > 0 {
		pool, err := c.Pool(ctx, page.Items[0].Address)
		require.NoError(t, err)
		assert.Equal(t, page.Items[0].Address, pool.Address)
	}

	_, err = c.RecentTrades(ctx, time.Now().Add(-time.Hour), 5)
	require.NoError(t, err)
}

func TestIntegration_BinanceSUIPrice(t *testing.T) {
	if os.Getenv("BINANCE_LIVE") == "" {
		t.Skip("BINANCE_LIVE is not set")
	}
	price, err := oracle.NewBinance("SUIUSDT", "").SUIPrice(liveCtx(t))
	require.NoError(t, err)
	assert.True(t, price.IsPositive())
}
