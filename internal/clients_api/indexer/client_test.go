package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"memez-terminal/internal/infra/retry"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler func(req graphqlRequest) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(handler(req)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) *Client {
	return NewClient(url,
		WithRateLimit(0, 0),
		WithRetry(retry.Options{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}))
}

func TestPoolsDecodesMixedEncodings(t *testing.T) {
	srv := newTestServer(t, func(req graphqlRequest) string {
		assert.Equal(t, float64(20), req.Variables["limit"])
		assert.Equal(t, "marketcap", req.Variables["sort"])
		_, hasSearch := req.Variables["search"]
		assert.False(t, hasSearch)
		return `{"data":{"pools":{"total":41,"items":[
			{"address":"0xp1","coinType":"0xabc::pepe::PEPE","name":"Pepe","symbol":"PEPE","decimals":6,
			 "quoteBalance":"5000000000","coinBalance":1000000,"price":null,"createdAt":"1700000000000"},
			{"address":"0xp2","coinType":"0xdef::dog::DOG","name":"","symbol":"","decimals":null,"createdAt":1700000000001}
		]}}}`
	})

	page, err := newTestClient(srv.URL).Pools(context.Background(), PoolQuery{Sort: "marketcap", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 41, page.Total)
	require.Len(t, page.Items, 2)

	p1 := page.Items[0]
	require.NotNil(t, p1.Decimals)
	assert.Equal(t, 6, *p1.Decimals)
	assert.True(t, p1.QuoteBalance.Decimal().Equal(decimal.NewFromInt(5_000_000_000)))
	assert.True(t, p1.CoinBalance.Decimal().Equal(decimal.NewFromInt(1_000_000)))
	assert.False(t, p1.Price.Known())
	assert.Equal(t, int64(1700000000000), p1.CreatedAt.Time().UnixMilli())
	assert.False(t, p1.NeedsMetadata())

	assert.True(t, page.Items[1].NeedsMetadata())
}

func TestGraphQLErrorsBecomeError(t *testing.T) {
	srv := newTestServer(t, func(req graphqlRequest) string {
		return `{"data":null,"errors":[{"message":"unknown pool"},{"message":"timeout"}]}`
	})

	_, err := newTestClient(srv.URL).Pool(context.Background(), "0x1")
	var gqlErr GraphQLErrors
	require.ErrorAs(t, err, &gqlErr)
	assert.Contains(t, err.Error(), "unknown pool; timeout")
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":{"leaderboard":[{"address":"0xa","volume":"2500000000","pnl":"-1000000000","trades":3}]}}`))
	}))
	defer srv.Close()

	entries, err := newTestClient(srv.URL).Leaderboard(context.Background(), "24h", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2.5", entries[0].VolumeSUI.String())
	assert.Equal(t, "-1", entries[0].PnLSUI.String())
	assert.Equal(t, int32(2), calls.Load())
}

func TestVestingAndRewardsMapping(t *testing.T) {
	srv := newTestServer(t, func(req graphqlRequest) string {
		if req.Variables["owner"] != nil {
			return `{"data":{"vestingPositions":[{"id":"v1","owner":"0xa","coinType":"0xabc::pepe::PEPE","decimals":6,
				"total":"1000","claimed":"100","start":1700000000000,"duration":"86400000","cliff":"3600000"}]}}`
		}
		return `{"data":{"creatorRewards":[{"poolAddress":"0xp","coinType":"0x2::sui::SUI","symbol":"SUI","decimals":9,
			"rewardType":"trading_fee","amount":"1500000000","claimable":true}]}}`
	})
	c := newTestClient(srv.URL)

	positions, err := c.VestingPositions(context.Background(), "0xa")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 24*time.Hour, positions[0].Duration)
	assert.Equal(t, time.Hour, positions[0].Cliff)

	rewards, err := c.CreatorRewards(context.Background(), "0xa")
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, "1.5", rewards[0].Amount.String())
	assert.True(t, rewards[0].Claimable)
}

func TestRecentTradesSendsSince(t *testing.T) {
	since := time.UnixMilli(1700000000000)
	srv := newTestServer(t, func(req graphqlRequest) string {
		assert.Equal(t, "1700000000000", req.Variables["since"])
		return `{"data":{"trades":[{"digest":"d1","poolAddress":"0xp","sender":"0xs","isBuy":true,
			"quoteAmount":"250000000000","coinAmount":"10","timestamp":1700000000500}]}}`
	})

	trades, err := newTestClient(srv.URL).RecentTrades(context.Background(), since, 50)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "250", trades[0].QuoteSUI().String())
}
