package suirpc

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

type fakeCall struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     uint64            `json:"id"`
}

// fakeNode answers JSON-RPC calls with handler's result or error.
func fakeNode(t *testing.T, handler func(call fakeCall) (interface{}, *RPCError)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call fakeCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		result, rpcErr := handler(call)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": call.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

var fastRetry = retry.Options{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Backoff: 2, NoJitter: true}

func newTestClient(url string) *Client {
	return NewClient(url, WithRetry(fastRetry), WithRateLimit(0, 0))
}

func TestGetAllCoinsFollowsCursor(t *testing.T) {
	srv := fakeNode(t, func(call fakeCall) (interface{}, *RPCError) {
		require.Equal(t, "suix_getCoins", call.Method)
		var cursor *string
		require.NoError(t, json.Unmarshal(call.Params[2], &cursor))
		if cursor == nil {
			return map[string]interface{}{
				"data": []map[string]string{
					{"coinType": "0x2::sui::SUI", "coinObjectId": "0xa", "version": "1", "digest": "d1", "balance": "100"},
				},
				"nextCursor":  "0xa",
				"hasNextPage": true,
			}, nil
		}
		assert.Equal(t, "0xa", *cursor)
		return map[string]interface{}{
			"data": []map[string]string{
				{"coinType": "0x2::sui::SUI", "coinObjectId": "0xb", "version": "1", "digest": "d2", "balance": "250"},
			},
			"nextCursor":  nil,
			"hasNextPage": false,
		}, nil
	})

	coins, err := newTestClient(srv.URL).GetAllCoins(context.Background(), "0x1", "0x2::sui::SUI")
	require.NoError(t, err)
	require.Len(t, coins, 2)
	assert.Equal(t, "0xb", coins[1].CoinObjectID)
	assert.True(t, coins[1].Balance.Equal(decimal.NewFromInt(250)))
}

func TestRetriesHTTP429ThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"750"}`))
	}))
	defer srv.Close()

	price, err := newTestClient(srv.URL).GetReferenceGasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(750), price)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesRPCRateLimitThenGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := fakeNode(t, func(call fakeCall) (interface{}, *RPCError) {
		calls.Add(1)
		return nil, &RPCError{Code: -32000, Message: "Rate limit exceeded"}
	})

	_, err := newTestClient(srv.URL).GetAllBalances(context.Background(), "0x1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(4), calls.Load())
}

func TestWithoutRetryMakesSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := fakeNode(t, func(call fakeCall) (interface{}, *RPCError) {
		calls.Add(1)
		return nil, &RPCError{Code: -32029, Message: "Too many requests"}
	})

	_, err := newTestClient(srv.URL).GetAllBalances(WithoutRetry(context.Background()), "0x1")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRateLimitsDoNotOpenBreaker(t *testing.T) {
	var limited atomic.Bool
	limited.Store(true)
	srv := fakeNode(t, func(call fakeCall) (interface{}, *RPCError) {
		if limited.Load() {
			return nil, &RPCError{Code: -32029, Message: "Too many requests"}
		}
		return "1000", nil
	})
	c := newTestClient(srv.URL)
	ctx := WithoutRetry(context.Background())

	for i := 0; i < 10; i++ {
		_, err := c.GetReferenceGasPrice(ctx)
		require.ErrorIs(t, err, ErrRateLimited)
	}
	limited.Store(false)
	price, err := c.GetReferenceGasPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), price)
}

func TestApplicationErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := fakeNode(t, func(call fakeCall) (interface{}, *RPCError) {
		calls.Add(1)
		return nil, &RPCError{Code: -32602, Message: "Invalid params"}
	})

	_, err := newTestClient(srv.URL).GetTotalSupply(context.Background(), "0x2::sui::SUI")
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32602, rpcErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetCoinMetadataNull(t *testing.T) {
	srv := fakeNode(t, func(call fakeCall) (interface{}, *RPCError) {
		return nil, nil
	})
	meta, err := newTestClient(srv.URL).GetCoinMetadata(context.Background(), "0xabc::m::M")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestGetCoinMetadata(t *testing.T) {
	srv := fakeNode(t, func(call fakeCall) (interface{}, *RPCError) {
		return map[string]interface{}{
			"decimals": 6, "name": "Pepe", "symbol": "PEPE", "description": "", "iconUrl": "https://x/p.png",
		}, nil
	})
	meta, err := newTestClient(srv.URL).GetCoinMetadata(context.Background(), "0xabc::pepe::PEPE")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 6, meta.Decimals)
	assert.Equal(t, "PEPE", meta.Symbol)
	assert.Equal(t, "https://x/p.png", meta.IconURL)
}

func TestPaySuiSendsAmountsAsStrings(t *testing.T) {
	srv := fakeNode(t, func(call fakeCall) (interface{}, *RPCError) {
		require.Equal(t, "unsafe_paySui", call.Method)
		var amounts []string
		require.NoError(t, json.Unmarshal(call.Params[3], &amounts))
		assert.Equal(t, []string{"1000", "2500"}, amounts)
		var budget string
		require.NoError(t, json.Unmarshal(call.Params[4], &budget))
		assert.Equal(t, "50000000", budget)
		return map[string]string{"txBytes": "AAEC"}, nil
	})

	tx, err := newTestClient(srv.URL).PaySui(context.Background(), "0x1", []string{"0xc"},
		[]string{"0x2", "0x3"}, []decimal.Decimal{decimal.NewFromInt(1000), decimal.NewFromInt(2500)})
	require.NoError(t, err)
	assert.Equal(t, "AAEC", tx.TxBytes)

	_, err = newTestClient(srv.URL).PaySui(context.Background(), "0x1", []string{"0xc"}, []string{"0x2"}, nil)
	assert.Error(t, err)
}

func TestExecuteTransactionBlock(t *testing.T) {
	srv := fakeNode(t, func(call fakeCall) (interface{}, *RPCError) {
		require.Equal(t, "sui_executeTransactionBlock", call.Method)
		var reqType string
		require.NoError(t, json.Unmarshal(call.Params[3], &reqType))
		assert.Equal(t, "WaitForLocalExecution", reqType)
		return map[string]interface{}{
			"digest":  "9xDigest",
			"effects": map[string]interface{}{"status": map[string]string{"status": "failure", "error": "InsufficientGas"}},
		}, nil
	})

	res, err := newTestClient(srv.URL).ExecuteTransactionBlock(context.Background(), "AAEC", []string{"sig"})
	require.NoError(t, err)
	assert.Equal(t, "9xDigest", res.Digest)
	assert.False(t, res.Success())
	assert.Equal(t, "InsufficientGas", res.Error)
}
