package rewards

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"memez-terminal/internal/clients_api/suirpc"
	"memez-terminal/internal/domain"
	"memez-terminal/internal/infra/retry"
	"memez-terminal/internal/storage/memory"
	"memez-terminal/internal/sui"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcNode is an httptest Sui node. Every method gets the handler's answer;
// a non-zero status replies with that HTTP status instead.
type rpcNode struct {
	mu      sync.Mutex
	counts  map[string]int
	handler func(method string) (result interface{}, rpcErr map[string]interface{}, status int)
}

func (n *rpcNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counts[method]
}

func (n *rpcNode) start(t *testing.T) *httptest.Server {
	t.Helper()
	n.counts = make(map[string]int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call struct {
			ID     uint64 `json:"id"`
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n.mu.Lock()
		n.counts[call.Method]++
		n.mu.Unlock()

		result, rpcErr, status := n.handler(call.Method)
		if status != 0 {
			w.WriteHeader(status)
			return
		}
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

var oneSUICoin = map[string]interface{}{
	"data": []map[string]string{
		{"coinType": suiType, "coinObjectId": "0x1", "version": "1", "digest": "d1", "balance": "100"},
	},
	"nextCursor":  nil,
	"hasNextPage": false,
}

func newRPCClaimer(t *testing.T, url string) (*Claimer, *suirpc.Client) {
	t.Helper()
	rpc := suirpc.NewClient(url, suirpc.WithRetry(fastRetry), suirpc.WithRateLimit(0, 0))
	kp, err := sui.KeypairFromSeed(make([]byte, 32))
	require.NoError(t, err)
	ks := NewKeyStore()
	require.NoError(t, ks.Add(user, kp))
	return NewClaimer(rpc, ks, memory.NewClaimStore(), 10, WithBackoff(fastRetry)), rpc
}

func TestClaimRateLimitedBuildRetriesOnceAndKeepsBreakerClosed(t *testing.T) {
	node := &rpcNode{handler: func(method string) (interface{}, map[string]interface{}, int) {
		if method == "suix_getCoins" {
			return oneSUICoin, nil, 0
		}
		return nil, map[string]interface{}{"code": -32029, "message": "Too many requests"}, 0
	}}
	srv := node.start(t)
	c, rpc := newRPCClaimer(t, srv.URL)
	ctx := context.Background()

	r, err := c.MergeAndPrepareReceive(ctx, ClaimRequest{User: user, CoinType: suiType, Transfer: true})
	require.Error(t, err)
	assert.True(t, retry.IsRateLimited(err))
	assert.NotContains(t, err.Error(), "circuit breaker")
	// one attempt plus fastRetry.MaxRetries, no nested client retries
	assert.Equal(t, 1+fastRetry.MaxRetries, node.count("unsafe_payAllSui"))
	assert.Equal(t, 0, node.count("sui_executeTransactionBlock"))
	assert.Equal(t, domain.ClaimStatusFailed, r.Status)

	_, err = c.MergeAndPrepareReceive(ctx, ClaimRequest{User: user, CoinType: suiType, Transfer: true})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "circuit breaker")

	// throttling must not trip the breaker for unrelated reads
	coins, err := rpc.GetAllCoins(ctx, user, suiType)
	require.NoError(t, err)
	assert.Len(t, coins, 1)
}

func TestClaimExecuteServerErrorIsNotResubmitted(t *testing.T) {
	node := &rpcNode{handler: func(method string) (interface{}, map[string]interface{}, int) {
		switch method {
		case "suix_getCoins":
			return oneSUICoin, nil, 0
		case "unsafe_payAllSui":
			return map[string]string{"txBytes": "AAECAw=="}, nil, 0
		}
		return nil, nil, http.StatusBadGateway
	}}
	srv := node.start(t)
	c, _ := newRPCClaimer(t, srv.URL)

	r, err := c.MergeAndPrepareReceive(context.Background(), ClaimRequest{User: user, CoinType: suiType, Transfer: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute pay_all_sui")
	assert.Equal(t, 1, node.count("unsafe_payAllSui"))
	assert.Equal(t, 1, node.count("sui_executeTransactionBlock"))
	assert.Equal(t, domain.ClaimStatusFailed, r.Status)
	assert.Empty(t, r.Digests)
}
