package oracle

import (
	"context"
	"errors"
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

func fastClient(url string) *Client {
	c := NewClient(url, "key")
	c.retryOpts = retry.Options{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	return c
}

func TestSUIPriceRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/prices/sui", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-API-Key"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"price":"3.215"}`))
	}))
	defer srv.Close()

	price, err := fastClient(srv.URL).SUIPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.215", price.String())
	assert.Equal(t, int32(2), calls.Load())
}

func TestSUIPriceRejectsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":0}`))
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).SUIPrice(context.Background())
	assert.Error(t, err)
}

func TestTokenPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0xa::a::A,0xb::b::B", r.URL.Query().Get("coinTypes"))
		w.Write([]byte(`{"prices":{"0xa::a::A":"0.0012","0xb::b::B":1.5}}`))
	}))
	defer srv.Close()

	prices, err := fastClient(srv.URL).TokenPrices(context.Background(), []string{"0xa::a::A", "0xb::b::B"})
	require.NoError(t, err)
	assert.Equal(t, "0.0012", prices["0xa::a::A"].String())
	assert.Equal(t, "1.5", prices["0xb::b::B"].String())
}

func TestBinanceFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "SUIUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"SUIUSDT","price":"3.40000000"}`))
	}))
	defer srv.Close()

	broken := NewClient("", "")
	chain := NewChain(broken, NewBinance("SUIUSDT", srv.URL))

	q, err := chain.SUIPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "binance", q.Source)
	assert.True(t, q.Price.Equal(decimal.RequireFromString("3.4")))
}

type staticPricer struct {
	name  string
	price decimal.Decimal
	err   error
}

func (s staticPricer) Name() string { return s.name }
func (s staticPricer) SUIPrice(context.Context) (decimal.Decimal, error) {
	return s.price, s.err
}

func TestChainJoinsErrors(t *testing.T) {
	chain := NewChain(
		staticPricer{name: "a", err: errors.New("down")},
		staticPricer{name: "b", price: decimal.Zero},
	)
	_, err := chain.SUIPrice(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: down")
	assert.Contains(t, err.Error(), "b: non-positive price")

	_, err = NewChain().SUIPrice(context.Background())
	assert.Error(t, err)
}

func TestChainPrefersFirst(t *testing.T) {
	chain := NewChain(
		staticPricer{name: "a", price: decimal.NewFromInt(3)},
		staticPricer{name: "b", price: decimal.NewFromInt(4)},
	)
	q, err := chain.SUIPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", q.Source)
}
