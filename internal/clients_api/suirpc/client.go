// Package suirpc is a Sui fullnode JSON-RPC client.
// Transport only: rate limiting, circuit breaking, retries on rate limits.
package suirpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/infra/metrics"
	"memez-terminal/internal/infra/retry"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const MainnetRPC = "https://fullnode.mainnet.sui.io:443"

// ErrRateLimited marks a JSON-RPC level rate-limit error. Retried with backoff.
var ErrRateLimited = errors.New("sui rpc rate limited")

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type noRetryKey struct{}

// WithoutRetry returns a context under which Call makes a single attempt.
// Callers that retry a larger step use it so retries do not nest.
func WithoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

type Client struct {
	url             string
	httpClient      *http.Client
	rateLimiter     *rate.Limiter
	circuitBreaker  *gobreaker.CircuitBreaker
	retryOpts       retry.Options
	maxResponseSize int64
	gasBudget       int64
	nextID          atomic.Uint64
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.rateLimiter = nil
			return
		}
		c.rateLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithRetry(opts retry.Options) Option {
	return func(c *Client) { c.retryOpts = opts }
}

// WithGasBudget sets the budget used by the unsafe_* transaction builders, in MIST.
func WithGasBudget(mist int64) Option {
	return func(c *Client) { c.gasBudget = mist }
}

func NewClient(url string, opts ...Option) *Client {
	if url == "" {
		url = MainnetRPC
	}
	c := &Client{
		url:         url,
		rateLimiter: rate.NewLimiter(rate.Limit(20), 40),
		circuitBreaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "SuiRPC",
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			// node-side application errors and throttling say nothing about node health
			IsSuccessful: func(err error) bool {
				var rpcErr *RPCError
				return err == nil || errors.As(err, &rpcErr) || retry.IsRateLimited(err)
			},
		}),
		retryOpts:       retry.RPCBackoff,
		maxResponseSize: 20 * 1024 * 1024,
		gasBudget:       50_000_000,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    20,
				IdleConnTimeout: 90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retryOpts.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.LogWarn("Sui RPC retry",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	return c
}

func (c *Client) GasBudget() int64 { return c.gasBudget }

// Call invokes method and decodes the result into result (may be nil).
// Rate-limited calls are retried on the 1s/2s/4s schedule unless ctx came from
// WithoutRetry.
func (c *Client) Call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	opts := c.retryOpts
	if ctx.Value(noRetryKey{}) != nil {
		opts.MaxRetries = 0
	}
	start := time.Now()
	var raw json.RawMessage
	err := retry.Do(ctx, opts, func() error {
		r, err := c.callOnce(ctx, method, params)
		if err != nil {
			return err
		}
		raw = r
		return nil
	})
	metrics.ObserveUpstream("sui_rpc", start, err)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

func (c *Client) callOnce(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	}
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	var out json.RawMessage
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		r, err := c.post(ctx, method, params)
		if err != nil {
			return nil, err
		}
		out = r
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	requestID := log.GenerateRequestID()
	startTime := time.Now()

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.LogRequest(requestID, "POST", method, zap.String("url", c.url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.LogResponse(requestID, 0, time.Since(startTime).Milliseconds(), zap.String("endpoint", method), zap.Error(err))
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize))
	duration := time.Since(startTime).Milliseconds()
	if err != nil {
		log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", method), zap.Error(err))
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", method), zap.String("error", "node error response"))
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       body,
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", method), zap.Error(err))
		return nil, fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		log.LogResponse(requestID, resp.StatusCode, duration,
			zap.String("endpoint", method),
			zap.Int("rpc_code", rpcResp.Error.Code),
			zap.String("error", rpcResp.Error.Message))
		if isRateLimit(rpcResp.Error) {
			return nil, retry.MarkRateLimited(fmt.Errorf("%w: %s", ErrRateLimited, rpcResp.Error.Message))
		}
		return nil, rpcResp.Error
	}

	log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", method), zap.String("status", "success"))
	return rpcResp.Result, nil
}

func isRateLimit(e *RPCError) bool {
	if e.Code == -32029 || e.Code == 429 {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}
