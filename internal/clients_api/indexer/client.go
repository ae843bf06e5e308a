// Package indexer is the client for the memez GraphQL indexer.
// It only moves queries and decodes rows; pricing happens in features/market.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/infra/metrics"
	"memez-terminal/internal/infra/retry"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var indexerRetry = retry.Options{
	MaxRetries: 2,
	BaseDelay:  300 * time.Millisecond,
	MaxDelay:   3 * time.Second,
	Backoff:    2.0,
}

type Client struct {
	url             string
	apiKey          string
	httpClient      *http.Client
	rateLimiter     *rate.Limiter
	circuitBreaker  *gobreaker.CircuitBreaker
	retryOpts       retry.Options
	maxResponseSize int64
}

type Option func(*Client)

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
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

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithRetry(opts retry.Options) Option {
	return func(c *Client) { c.retryOpts = opts }
}

func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:         url,
		rateLimiter: rate.NewLimiter(rate.Limit(10), 20),
		circuitBreaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "Indexer",
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
		retryOpts:       indexerRetry,
		maxResponseSize: 10 * 1024 * 1024,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type GraphQLError struct {
	Message string        `json:"message"`
	Path    []interface{} `json:"path,omitempty"`
}

// GraphQLErrors is returned when the response carries a non-empty errors array.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ge := range e {
		msgs[i] = ge.Message
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors GraphQLErrors   `json:"errors"`
}

// Query runs a GraphQL query and decodes data into out.
// opName is used for logs and metrics only.
func (c *Client) Query(ctx context.Context, opName, query string, vars map[string]interface{}, out interface{}) error {
	start := time.Now()
	var data json.RawMessage
	err := retry.Do(ctx, c.retryOpts, func() error {
		d, err := c.queryOnce(ctx, opName, query, vars)
		if err != nil {
			return err
		}
		data = d
		return nil
	})
	metrics.ObserveUpstream("indexer", start, err)
	if err != nil {
		return fmt.Errorf("indexer %s: %w", opName, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("indexer %s: decode: %w", opName, err)
	}
	return nil
}

func (c *Client) queryOnce(ctx context.Context, opName, query string, vars map[string]interface{}) (json.RawMessage, error) {
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
		d, err := c.post(ctx, opName, query, vars)
		if err != nil {
			return nil, err
		}
		out = d
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, opName, query string, vars map[string]interface{}) (json.RawMessage, error) {
	requestID := log.GenerateRequestID()
	startTime := time.Now()

	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	log.LogRequest(requestID, "POST", opName, zap.String("url", c.url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.LogResponse(requestID, 0, time.Since(startTime).Milliseconds(), zap.String("endpoint", opName), zap.Error(err))
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize))
	duration := time.Since(startTime).Milliseconds()
	if err != nil {
		log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", opName), zap.Error(err))
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", opName), zap.String("error", "API error response received"))
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       body,
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var gr graphqlResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", opName), zap.Error(err))
		return nil, fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(gr.Errors) > 0 {
		log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", opName), zap.String("error", gr.Errors.Error()))
		return nil, gr.Errors
	}

	log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", opName), zap.String("status", "success"))
	return gr.Data, nil
}
