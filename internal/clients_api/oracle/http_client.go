package oracle

// REST client for the price service.
// GET requests with the shared retry module, full jitter on 429/5xx.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/infra/metrics"
	"memez-terminal/internal/infra/retry"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var oracleHTTPTimeout = 10 * time.Second
var oracleRetry = retry.Options{
	MaxRetries: 3,
	BaseDelay:  300 * time.Millisecond,
	MaxDelay:   5 * time.Second,
	Backoff:    2.0,
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retryOpts  retry.Options
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: oracleHTTPTimeout},
		retryOpts:  oracleRetry,
	}
}

func (c *Client) Name() string { return "oracle" }

func (c *Client) doGET(ctx context.Context, endpoint string) ([]byte, error) {
	requestID := log.GenerateRequestID()
	start := time.Now()

	var respBody []byte
	err := retry.Do(ctx, c.retryOpts, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}
		log.LogRequest(requestID, "GET", endpoint)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		log.LogResponse(requestID, resp.StatusCode, time.Since(start).Milliseconds(), zap.String("endpoint", endpoint))

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &retry.HTTPError{
				StatusCode: resp.StatusCode,
				Body:       body,
				RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
			}
		}
		respBody = body
		return nil
	})
	metrics.ObserveUpstream("oracle", start, err)
	if err != nil {
		return nil, fmt.Errorf("oracle GET %s failed: %w", endpoint, err)
	}
	return respBody, nil
}

type priceResponse struct {
	Price json.Number `json:"price"`
}

// SUIPrice returns the SUI/USD price.
func (c *Client) SUIPrice(ctx context.Context) (decimal.Decimal, error) {
	if c.baseURL == "" {
		return decimal.Zero, fmt.Errorf("oracle base url not configured")
	}
	body, err := c.doGET(ctx, "/v1/prices/sui")
	if err != nil {
		return decimal.Zero, err
	}
	var pr priceResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode oracle price: %w", err)
	}
	price, err := decimal.NewFromString(pr.Price.String())
	if err != nil || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("oracle returned invalid price %q", pr.Price)
	}
	return price, nil
}

// TokenPrices returns USD prices keyed by coin type. Unknown coin types are absent.
func (c *Client) TokenPrices(ctx context.Context, coinTypes []string) (map[string]decimal.Decimal, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("oracle base url not configured")
	}
	if len(coinTypes) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	body, err := c.doGET(ctx, "/v1/prices?coinTypes="+url.QueryEscape(strings.Join(coinTypes, ",")))
	if err != nil {
		return nil, err
	}
	var resp struct {
		Prices map[string]json.Number `json:"prices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode oracle prices: %w", err)
	}
	out := make(map[string]decimal.Decimal, len(resp.Prices))
	for coinType, n := range resp.Prices {
		p, err := decimal.NewFromString(n.String())
		if err != nil {
			log.LogWarn("Skipping malformed oracle price", zap.String("coin_type", coinType), zap.String("price", n.String()))
			continue
		}
		out[coinType] = p
	}
	return out, nil
}
