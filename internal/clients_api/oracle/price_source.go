package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/infra/metrics"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SUIPricer is one source of the SUI/USD price.
type SUIPricer interface {
	Name() string
	SUIPrice(ctx context.Context) (decimal.Decimal, error)
}

type Quote struct {
	Price  decimal.Decimal
	Source string
}

// Chain asks each source in order and returns the first valid price.
type Chain struct {
	sources []SUIPricer
}

func NewChain(sources ...SUIPricer) *Chain {
	return &Chain{sources: sources}
}

func (c *Chain) SUIPrice(ctx context.Context) (Quote, error) {
	var errs []error
	for i, src := range c.sources {
		price, err := src.SUIPrice(ctx)
		if err == nil && price.IsPositive() {
			if i > 0 {
				metrics.Fallbacks.WithLabelValues("sui_price", src.Name()).Inc()
				log.LogWarn("SUI price served by fallback source", zap.String("source", src.Name()))
			}
			return Quote{Price: price, Source: src.Name()}, nil
		}
		if err == nil {
			err = fmt.Errorf("non-positive price %s", price)
		}
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return Quote{}, errors.New("no price sources configured")
	}
	return Quote{}, errors.Join(errs...)
}

// Binance reads the last trade price of a spot symbol (SUIUSDT) from the public API.
type Binance struct {
	client *binance.Client
	symbol string
}

// NewBinance builds a keyless client; baseURL may be empty for the default endpoint.
func NewBinance(symbol, baseURL string) *Binance {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if symbol == "" {
		symbol = "SUIUSDT"
	}
	return &Binance{client: client, symbol: symbol}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) SUIPrice(ctx context.Context) (decimal.Decimal, error) {
	start := time.Now()
	prices, err := b.client.NewListPricesService().Symbol(b.symbol).Do(ctx)
	metrics.ObserveUpstream("binance", start, err)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance %s: %w", b.symbol, err)
	}
	for _, p := range prices {
		if p.Symbol == b.symbol {
			return decimal.NewFromString(p.Price)
		}
	}
	return decimal.Zero, fmt.Errorf("binance: symbol %s not in response", b.symbol)
}
